package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type frame struct {
	Width int       `json:"width"`
	Data  []float64 `json:"data"`
}

func TestNewStandardClient(t *testing.T) {
	custom := &http.Client{}
	if NewStandardClient(custom).Client != custom {
		t.Error("expected custom client to be wrapped")
	}
	if got := NewStandardClient(nil).Timeout; got != DefaultFetchTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultFetchTimeout)
	}
}

func TestGetJSON_StandardClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/api/frames/7":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"width":2,"data":[1,2]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewStandardClient(server.Client())
	var got frame
	if err := GetJSON(context.Background(), client, server.URL+"/api/frames/7", 1<<10, &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Width != 2 || len(got.Data) != 2 {
		t.Errorf("got %+v", got)
	}

	err := GetJSON(context.Background(), client, server.URL+"/missing", 1<<10, &got)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("missing: got %v, want 404 StatusError", err)
	}
}

func TestGetJSON_Limit(t *testing.T) {
	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `{"width":2,"data":[1,2,3,4,5,6,7,8]}`)
	var got frame
	if err := GetJSON(context.Background(), mock, "http://images.test/f", 16, &got); err == nil {
		t.Error("expected truncated body to fail decoding")
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, "first").
		AddResponse(http.StatusAccepted, "second")

	for i, want := range []struct {
		status int
		body   string
	}{
		{http.StatusOK, "first"},
		{http.StatusAccepted, "second"},
		{http.StatusNotFound, ""}, // queue exhausted
	} {
		req, _ := http.NewRequest(http.MethodGet, "http://images.test/frame", nil)
		resp, err := mock.Do(req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != want.status || string(body) != want.body {
			t.Errorf("request %d: got %d %q, want %d %q", i, resp.StatusCode, body, want.status, want.body)
		}
		if resp.Request != req {
			t.Errorf("request %d: response not linked to request", i)
		}
	}

	if mock.RequestCount() != 3 {
		t.Errorf("got %d requests, want 3", mock.RequestCount())
	}
}

func TestMockHTTPClient_Errors(t *testing.T) {
	wantErr := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(wantErr)

	req, _ := http.NewRequest(http.MethodGet, "http://images.test/frame", nil)
	if _, err := mock.Do(req); !errors.Is(err, wantErr) {
		t.Errorf("got error %v, want %v", err, wantErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, "http://images.test/frame", nil)
	if _, err := mock.Do(req); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled request: got %v", err)
	}
}

func TestMockHTTPClient_GetRequest(t *testing.T) {
	mock := NewMockHTTPClient()

	req, _ := http.NewRequest(http.MethodGet, "http://images.test/a", nil)
	mock.Do(req)

	if got := mock.GetRequest(0); got == nil || got.URL.String() != "http://images.test/a" {
		t.Errorf("GetRequest(0) = %v", got)
	}
	if mock.GetRequest(-1) != nil || mock.GetRequest(1) != nil {
		t.Error("expected nil for out-of-range index")
	}
}
