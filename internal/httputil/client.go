package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPClient is the part of *http.Client that REST fetches need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultFetchTimeout bounds a request made through NewStandardClient(nil).
const DefaultFetchTimeout = 30 * time.Second

// StandardClient sends requests with a wrapped *http.Client.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c. A nil c gets a client with DefaultFetchTimeout.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &StandardClient{Client: c}
}

// StatusError reports a response with an unexpected status code.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// GetJSON fetches url and decodes at most limit bytes of its JSON body into
// v. Any status other than 200 is returned as a *StatusError.
func GetJSON(ctx context.Context, client HTTPClient, url string, limit int64, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, limit)).Decode(v); err != nil {
		return fmt.Errorf("GET %s: failed to decode body: %w", url, err)
	}
	return nil
}

// MockResponse is one canned reply from MockHTTPClient. A non-nil Err is
// returned from Do instead of a response.
type MockResponse struct {
	Status int
	Body   string
	Err    error
}

// MockHTTPClient replays queued responses in order and records every
// request. Once the queue is empty it answers 404.
type MockHTTPClient struct {
	mu       sync.Mutex
	queue    []MockResponse
	requests []*http.Request
}

// NewMockHTTPClient returns a mock with an empty queue.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a reply with status and body.
func (m *MockHTTPClient) AddResponse(status int, body string) *MockHTTPClient {
	return m.enqueue(MockResponse{Status: status, Body: body})
}

// AddErrorResponse queues a transport failure.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	return m.enqueue(MockResponse{Err: err})
}

func (m *MockHTTPClient) enqueue(r MockResponse) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, r)
	return m
}

// Do implements HTTPClient.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	next := MockResponse{Status: http.StatusNotFound}
	if len(m.queue) > 0 {
		next, m.queue = m.queue[0], m.queue[1:]
	}
	m.mu.Unlock()

	if next.Err != nil {
		return nil, next.Err
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: next.Status,
		Status:     fmt.Sprintf("%d %s", next.Status, http.StatusText(next.Status)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(next.Body)),
		Request:    req,
	}, nil
}

// GetRequest returns the nth recorded request, or nil.
func (m *MockHTTPClient) GetRequest(n int) *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.requests) {
		return nil
	}
	return m.requests[n]
}

// RequestCount returns how many requests Do has seen.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
