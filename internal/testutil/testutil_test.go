package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestLocalHostRequest(t *testing.T) {
	t.Parallel()

	req := LocalHostRequest(http.MethodGet, "/debug/source", nil)
	assert.Equal(t, "127.0.0.1:12345", req.RemoteAddr)
	assert.Equal(t, "/debug/source", req.URL.Path)
}

func TestServeLocal(t *testing.T) {
	t.Parallel()

	var remote string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote = r.RemoteAddr
		w.WriteHeader(http.StatusTeapot)
	})
	rec := ServeLocal(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "127.0.0.1:12345", remote)
}

func TestWaitClosedAndReceive(t *testing.T) {
	t.Parallel()

	open := make(chan struct{})
	AssertOpen(t, open, "open channel")
	close(open)
	WaitClosed(t, open, "closed channel")

	ch := make(chan int, 1)
	ch <- 7
	assert.Equal(t, 7, Receive(t, (<-chan int)(ch), "value"))
}
