// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// DefaultTimeout bounds waits on asynchronous events in tests.
const DefaultTimeout = 2 * time.Second

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LocalHostRequest creates an httptest request that appears to come from
// localhost, which tsweb's debug access check requires.
func LocalHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// ServeLocal runs a loopback request through handler and returns the
// recorder.
func ServeLocal(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, LocalHostRequest(method, path, nil))
	return rec
}

// WaitClosed fails the test unless ch is closed within DefaultTimeout.
func WaitClosed(t testing.TB, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(DefaultTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// AssertOpen fails the test if ch is already closed.
func AssertOpen(t testing.TB, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Errorf("%s closed unexpectedly", what)
	default:
	}
}

// Receive returns the next value from ch or fails after DefaultTimeout.
func Receive[T any](t testing.TB, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(DefaultTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}
