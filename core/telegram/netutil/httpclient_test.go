package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}
	return f.next.RoundTrip(req)
}

func TestRetryTransportReplaysBody(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		got.Store(buf.String())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	flaky := &flakyTransport{failures: 2, next: http.DefaultTransport}
	client := &http.Client{Transport: &retryTransport{base: flaky, maxRetries: 3, backoff: time.Millisecond}}

	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, "payload", got.Load())
}

func TestRetryTransportGivesUp(t *testing.T) {
	flaky := &flakyTransport{failures: 10, next: http.DefaultTransport}
	client := &http.Client{Transport: &retryTransport{base: flaky, maxRetries: 1, backoff: time.Millisecond}}

	_, err := client.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	assert.Equal(t, int32(2), flaky.calls.Load())
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("plain")))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}

func TestShouldRetryLooksThroughWrappers(t *testing.T) {
	reset := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}}
	assert.True(t, ShouldRetry(reset))
	assert.True(t, ShouldRetry(fmt.Errorf("send: %w", io.ErrUnexpectedEOF)))
	assert.False(t, ShouldRetry(&url.Error{Op: "Get", URL: "https://api.telegram.org", Err: context.Canceled}))
}
