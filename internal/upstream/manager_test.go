package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kenelite/go-accel/internal/config"
	"github.com/kenelite/go-accel/internal/observability"
)

func TestManagerBasic(t *testing.T) {
	m, err := NewManager([]config.UpstreamConfig{{Name: "u", Targets: []string{"http://example.com"}, Timeout: 1000}}, nil)
	require.NoError(t, err)

	u, ok := m.Get("u")
	require.True(t, ok, "expected upstream 'u' present")
	require.Len(t, u.Targets, 1)
	assert.Equal(t, "http://example.com", u.Targets[0].URL.String())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManagerRejectsIncompleteUpstream(t *testing.T) {
	_, err := NewManager([]config.UpstreamConfig{{Name: "u"}}, nil)
	require.Error(t, err)
}

func flakyBackend(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newUpstream(t *testing.T) *Upstream {
	t.Helper()
	m, err := NewManager([]config.UpstreamConfig{{Name: "u", Targets: []string{"http://unused"}, Timeout: 2000}}, nil)
	require.NoError(t, err)
	u, _ := m.Get("u")
	return u
}

func TestDoRetriesIdempotentRequests(t *testing.T) {
	srv, calls := flakyBackend(t, 2, http.StatusServiceUnavailable)
	u := newUpstream(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := u.Do(context.Background(), req, RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoReturnsLastResponseWhenRetriesExhausted(t *testing.T) {
	srv, calls := flakyBackend(t, 100, http.StatusBadGateway)
	u := newUpstream(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := u.Do(context.Background(), req, RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoDoesNotRetryWrites(t *testing.T) {
	srv, calls := flakyBackend(t, 1, http.StatusServiceUnavailable)
	u := newUpstream(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)
	resp, err := u.Do(context.Background(), req, RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := flakyBackend(t, 1, http.StatusNotFound)
	u := newUpstream(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := u.Do(context.Background(), req, RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoTransportErrorAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	u := newUpstream(t)

	req, err := http.NewRequest(http.MethodGet, addr, nil)
	require.NoError(t, err)
	_, err = u.Do(context.Background(), req, RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond})
	require.Error(t, err)
}

func TestDoLogsRetries(t *testing.T) {
	srv, _ := flakyBackend(t, 2, http.StatusServiceUnavailable)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := &observability.Logger{SugaredLogger: zap.New(core).Sugar()}

	m, err := NewManager([]config.UpstreamConfig{{Name: "u", Targets: []string{srv.URL}, Timeout: 2000}}, logger)
	require.NoError(t, err)
	u, _ := m.Get("u")

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := u.Do(context.Background(), req, RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	retries := logs.FilterMessage("retrying upstream request").All()
	require.Len(t, retries, 2)
	assert.Equal(t, "u", retries[0].ContextMap()["upstream"])
	assert.EqualValues(t, 1, retries[0].ContextMap()["attempt"])
	assert.EqualValues(t, 2, retries[1].ContextMap()["attempt"])
}
