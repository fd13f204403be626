package admission

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenelite/go-accel/internal/protocol"
)

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	long := "/" + strings.Repeat("a", DefaultMaxPathLength)
	tests := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		status  int
	}{
		{"generic get", http.MethodGet, "/npm/react", nil, 0},
		{"generic head", http.MethodHead, "/npm/react", nil, 0},
		{"generic delete", http.MethodDelete, "/anything", nil, http.StatusMethodNotAllowed},
		{"generic post", http.MethodPost, "/npm/react", nil, http.StatusMethodNotAllowed},
		{"lowercase get is not GET", "get", "/npm/react", nil, http.StatusMethodNotAllowed},
		{"registry blob upload", http.MethodPost, "/v2/library/ubuntu/blobs/uploads/", nil, 0},
		{"registry manifest put", http.MethodPut, "/cr/ghcr/v2/org/app/manifests/1.0", nil, 0},
		{"registry delete still refused", http.MethodDelete, "/v2/library/ubuntu/manifests/latest", nil, http.StatusMethodNotAllowed},
		{"git receive pack", http.MethodPost, "/gh/a/b.git/git-receive-pack", nil, 0},
		{"lfs batch", http.MethodPost, "/gh/a/b.git/info/lfs/objects/batch", nil, 0},
		{"ai chat", http.MethodPost, "/ip/openai/v1/chat/completions", map[string]string{"Content-Type": "application/json"}, 0},
		{"ai patch", http.MethodPatch, "/ip/openai/v1/files", nil, 0},
		{"docker ua post", http.MethodPost, "/anything", map[string]string{"User-Agent": "Docker/24.0"}, 0},
		{"options never allowed", http.MethodOptions, "/v2/", nil, http.StatusMethodNotAllowed},
		{"path too long", http.MethodGet, long, nil, http.StatusRequestURITooLong},
		{"path too long and bad method", http.MethodDelete, long, nil, http.StatusMethodNotAllowed},
		{"path at limit", http.MethodGet, long[:DefaultMaxPathLength], nil, 0},
	}

	policy := DefaultPolicy()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Method = tt.method
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			res := ValidateRequest(req, req.URL, policy)
			if tt.status == 0 {
				assert.True(t, res.Valid)
				assert.Zero(t, res.Status)
				assert.Empty(t, res.Message)
				assert.NoError(t, res.Err())
				return
			}
			assert.False(t, res.Valid)
			assert.Equal(t, tt.status, res.Status)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, tt.status, StatusCode(res.Err()))
		})
	}
}

func TestRejectionMessages(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Method = http.MethodDelete

	res := policy.Validate(req, req.URL)
	assert.Equal(t, "Method not allowed", res.Message)
	assert.Equal(t, "method_not_allowed", res.Reason)
	assert.ErrorIs(t, res.Err(), ErrMethodNotAllowed)

	req = httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("p", 10), nil)
	short, err := NewPolicy([]string{http.MethodGet}, 5)
	require.NoError(t, err)
	res = short.Validate(req, req.URL)
	assert.Equal(t, "Path too long", res.Message)
	assert.Equal(t, "path_too_long", res.Reason)
	assert.ErrorIs(t, res.Err(), ErrPathTooLong)
}

func TestValidateUsesGivenURL(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	req := httptest.NewRequest(http.MethodPost, "/cr/docker/library/alpine", nil)

	assert.False(t, policy.Validate(req, nil).Valid)
	assert.True(t, policy.Validate(req, &url.URL{Path: "/v2/library/alpine/blobs/uploads/"}).Valid)
}

func TestValidateIsTotal(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	require.NotPanics(t, func() {
		res := policy.Validate(nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
	})
	require.NotPanics(t, func() {
		res := policy.Validate(&http.Request{Method: http.MethodGet}, nil)
		assert.True(t, res.Valid)
	})
}

func TestValidateIsIdempotent(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	req := httptest.NewRequest(http.MethodPost, "/v2/library/ubuntu/blobs/uploads/", nil)
	first := policy.Validate(req, req.URL)
	second := policy.Validate(req, req.URL)
	assert.Equal(t, first, second)
	assert.True(t, first.Families.Has(protocol.ContainerRegistry))
}

func TestValidateConcurrent(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v2/repo%d/manifests/latest", i), nil)
			req.Method = http.MethodPut
			assert.True(t, policy.Validate(req, req.URL).Valid)
		}(i)
	}
	wg.Wait()
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	_, err := NewPolicy([]string{http.MethodGet}, 0)
	require.Error(t, err)

	_, err = NewPolicy(nil, 10)
	require.Error(t, err)

	p, err := NewPolicy([]string{http.MethodHead, http.MethodGet, http.MethodDelete}, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, p.MaxPathLength())
	assert.Equal(t, []string{"DELETE", "GET", "HEAD"}, p.GenericMethods())

	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	assert.True(t, p.Validate(req, req.URL).Valid)
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
	assert.Equal(t, http.StatusRequestURITooLong, StatusCode(fmt.Errorf("admission: %w", ErrPathTooLong)))
}
