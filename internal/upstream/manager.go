package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kenelite/go-accel/internal/config"
	"github.com/kenelite/go-accel/internal/observability"
)

type Target struct {
	URL *url.URL
}

type Upstream struct {
	Name    string
	Targets []Target
	Client  *http.Client
	logger  *observability.Logger
}

type Manager struct {
	mu        sync.RWMutex
	upstreams map[string]*Upstream
}

func NewManager(cfgs []config.UpstreamConfig, logger *observability.Logger) (*Manager, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	m := &Manager{upstreams: make(map[string]*Upstream)}
	for _, uc := range cfgs {
		if uc.Name == "" || len(uc.Targets) == 0 {
			return nil, errors.New("upstream name and targets required")
		}
		ups := &Upstream{Name: uc.Name, logger: logger, Client: &http.Client{
			Timeout: time.Duration(uc.Timeout) * time.Millisecond,
			// Redirects are relayed to the client rather than followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}}
		for _, t := range uc.Targets {
			u, err := url.Parse(t)
			if err != nil {
				return nil, fmt.Errorf("upstream %q: %w", uc.Name, err)
			}
			ups.Targets = append(ups.Targets, Target{URL: u})
		}
		m.upstreams[uc.Name] = ups
	}
	return m, nil
}

func (m *Manager) Get(name string) (*Upstream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.upstreams[name]
	return u, ok
}

// RetryPolicy bounds how often an idempotent request is re-sent.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
}

func RetryPolicyFrom(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{MaxRetries: c.MaxRetries, InitialInterval: time.Duration(c.InitialIntervalMS) * time.Millisecond}
}

var errRetryableStatus = errors.New("retryable upstream status")

// Do sends req through the upstream's client. GET and HEAD requests without
// a body are retried on transport errors and on 502, 503 and 504; the last
// attempt's response is returned as is. Other requests are sent once.
func (u *Upstream) Do(ctx context.Context, req *http.Request, rp RetryPolicy) (*http.Response, error) {
	if !replayable(req) || rp.MaxRetries <= 0 {
		return u.Client.Do(req.WithContext(ctx))
	}

	eb := backoff.NewExponentialBackOff()
	if rp.InitialInterval > 0 {
		eb.InitialInterval = rp.InitialInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(rp.MaxRetries)), ctx)

	var (
		resp     *http.Response
		attempts int
	)
	op := func() error {
		attempts++
		r, err := u.Client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if retryableStatus(r.StatusCode) && attempts <= rp.MaxRetries {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return errRetryableStatus
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		u.logger.Debugw("retrying upstream request",
			"upstream", u.Name,
			"method", req.Method,
			"attempt", attempts,
			"wait_ms", wait.Milliseconds(),
			"err", err,
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func replayable(req *http.Request) bool {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}
	return req.Body == nil || req.Body == http.NoBody
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
