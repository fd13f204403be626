package router

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kenelite/go-accel/internal/admission"
	"github.com/kenelite/go-accel/internal/config"
	"github.com/kenelite/go-accel/internal/observability"
	"github.com/kenelite/go-accel/internal/protocol"
	"github.com/kenelite/go-accel/internal/ratelimiter"
	"github.com/kenelite/go-accel/internal/scheduler"
	"github.com/kenelite/go-accel/internal/upstream"
)

type Router struct {
	platforms []platform
	policy    *admission.Policy
	upstream  *upstream.Manager
	sched     scheduler.Scheduler
	limiter   *ratelimiter.Limiter
	retry     upstream.RetryPolicy
	metrics   *observability.Metrics
	logger    *observability.Logger
}

func NewRouter(cfg *config.Config, policy *admission.Policy, up *upstream.Manager, sch scheduler.Scheduler, m *observability.Metrics, l *observability.Logger) (*Router, error) {
	if policy == nil {
		return nil, fmt.Errorf("admission policy required")
	}
	platforms := newPlatforms(cfg.Platforms)
	for _, p := range platforms {
		if _, ok := up.Get(p.upstream); !ok {
			return nil, fmt.Errorf("platform %q: unknown upstream %q", p.prefix, p.upstream)
		}
	}
	return &Router{
		platforms: platforms,
		policy:    policy,
		upstream:  up,
		sched:     sch,
		limiter:   ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		retry:     upstream.RetryPolicyFrom(cfg.Retry),
		metrics:   m,
		logger:    l,
	}, nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	if !r.allow(w, req) {
		r.metrics.IncRejections("rate_limited")
		return
	}

	res := r.policy.Validate(req, req.URL)
	family := res.Families.Primary().String()
	r.metrics.IncRequests(family)
	defer func() { r.metrics.ObserveDuration(family, time.Since(start)) }()

	rid := ensureRequestID(req.Header)
	w.Header().Set(requestIDHeader, rid)
	addSecurityHeaders(w.Header())
	if !res.Valid {
		r.metrics.IncRejections(res.Reason)
		r.logger.Infow("request rejected", "request_id", rid, "method", req.Method, "path_len", len(req.URL.Path), "family", family, "status", res.Status)
		http.Error(w, res.Message, res.Status)
		return
	}

	p, rest, ok := matchPlatform(r.platforms, req.URL.Path)
	if !ok {
		http.Error(w, "unsupported platform", http.StatusNotFound)
		return
	}
	ups, ok := r.upstream.Get(p.upstream)
	if !ok || len(ups.Targets) == 0 {
		http.Error(w, "upstream not found", http.StatusBadGateway)
		return
	}
	idx := r.sched.Next(ups.Name, len(ups.Targets))
	if idx < 0 {
		http.Error(w, "no backend", http.StatusServiceUnavailable)
		return
	}
	target := ups.Targets[idx]

	outReq := req.Clone(req.Context())
	outReq.URL.Scheme = target.URL.Scheme
	outReq.URL.Host = target.URL.Host
	outReq.URL.Path = singleJoiningSlash(target.URL.Path, rest)
	outReq.URL.RawPath = ""
	outReq.Host = target.URL.Host
	outReq.RequestURI = ""
	outReq.Header = req.Header.Clone()
	removeHopByHopHeaders(outReq.Header)
	prepareUpstreamHeaders(outReq.Header, res.Families, protocol.IsGRPC(req))

	resp, err := ups.Do(req.Context(), outReq, r.retry)
	if err != nil {
		r.metrics.IncUpstreamFailures(p.prefix)
		r.logger.Warnw("upstream request failed", "request_id", rid, "platform", p.prefix, "upstream", ups.Name, "family", family, "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	// Prepare trailers for downstream if upstream provided any
	for k := range resp.Trailer {
		w.Header().Add("Trailer", k)
	}
	removeHopByHopHeaders(resp.Header)
	copyHeaderExcept(w.Header(), resp.Header, map[string]struct{}{"Trailer": {}})
	addSecurityHeaders(w.Header())
	w.Header().Set(familyHeader, family)
	w.Header().Set(requestIDHeader, rid)
	w.WriteHeader(resp.StatusCode)
	n, _ := io.Copy(w, resp.Body)
	// set trailer values after body is written
	for k, vv := range resp.Trailer {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}

	r.logger.Infow("request",
		"request_id", rid,
		"method", req.Method,
		"platform", p.prefix,
		"family", family,
		"status", resp.StatusCode,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
