package router

import (
	"net/http"

	"github.com/kenelite/go-accel/internal/ratelimiter"
)

func (r *Router) allow(w http.ResponseWriter, req *http.Request) bool {
	if r.limiter.Allow(ratelimiter.ClientIP(req.RemoteAddr)) {
		return true
	}
	addSecurityHeaders(w.Header())
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	return false
}
