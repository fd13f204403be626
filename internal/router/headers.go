package router

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kenelite/go-accel/internal/protocol"
)

// Standard hop-by-hop headers that must not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te", // RFC spells it TE, but per net/http canonicalization this renders as Te
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// securityHeaders are set on every response the gateway writes.
var securityHeaders = map[string]string{
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains; preload",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Content-Security-Policy":   "default-src 'none'; img-src 'self'; script-src 'none'",
	"Permissions-Policy":        "interest-cohort=()",
}

const (
	familyHeader     = "X-Accel-Family"
	requestIDHeader  = "X-Request-ID"
	defaultGitAgent  = "git/2.34.1"
	trailersTEHeader = "trailers"
)

func removeHopByHopHeaders(h http.Header) {
	// Headers named in Connection are hop-by-hop too.
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
}

// prepareUpstreamHeaders adjusts the outbound headers for the detected protocol.
func prepareUpstreamHeaders(h http.Header, families protocol.Set, grpc bool) {
	if (families.Has(protocol.Git) || families.Has(protocol.GitLFS)) && h.Get("User-Agent") == "" {
		h.Set("User-Agent", defaultGitAgent)
	}
	if grpc {
		// gRPC requires TE: trailers on HTTP/2
		h.Set("TE", trailersTEHeader)
	}
}

// ensureRequestID keeps a client supplied request ID or mints one.
func ensureRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); id != "" {
		return id
	}
	id := uuid.NewString()
	h.Set(requestIDHeader, id)
	return id
}

func addSecurityHeaders(h http.Header) {
	for k, v := range securityHeaders {
		h.Set(k, v)
	}
}

func copyHeaderExcept(dst, src http.Header, except map[string]struct{}) {
	for k, vv := range src {
		if _, skip := except[k]; skip {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
