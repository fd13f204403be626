package protocol

import (
	"net/http"
	"strings"
)

// IsGRPC determines whether the request is a gRPC call: HTTP/2 plus the
// canonical content-type prefix (application/grpc, application/grpc+proto, ...).
// It is transport metadata, not a family, and does not affect admission.
func IsGRPC(r *http.Request) bool {
	if r == nil || r.ProtoMajor < 2 {
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc")
}
