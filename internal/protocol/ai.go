package protocol

import (
	"net/http"
	"net/url"
	"strings"
)

// inferenceEndpoints are the well-known API paths of hosted model providers.
var inferenceEndpoints = []string{
	"/v1/chat/completions",
	"/v1/completions",
	"/v1/messages",
	"/v1/predictions",
	"/v1/generate",
	"/v1/embeddings",
	"/openai/v1/chat/completions",
}

// IsAIInferenceRequest reports whether the request is bound for an
// inference provider, either under the /ip/ platform prefix or by shape.
func IsAIInferenceRequest(r *http.Request, u *url.URL) bool {
	path := pathOf(r, u)
	if strings.HasPrefix(path, "/ip/") {
		return true
	}
	if containsAny(path, inferenceEndpoints...) {
		return true
	}
	if method(r) == http.MethodPost && strings.Contains(header(r, "Content-Type"), "application/json") {
		return containsAny(path, "/chat/", "/completions", "/generate", "/predict")
	}
	return false
}
