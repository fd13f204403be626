package admission

import (
	"errors"
	"net/http"
)

// Rejection kinds. Both are terminal for the request.
var (
	ErrMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed, Reason: "method_not_allowed", msg: "Method not allowed"}
	ErrPathTooLong      = &Error{Status: http.StatusRequestURITooLong, Reason: "path_too_long", msg: "Path too long"}
)

// Error is an admission rejection carrying the HTTP status to answer with.
type Error struct {
	Status int
	// Reason is a stable, label-safe identifier.
	Reason string
	msg    string
}

func (e *Error) Error() string { return e.msg }

// StatusCode extracts the HTTP status from an error chain.
// It returns http.StatusOK for nil and http.StatusInternalServerError when
// no *Error is present.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}
