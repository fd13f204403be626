// Package admission decides whether a request may enter the forwarding
// pipeline. The decision is a pure function of the request, its URL and an
// immutable Policy; it never blocks and never panics.
package admission

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/kenelite/go-accel/internal/protocol"
)

// DefaultMaxPathLength is the path length limit used by DefaultPolicy.
const DefaultMaxPathLength = 2048

// PrivilegedMethods are granted to any request recognised as a protocol family.
var PrivilegedMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
}

var privileged = toSet(PrivilegedMethods)

// Policy is the admission configuration. It is read-only after construction
// and safe for concurrent use.
type Policy struct {
	generic       map[string]struct{}
	maxPathLength int
}

// NewPolicy builds a Policy from the methods allowed for generic traffic and
// the maximum URL path length. Methods are compared case-sensitively.
func NewPolicy(genericMethods []string, maxPathLength int) (*Policy, error) {
	if maxPathLength <= 0 {
		return nil, fmt.Errorf("max path length must be positive, got %d", maxPathLength)
	}
	if len(genericMethods) == 0 {
		return nil, fmt.Errorf("at least one generic method is required")
	}
	return &Policy{generic: toSet(genericMethods), maxPathLength: maxPathLength}, nil
}

// DefaultPolicy allows GET and HEAD for generic traffic and paths up to
// DefaultMaxPathLength bytes.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy([]string{http.MethodGet, http.MethodHead}, DefaultMaxPathLength)
	return p
}

// MaxPathLength returns the configured limit.
func (p *Policy) MaxPathLength() int { return p.maxPathLength }

// GenericMethods returns the generic allow-list, sorted.
func (p *Policy) GenericMethods() []string {
	out := make([]string, 0, len(p.generic))
	for m := range p.generic {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Result is the verdict for one request. A valid result has no Status and
// no Message; an invalid one has both.
type Result struct {
	Valid    bool
	Status   int
	Message  string
	Reason   string
	Families protocol.Set
}

// Err returns the rejection as an error, or nil when the request passed.
func (r Result) Err() error {
	switch r.Status {
	case 0:
		return nil
	case ErrMethodNotAllowed.Status:
		return ErrMethodNotAllowed
	case ErrPathTooLong.Status:
		return ErrPathTooLong
	default:
		return &Error{Status: r.Status, Reason: r.Reason, msg: r.Message}
	}
}

func reject(e *Error, families protocol.Set) Result {
	return Result{Status: e.Status, Message: e.msg, Reason: e.Reason, Families: families}
}

// Validate runs the admission checks. The method check comes first, so a
// request that fails both reports 405.
func (p *Policy) Validate(r *http.Request, u *url.URL) Result {
	families := protocol.Detect(r, u)

	allowed := p.generic
	if families.Privileged() {
		allowed = privileged
	}

	var method string
	if r != nil {
		method = r.Method
	}
	if _, ok := allowed[method]; !ok {
		return reject(ErrMethodNotAllowed, families)
	}

	var path string
	switch {
	case u != nil:
		path = u.Path
	case r != nil && r.URL != nil:
		path = r.URL.Path
	}
	if len(path) > p.maxPathLength {
		return reject(ErrPathTooLong, families)
	}

	return Result{Valid: true, Families: families}
}

// ValidateRequest is Validate with the policy passed explicitly.
func ValidateRequest(r *http.Request, u *url.URL, p *Policy) Result {
	return p.Validate(r, u)
}

func toSet(methods []string) map[string]struct{} {
	s := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		s[m] = struct{}{}
	}
	return s
}
