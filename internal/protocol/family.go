// Package protocol sniffs inbound requests and tells which upstream
// protocol family they belong to. Every predicate is a pure function of
// the request and its URL: no I/O, no shared state, safe on any input.
package protocol

import (
	"net/http"
	"net/url"
	"strings"
)

// Family is the protocol a request has been classified into.
type Family uint8

const (
	Generic Family = iota
	ContainerRegistry
	Git
	GitLFS
	AIInference
)

func (f Family) String() string {
	switch f {
	case ContainerRegistry:
		return "container_registry"
	case Git:
		return "git"
	case GitLFS:
		return "git_lfs"
	case AIInference:
		return "ai_inference"
	default:
		return "generic"
	}
}

// Predicate reports whether a request belongs to one family. When u is nil
// the request's own URL is inspected.
type Predicate func(r *http.Request, u *url.URL) bool

// Detector binds a family to its predicate.
type Detector struct {
	Family Family
	Match  Predicate
}

// detectors is evaluated in order by Classify. GitLFS sits ahead of Git
// because LFS clients also send a git/ user agent.
var detectors = []Detector{
	{Family: ContainerRegistry, Match: IsDockerRequest},
	{Family: GitLFS, Match: IsGitLFSRequest},
	{Family: Git, Match: IsGitRequest},
	{Family: AIInference, Match: IsAIInferenceRequest},
}

// Detectors returns a copy of the detector table in evaluation order.
func Detectors() []Detector {
	out := make([]Detector, len(detectors))
	copy(out, detectors)
	return out
}

// Set is the collection of families a single request matched.
type Set uint8

func setOf(f Family) Set {
	if f == Generic {
		return 0
	}
	return Set(1) << f
}

// Has reports whether f is a member. Generic is never a member.
func (s Set) Has(f Family) bool { return f != Generic && s&setOf(f) != 0 }

// Privileged reports whether any non-generic family matched.
func (s Set) Privileged() bool { return s != 0 }

// Primary is the first member in detector order, or Generic.
func (s Set) Primary() Family {
	for _, d := range detectors {
		if s.Has(d.Family) {
			return d.Family
		}
	}
	return Generic
}

func (s Set) String() string {
	if s == 0 {
		return Generic.String()
	}
	names := make([]string, 0, len(detectors))
	for _, d := range detectors {
		if s.Has(d.Family) {
			names = append(names, d.Family.String())
		}
	}
	return strings.Join(names, ",")
}

// Detect evaluates every detector and returns all matching families.
// It never stops at the first hit: callers that widen policy on any match
// need the full picture.
func Detect(r *http.Request, u *url.URL) Set {
	var s Set
	for _, d := range detectors {
		if d.Match(r, u) {
			s |= setOf(d.Family)
		}
	}
	return s
}

// Classify returns the first matching family in detector order.
func Classify(r *http.Request, u *url.URL) Family {
	for _, d := range detectors {
		if d.Match(r, u) {
			return d.Family
		}
	}
	return Generic
}

func requestURL(r *http.Request, u *url.URL) *url.URL {
	if u != nil {
		return u
	}
	if r != nil {
		return r.URL
	}
	return nil
}

func pathOf(r *http.Request, u *url.URL) string {
	if ru := requestURL(r, u); ru != nil {
		return ru.Path
	}
	return ""
}

// header joins every line of a repeated header with ", ", the way a
// comma-separated list is folded.
func header(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Header.Values(name), ", ")
}

func method(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Method
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
