package web

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/freekieb7/embedio/http"
)

var ErrInvalidRoute = errors.New("web: invalid route pattern")

var parameterName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type routeSegment struct {
	literal  string
	name     string
	optional bool
}

func (s routeSegment) isParameter() bool {
	return s.name != ""
}

// RoutePattern is a compiled route such as "/people/{id}/{detail?}".
//
// Literal segments match exactly, "{name}" binds one non-empty segment and
// "{name?}" binds one segment that may be absent. A path is matched against
// the full pattern first, then against the pattern without its optional
// segments.
type RoutePattern struct {
	pattern  string
	segments []routeSegment
	names    []string
	full     *regexp.Regexp
	stripped *regexp.Regexp
	// strippedNames are the parameters captured by stripped, in group order.
	strippedNames []string
}

func ParseRoute(pattern string) (*RoutePattern, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidRoute, pattern)
	}

	r := &RoutePattern{pattern: pattern}
	seen := make(map[string]bool)
	for _, part := range strings.Split(pattern[1:], "/") {
		if part == "" {
			continue
		}

		if !strings.ContainsAny(part, "{}") {
			r.segments = append(r.segments, routeSegment{literal: part})
			continue
		}
		if part[0] != '{' || part[len(part)-1] != '}' {
			return nil, fmt.Errorf("%w: %q: a parameter must span a whole segment", ErrInvalidRoute, pattern)
		}

		name := part[1 : len(part)-1]
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")
		if !parameterName.MatchString(name) {
			return nil, fmt.Errorf("%w: %q: invalid parameter name %q", ErrInvalidRoute, pattern, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q: duplicate parameter %q", ErrInvalidRoute, pattern, name)
		}
		seen[name] = true

		r.segments = append(r.segments, routeSegment{name: name, optional: optional})
		r.names = append(r.names, name)
	}

	var full, stripped strings.Builder
	full.WriteByte('^')
	stripped.WriteByte('^')
	for _, s := range r.segments {
		switch {
		case !s.isParameter():
			full.WriteString("/" + regexp.QuoteMeta(s.literal))
			stripped.WriteString("/" + regexp.QuoteMeta(s.literal))
		case s.optional:
			full.WriteString("(?:/([^/]*))?")
		default:
			full.WriteString("/([^/]+)")
			stripped.WriteString("/([^/]+)")
			r.strippedNames = append(r.strippedNames, s.name)
		}
	}
	full.WriteString("/?$")
	stripped.WriteString("/?$")

	var err error
	if r.full, err = regexp.Compile(full.String()); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRoute, pattern, err)
	}
	if r.stripped, err = regexp.Compile(stripped.String()); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRoute, pattern, err)
	}
	return r, nil
}

func MustParseRoute(pattern string) *RoutePattern {
	r, err := ParseRoute(pattern)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RoutePattern) String() string {
	return r.pattern
}

// Names are the parameter names in pattern order.
func (r *RoutePattern) Names() []string {
	return r.names
}

// Match binds the parameters of path. Absent optional parameters are
// returned with Present set to false.
func (r *RoutePattern) Match(path string) ([]http.Param, bool) {
	if m := r.full.FindStringSubmatch(path); m != nil {
		return r.bind(r.names, m[1:]), true
	}
	if m := r.stripped.FindStringSubmatch(path); m != nil {
		return r.bind(r.strippedNames, m[1:]), true
	}
	return nil, false
}

func (r *RoutePattern) bind(names, values []string) []http.Param {
	params := make([]http.Param, 0, len(r.names))
	for _, name := range r.names {
		p := http.Param{Name: name}
		for i, n := range names {
			if n == name && values[i] != "" {
				p.Value = values[i]
				p.Present = true
			}
		}
		params = append(params, p)
	}
	return params
}
