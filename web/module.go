// Package web is the module pipeline on top of the http listener: modules
// claim base routes, run in registration order and may stop the chain.
package web

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/freekieb7/embedio/http"
)

var ErrInvalidBaseRoute = errors.New("web: invalid base route")

// Module handles the requests whose path starts with its base route.
type Module interface {
	// BaseRoute starts and ends with "/".
	BaseRoute() string
	// IsFinalHandler tells whether the pipeline stops after this module ran.
	IsFinalHandler() bool
	HandleRequest(ctx *http.Context) error
}

// Starter is implemented by modules with background work. Start is called
// once before the server starts listening; ctx is done on shutdown.
type Starter interface {
	Start(ctx context.Context)
}

// Housekeeper is implemented by modules with periodic maintenance, run by
// the server scheduler.
type Housekeeper interface {
	Housekeep(ctx context.Context)
}

// ModuleBase carries the base route and final flag of a module.
type ModuleBase struct {
	baseRoute string
	final     bool
}

// NewModuleBase appends the trailing slash a base route needs.
func NewModuleBase(baseRoute string, final bool) ModuleBase {
	if !strings.HasSuffix(baseRoute, "/") {
		baseRoute += "/"
	}
	return ModuleBase{baseRoute: baseRoute, final: final}
}

func (m ModuleBase) BaseRoute() string {
	return m.baseRoute
}

func (m ModuleBase) IsFinalHandler() bool {
	return m.final
}

func ValidateBaseRoute(route string) error {
	switch {
	case len(route) == 0 || route[0] != '/':
		return fmt.Errorf("%w: %q must start with '/'", ErrInvalidBaseRoute, route)
	case route[len(route)-1] != '/':
		return fmt.Errorf("%w: %q must end with '/'", ErrInvalidBaseRoute, route)
	case strings.ContainsAny(route, "{}?#"):
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidBaseRoute, route)
	case strings.Contains(route, "//"):
		return fmt.Errorf("%w: %q contains an empty segment", ErrInvalidBaseRoute, route)
	}
	return nil
}

// matchBaseRoute returns the path relative to base, starting with "/".
// "/a" matches the base route "/a/".
func matchBaseRoute(base, path string) (string, bool) {
	if strings.HasPrefix(path, base) {
		return "/" + path[len(base):], true
	}
	if path+"/" == base {
		return "/", true
	}
	return "", false
}
