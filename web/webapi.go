package web

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/freekieb7/embedio/http"
)

// Params are the route parameters bound for a handler, in pattern order.
type Params []http.Param

// Get returns the value of name and whether it was present in the path.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, param.Present
		}
	}
	return "", false
}

// Value returns the value of name, empty when absent.
func (p Params) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

type HandlerFunc func(ctx *http.Context, params Params) Result

// Route binds a verb and a pattern, relative to the module base route, to a handler.
type Route struct {
	Verb    string
	Pattern string
	Handler HandlerFunc
}

// Controller exposes its routes as an explicit table.
type Controller interface {
	Routes() []Route
}

type compiledRoute struct {
	verb    string
	pattern *RoutePattern
	handler HandlerFunc
}

// WebAPIModule resolves (verb, sub-path) to a controller handler. The first
// registered route matching both wins. A path without any matching route
// falls through to the next module; a path matched under other verbs only
// is answered 405.
type WebAPIModule struct {
	ModuleBase

	mu     sync.RWMutex
	routes []compiledRoute
}

func NewWebAPIModule(baseRoute string) *WebAPIModule {
	return &WebAPIModule{
		ModuleBase: NewModuleBase(baseRoute, false),
	}
}

func (m *WebAPIModule) RegisterController(c Controller) error {
	routes := c.Routes()
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		if r.Handler == nil {
			return fmt.Errorf("%w: %s %q has no handler", ErrInvalidRoute, r.Verb, r.Pattern)
		}
		pattern, err := ParseRoute(r.Pattern)
		if err != nil {
			return err
		}
		compiled = append(compiled, compiledRoute{
			verb:    strings.ToUpper(r.Verb),
			pattern: pattern,
			handler: r.Handler,
		})
	}

	m.mu.Lock()
	m.routes = append(m.routes, compiled...)
	m.mu.Unlock()
	return nil
}

// Handle registers a single route.
func (m *WebAPIModule) Handle(verb, pattern string, handler HandlerFunc) error {
	return m.RegisterController(routeTable{{Verb: verb, Pattern: pattern, Handler: handler}})
}

type routeTable []Route

func (t routeTable) Routes() []Route {
	return t
}

func (m *WebAPIModule) HandleRequest(ctx *http.Context) error {
	m.mu.RLock()
	routes := m.routes
	m.mu.RUnlock()

	var allowed []string
	for _, r := range routes {
		params, ok := r.pattern.Match(ctx.Route.SubPath)
		if !ok {
			continue
		}
		if r.verb != ctx.Request.Method {
			if !slices.Contains(allowed, r.verb) {
				allowed = append(allowed, r.verb)
			}
			continue
		}

		ctx.Route.Params = params
		ctx.SetHandled()
		return r.handler(ctx, Params(params)).write(ctx.Response)
	}

	if len(allowed) > 0 {
		ctx.Response.Header.Set("Allow", strings.Join(allowed, ", "))
		return NewHTTPError(http.StatusMethodNotAllowed, "")
	}
	return nil
}
