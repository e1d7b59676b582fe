package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/freekieb7/embedio/http"
)

var (
	ErrDuplicateModule = errors.New("web: module name already registered")
	ErrModulePanic     = errors.New("web: module panicked")
)

type namedModule struct {
	name   string
	module Module
}

// ModuleCollection runs modules in registration order.
type ModuleCollection struct {
	mu      sync.RWMutex
	modules []namedModule

	// OnUnhandled answers requests no module handled. The default answers 404.
	OnUnhandled func(ctx *http.Context) error

	logger *slog.Logger
}

func NewModuleCollection(l *slog.Logger) *ModuleCollection {
	if l == nil {
		l = logger
	}
	return &ModuleCollection{
		OnUnhandled: notFound,
		logger:      l,
	}
}

func notFound(ctx *http.Context) error {
	return NewHTTPError(http.StatusNotFound, "")
}

func (mc *ModuleCollection) Add(name string, m Module) error {
	if err := ValidateBaseRoute(m.BaseRoute()); err != nil {
		return fmt.Errorf("module %q: %w", name, err)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, nm := range mc.modules {
		if nm.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
		}
	}
	mc.modules = append(mc.modules, namedModule{name: name, module: m})
	return nil
}

func (mc *ModuleCollection) Get(name string) (Module, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for _, nm := range mc.modules {
		if nm.name == name {
			return nm.module, true
		}
	}
	return nil, false
}

func (mc *ModuleCollection) Names() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	names := make([]string, len(mc.modules))
	for i, nm := range mc.modules {
		names[i] = nm.name
	}
	return names
}

func (mc *ModuleCollection) snapshot() []namedModule {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]namedModule(nil), mc.modules...)
}

// Start starts every module implementing Starter.
func (mc *ModuleCollection) Start(ctx context.Context) {
	for _, nm := range mc.snapshot() {
		if s, ok := nm.module.(Starter); ok {
			s.Start(ctx)
		}
	}
}

// Dispatch runs the modules matching the request path until one of them
// handles it. Errors and panics are translated into an error response.
func (mc *ModuleCollection) Dispatch(ctx *http.Context) {
	for _, nm := range mc.snapshot() {
		base := nm.module.BaseRoute()
		subPath, ok := matchBaseRoute(base, ctx.Request.Path)
		if !ok {
			continue
		}

		ctx.Route = http.RouteMatch{BaseRoute: base, SubPath: subPath}
		if err := mc.invoke(ctx, nm); err != nil {
			mc.fail(ctx, nm.name, err)
			return
		}

		if ctx.IsHandled() {
			return
		}
		if nm.module.IsFinalHandler() {
			ctx.SetHandled()
			return
		}
	}

	ctx.Route = http.RouteMatch{SubPath: ctx.Request.Path}
	if err := mc.OnUnhandled(ctx); err != nil {
		mc.fail(ctx, "", err)
	}
}

func (mc *ModuleCollection) invoke(ctx *http.Context, nm namedModule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mc.logger.Error("Module panicked",
				slog.String("module", nm.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrModulePanic, r)
		}
	}()

	return nm.module.HandleRequest(ctx)
}

func (mc *ModuleCollection) fail(ctx *http.Context, module string, err error) {
	var herr *HTTPError
	if !errors.As(err, &herr) {
		mc.logger.Error("Request failed",
			slog.String("module", module),
			slog.String("path", ctx.Request.Path),
			slog.Any("error", err))
	}

	ctx.SetHandled()
	WriteError(ctx, err)
}
