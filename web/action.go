package web

import (
	"strings"

	"github.com/freekieb7/embedio/http"
)

type ActionFunc func(ctx *http.Context) error

// ActionModule runs a function for the requests below its base route. It
// does not stop the pipeline unless the function marks the context handled.
type ActionModule struct {
	ModuleBase
	verb   string
	action ActionFunc
}

// NewActionModule filters on verb; an empty verb accepts any method.
func NewActionModule(baseRoute, verb string, action ActionFunc) *ActionModule {
	return &ActionModule{
		ModuleBase: NewModuleBase(baseRoute, false),
		verb:       strings.ToUpper(verb),
		action:     action,
	}
}

func (m *ActionModule) HandleRequest(ctx *http.Context) error {
	if m.verb != "" && m.verb != ctx.Request.Method {
		return nil
	}
	return m.action(ctx)
}
