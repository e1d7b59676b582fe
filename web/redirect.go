package web

import "github.com/freekieb7/embedio/http"

// RedirectModule answers every request below its base route with a redirect.
type RedirectModule struct {
	ModuleBase
	target string
	status int
}

func NewRedirectModule(baseRoute, target string, status int) *RedirectModule {
	if status < 300 || status > 399 {
		status = http.StatusFound
	}
	return &RedirectModule{
		ModuleBase: NewModuleBase(baseRoute, true),
		target:     target,
		status:     status,
	}
}

func (m *RedirectModule) HandleRequest(ctx *http.Context) error {
	return ctx.Response.Redirect(m.target, m.status)
}
