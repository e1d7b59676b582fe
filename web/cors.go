package web

import (
	nethttp "net/http"

	"github.com/freekieb7/embedio/http"
	"github.com/rs/cors"
)

// CorsModule adds CORS headers to the requests below its base route and
// answers preflight requests itself.
type CorsModule struct {
	ModuleBase
	cors *cors.Cors
}

func NewCorsModule(baseRoute string, opts cors.Options) *CorsModule {
	return &CorsModule{
		ModuleBase: NewModuleBase(baseRoute, false),
		cors:       cors.New(opts),
	}
}

func (m *CorsModule) HandleRequest(ctx *http.Context) error {
	r := bridgeRequest(ctx)
	m.cors.HandlerFunc(&responseWriter{res: ctx.Response}, r)

	if r.Method == nethttp.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		ctx.SetHandled()
	}
	return nil
}
