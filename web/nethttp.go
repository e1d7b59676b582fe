package web

import (
	"crypto/tls"
	nethttp "net/http"
	"strconv"

	"github.com/freekieb7/embedio/http"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// responseWriter adapts a Response to net/http handlers.
type responseWriter struct {
	res         *http.Response
	wroteHeader bool
}

func (w *responseWriter) Header() nethttp.Header {
	return w.res.Header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader || w.res.HeadersSent() {
		return
	}
	w.wroteHeader = true

	w.res.WithStatus(status)
	if n, err := strconv.ParseInt(w.res.Header.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
		w.res.ContentLength = n
	}
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.WriteHeader(nethttp.StatusOK)
	return w.res.Write(p)
}

func (w *responseWriter) Flush() {
	w.res.Flush()
}

// bridgeRequest exposes the request of ctx as a *net/http.Request.
func bridgeRequest(ctx *http.Context) *nethttp.Request {
	req := ctx.Request

	r := &nethttp.Request{
		Method:        req.Method,
		URL:           req.URL,
		Proto:         req.Proto,
		ProtoMajor:    req.ProtoMajor,
		ProtoMinor:    req.ProtoMinor,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
		Host:          req.Host,
		RequestURI:    req.RawURL,
	}
	if r.Body == nil {
		r.Body = nethttp.NoBody
	}
	if req.Chunked {
		r.TransferEncoding = []string{"chunked"}
	}
	if req.RemoteAddr != nil {
		r.RemoteAddr = req.RemoteAddr.String()
	}
	if req.IsSecure {
		r.TLS = &tls.ConnectionState{HandshakeComplete: true}
	}
	return r.WithContext(ctx.Context())
}

// HandlerModule serves requests with a net/http handler, traced by otelhttp.
type HandlerModule struct {
	ModuleBase
	handler nethttp.Handler
}

func NewHandlerModule(baseRoute string, handler nethttp.Handler) *HandlerModule {
	m := &HandlerModule{ModuleBase: NewModuleBase(baseRoute, true)}
	m.handler = otelhttp.NewHandler(handler, m.BaseRoute())
	return m
}

func (m *HandlerModule) HandleRequest(ctx *http.Context) error {
	m.handler.ServeHTTP(&responseWriter{res: ctx.Response}, bridgeRequest(ctx))
	return nil
}
