package websocket

import (
	"context"
	"errors"
	"log/slog"

	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/web"
	"github.com/puzpuzpuz/xsync/v3"
)

// Handler receives the events of the connections of a Module. Calls for one
// connection are sequential.
type Handler interface {
	OnClientConnected(ctx context.Context, c *Conn)
	OnMessageReceived(ctx context.Context, c *Conn, msg Message)
	// OnClientDisconnected gets the error that ended the read loop, a
	// *CloseError when the client closed the connection.
	OnClientDisconnected(ctx context.Context, c *Conn, err error)
}

// Module upgrades the requests below its base route and serves each
// connection until it closes.
type Module struct {
	web.ModuleBase

	handler Handler
	opts    []Option
	conns   *xsync.MapOf[string, *Conn]
}

func NewModule(baseRoute string, handler Handler, opts ...Option) *Module {
	return &Module{
		ModuleBase: web.NewModuleBase(baseRoute, true),
		handler:    handler,
		opts:       opts,
		conns:      xsync.NewMapOf[string, *Conn](),
	}
}

func (m *Module) HandleRequest(ctx *http.Context) error {
	c, err := Accept(ctx, m.opts...)
	if err != nil {
		var herr *HandshakeError
		if errors.As(err, &herr) {
			return web.NewHTTPError(herr.Status, herr.Err.Error())
		}
		return err
	}

	m.conns.Store(c.ID, c)
	defer m.conns.Delete(c.ID)

	reqCtx := ctx.Context()
	c.logger.DebugContext(reqCtx, "Client connected", slog.String("remote", c.RemoteAddr().String()))
	m.handler.OnClientConnected(reqCtx, c)

	err = c.Serve(reqCtx, func(msg Message) {
		m.handler.OnMessageReceived(reqCtx, c, msg)
	})

	m.conns.Delete(c.ID)
	c.logger.DebugContext(reqCtx, "Client disconnected", slog.Any("reason", err))
	m.handler.OnClientDisconnected(reqCtx, c, err)
	return nil
}

// Connections returns the open connections.
func (m *Module) Connections() []*Conn {
	conns := make([]*Conn, 0, m.conns.Size())
	m.conns.Range(func(_ string, c *Conn) bool {
		conns = append(conns, c)
		return true
	})
	return conns
}

// Broadcast sends data to every open connection and joins the failures.
func (m *Module) Broadcast(ctx context.Context, data []byte, text bool) error {
	var errs []error
	m.conns.Range(func(_ string, c *Conn) bool {
		if err := c.Send(ctx, data, text); err != nil && !errors.Is(err, ErrConnClosed) {
			errs = append(errs, err)
		}
		return ctx.Err() == nil
	})
	return errors.Join(errs...)
}

// Start closes every connection with 1001 once ctx is done.
func (m *Module) Start(ctx context.Context) {
	context.AfterFunc(ctx, func() {
		m.CloseAll(CloseEndpointUnavailable, "server shutting down")
	})
}

func (m *Module) CloseAll(status CloseStatus, reason string) {
	m.conns.Range(func(_ string, c *Conn) bool {
		c.Close(status, reason)
		return true
	})
}

// EchoHandler sends every message back to its sender.
type EchoHandler struct{}

func (EchoHandler) OnClientConnected(context.Context, *Conn) {}

func (EchoHandler) OnMessageReceived(ctx context.Context, c *Conn, msg Message) {
	c.Send(ctx, msg.Data, msg.IsText())
}

func (EchoHandler) OnClientDisconnected(context.Context, *Conn, error) {}
