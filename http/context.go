package http

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freekieb7/embedio/session"
)

// Param is one path parameter bound by a route pattern.
type Param struct {
	Name  string
	Value string
	// Present is false for an optional parameter absent from the path.
	Present bool
}

// RouteMatch is the result of matching a request path against a module.
type RouteMatch struct {
	BaseRoute string
	// SubPath is relative to BaseRoute and always starts with "/".
	SubPath string
	// Params are ordered as their capture groups in the pattern.
	Params []Param
}

// Param returns the value bound to name.
func (m RouteMatch) Param(name string) (string, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p.Value, p.Present
		}
	}
	return "", false
}

// Context is the per-request aggregate passed through the module pipeline.
type Context struct {
	ID       string
	Request  *Request
	Response *Response
	Route    RouteMatch
	Session  session.Session
	Items    map[string]any
	Prefix   *ListenerPrefix

	ctx       context.Context
	cancel    context.CancelFunc
	handled   atomic.Bool
	start     time.Time
	conn      *Connection
	closeOnce sync.Once
	onClose   []func(*Context)
}

func newContext(parent context.Context, id string, conn *Connection, req *Request, res *Response) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{
		ID:       id,
		Request:  req,
		Response: res,
		Items:    make(map[string]any),
		ctx:      ctx,
		cancel:   cancel,
		start:    time.Now(),
		conn:     conn,
	}
}

// Context is cancelled when the listener stops or the connection is force-closed.
func (c *Context) Context() context.Context {
	return c.ctx
}

// SetContext replaces the request context. ctx must be derived from Context()
// so that it is still cancelled with the connection.
func (c *Context) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *Context) IsHandled() bool {
	return c.handled.Load()
}

// SetHandled stops the module pipeline after the current module.
func (c *Context) SetHandled() {
	c.handled.Store(true)
}

// Age is the time elapsed since the request head was parsed.
func (c *Context) Age() time.Duration {
	return time.Since(c.start)
}

// OnClose registers a callback run once the response has been closed.
func (c *Context) OnClose(fn func(*Context)) {
	c.onClose = append(c.onClose, fn)
}

// Hijack flushes the response head and hands the socket over to the caller.
// The returned reader holds bytes already received past the request head.
// The connection leaves the listener without closing the socket.
func (c *Context) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if err := c.Response.Flush(); err != nil {
		return nil, nil, err
	}
	return c.conn.hijack()
}

// Close closes the response and returns the connection to its read loop,
// either to await the next request or to be closed.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		keepAlive := false
		if !c.conn.isHijacked() {
			keepAlive = c.Response.close()
			if body, ok := c.Request.Body.(*RequestStream); ok && keepAlive {
				keepAlive = body.drain(c.conn.cfg.MaxBodyDrain)
			}
		}

		for _, fn := range c.onClose {
			fn(c)
		}
		c.cancel()
		c.conn.requestDone(keepAlive)
	})
}
