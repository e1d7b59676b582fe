package http

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 256 * 1024
)

// errNoRequest means the peer went away or idled out before sending a request head.
var errNoRequest = errors.New("http: no request received")

// Connection owns one accepted socket. It parses request heads, hands the
// resulting contexts to the owning Listener and waits for each response to be
// closed before reading the next request, so requests on one connection are
// processed strictly in order.
type Connection struct {
	ID string

	conn     net.Conn
	endpoint *EndPointListener
	cfg      *Config
	secure   bool
	logger   *slog.Logger

	buf    []byte
	end    int
	parser headParser
	// headSize counts the bytes consumed by the current request head.
	headSize int
	bw       *bufio.Writer
	reuses   int

	listener atomic.Pointer[Listener]
	current  atomic.Pointer[Context]
	done     chan bool
	closing  chan struct{}
	hijacked atomic.Bool
	closed   atomic.Bool
	once     sync.Once
}

func newConnection(conn net.Conn, endpoint *EndPointListener) *Connection {
	c := &Connection{
		ID:       uuid.NewString(),
		conn:     conn,
		endpoint: endpoint,
		cfg:      &endpoint.manager.cfg,
		secure:   endpoint.secure,
		logger:   endpoint.manager.cfg.Logger,
		buf:      make([]byte, DefaultReadBufferSize),
		bw:       bufio.NewWriterSize(conn, DefaultWriteBufferSize),
		done:     make(chan bool, 1),
		closing:  make(chan struct{}),
	}
	c.parser.reset()
	return c
}

// Reuses is the number of requests served before the current one.
func (c *Connection) Reuses() int {
	return c.reuses
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) serve() {
	defer c.close()

	for {
		timeout := c.cfg.FirstRequestTimeout
		if c.reuses > 0 {
			timeout = c.cfg.KeepAliveTimeout
		}

		if err := c.readHead(timeout); err != nil {
			if !errors.Is(err, errNoRequest) {
				badRequests.Add(context.Background(), 1)
				c.logger.Info("bad request", "connection", c.ID, "remote", c.conn.RemoteAddr(), "error", err)
				c.writeError(StatusBadRequest, "Bad Request")
				c.linger()
			}
			return
		}
		parsedRequests.Add(context.Background(), 1)

		if !c.dispatch() {
			return
		}

		select {
		case keepAlive := <-c.done:
			if c.hijacked.Load() || !keepAlive {
				return
			}
		case <-c.closing:
			return
		}

		c.reset()
	}
}

// dispatch turns the parsed head into a Context and queues it on the owning listener.
func (c *Connection) dispatch() bool {
	req := c.parser.req
	if err := req.finishHead(); err != nil {
		badRequests.Add(context.Background(), 1)
		c.logger.Info("bad request", "connection", c.ID, "error", err)
		c.writeError(StatusBadRequest, "Bad Request")
		c.linger()
		return false
	}
	req.RemoteAddr = c.conn.RemoteAddr()
	req.LocalAddr = c.conn.LocalAddr()
	req.IsSecure = c.secure
	if req.Host == "" {
		// HTTP/1.0 without Host answers to the address it arrived on
		req.Host = req.LocalAddr.String()
	}

	prefix := c.endpoint.match(req.Host, req.Path)
	if prefix == nil {
		c.writeError(StatusNotFound, "Not Found")
		return false
	}

	listener := prefix.owner
	if previous := c.listener.Swap(listener); previous != listener {
		if previous != nil {
			previous.removeConnection(c)
		}
		listener.addConnection(c)
	}

	res := newResponse(req, c.bw)
	var sendContinue func() error
	if req.ExpectsContinue() && req.HasBody() {
		sendContinue = c.sendContinue
	}
	req.Body = newRequestStream(c, req, sendContinue)

	hctx := newContext(listener.ctx, uuid.NewString(), c, req, res)
	hctx.Prefix = prefix
	c.current.Store(hctx)

	c.conn.SetReadDeadline(time.Time{})
	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}

	if !listener.enqueue(hctx) {
		c.writeError(StatusServiceUnavailable, "Service Unavailable")
		return false
	}
	return true
}

// readHead accumulates bytes until the request head is complete.
func (c *Connection) readHead(timeout time.Duration) error {
	c.headSize = 0
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return errNoRequest
	}

	for {
		if c.parser.position < c.end {
			before := c.parser.position
			done, err := c.parser.process(c.buf[:c.end])
			c.headSize += c.parser.position - before
			if err != nil {
				return err
			}
			if c.headSize > c.cfg.HeaderLimit {
				return ErrHeadersTooLarge
			}
			if done {
				return nil
			}
		}

		// everything buffered has been consumed by the parser
		c.parser.position, c.end = 0, 0
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.end = n
			continue
		}
		if err != nil {
			if c.headSize > 0 {
				c.logger.Debug("incomplete request head", "connection", c.ID, "error", err)
			}
			return errNoRequest
		}
	}
}

// Read serves buffered bytes before reading the socket.
func (c *Connection) Read(p []byte) (int, error) {
	if c.parser.position < c.end {
		n := copy(p, c.buf[c.parser.position:c.end])
		c.parser.position += n
		return n, nil
	}
	return c.conn.Read(p)
}

func (c *Connection) ReadByte() (byte, error) {
	if c.parser.position >= c.end {
		n, err := c.conn.Read(c.buf)
		c.parser.position, c.end = 0, n
		if n == 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return 0, err
		}
	}

	b := c.buf[c.parser.position]
	c.parser.position++
	return b, nil
}

func (c *Connection) sendContinue() error {
	if err := write(c.bw, continueReply); err != nil {
		return err
	}
	return c.bw.Flush()
}

// reset keeps pipelined bytes and prepares the parser for the next request.
func (c *Connection) reset() {
	leftover := copy(c.buf, c.buf[c.parser.position:c.end])
	c.parser.reset()
	c.end = leftover
	c.current.Store(nil)
	c.reuses++
}

func (c *Connection) requestDone(keepAlive bool) {
	select {
	case c.done <- keepAlive:
	default:
	}
}

func (c *Connection) writeError(status int, message string) {
	res := &Response{
		StatusCode:    status,
		Header:        make(Header),
		ContentLength: -1,
		protoMinor:    1,
		w:             c.bw,
	}
	if err := res.WithText(message); err != nil {
		c.logger.Debug("writing error response failed", "connection", c.ID, "error", err)
		return
	}
	res.close()
}

// linger half-closes the socket and discards what the client still sends, so
// the error response is not lost to a connection reset.
func (c *Connection) linger() {
	type closeWriter interface {
		CloseWrite() error
	}

	if cw, ok := c.conn.(closeWriter); ok {
		cw.CloseWrite()
	}
	c.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	io.Copy(io.Discard, io.LimitReader(c.conn, maxLingerBytes))
}

func (c *Connection) isHijacked() bool {
	return c.hijacked.Load()
}

func (c *Connection) hijack() (net.Conn, *bufio.ReadWriter, error) {
	if !c.hijacked.CompareAndSwap(false, true) {
		return nil, nil, ErrConnectionTaken
	}

	leftover := append([]byte(nil), c.buf[c.parser.position:c.end]...)
	c.parser.position = c.end
	c.conn.SetDeadline(time.Time{})

	if l := c.listener.Load(); l != nil {
		l.removeConnection(c)
	}
	c.endpoint.removeConnection(c)

	r := bufio.NewReader(io.MultiReader(bytes.NewReader(leftover), c.conn))
	return c.conn, bufio.NewReadWriter(r, bufio.NewWriter(c.conn)), nil
}

// close tears the connection down. A hijacked socket is left open for its new owner.
func (c *Connection) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		if !c.hijacked.Load() {
			if err := c.conn.Close(); err != nil {
				c.logger.Debug("closing connection failed", "connection", c.ID, "error", err)
			}
			if l := c.listener.Load(); l != nil {
				l.removeConnection(c)
			}
			c.endpoint.removeConnection(c)
		}
		if current := c.current.Load(); current != nil {
			current.cancel()
		}
		activeConnections.Add(context.Background(), -1)
		close(c.closing)
	})
}
