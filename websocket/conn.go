package websocket

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/freekieb7/embedio/http"
	"github.com/google/uuid"
)

type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Stats are the traffic counters of a connection.
type Stats struct {
	FramesIn    uint64
	FramesOut   uint64
	BytesIn     uint64
	BytesOut    uint64
	MessagesIn  uint64
	MessagesOut uint64
}

// Conn is a server side websocket connection. ReadMessage must be called
// from a single goroutine; sends may come from any goroutine.
type Conn struct {
	ID string

	netConn     net.Conn
	bw          *bufio.Writer
	reader      *FrameReader
	assembler   messageAssembler
	opts        Options
	compressed  bool
	subprotocol string
	request     *http.Request
	logger      *slog.Logger

	state     atomic.Int32
	sendMu    sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	peerClose *CloseError

	framesIn, framesOut     atomic.Uint64
	bytesIn, bytesOut       atomic.Uint64
	messagesIn, messagesOut atomic.Uint64
}

func newConn(netConn net.Conn, rw *bufio.ReadWriter, opts Options, compressed bool, subprotocol string, req *http.Request) *Conn {
	reader := NewFrameReader(rw.Reader)
	reader.MaxPayloadLength = opts.MaxPayloadLength
	reader.Compression = compressed

	id := uuid.NewString()
	c := &Conn{
		ID:          id,
		netConn:     netConn,
		bw:          rw.Writer,
		reader:      reader,
		assembler:   messageAssembler{maxLength: opts.MaxPayloadLength},
		opts:        opts,
		compressed:  compressed,
		subprotocol: subprotocol,
		request:     req,
		logger:      opts.Logger.With(slog.String("websocket", id)),
		closed:      make(chan struct{}),
	}

	// the handshake deadline must not cut the connection
	netConn.SetDeadline(time.Time{})
	activeConnections.Add(context.Background(), 1)

	if opts.KeepAliveInterval > 0 {
		go c.keepAlive(opts.KeepAliveInterval)
	}
	return c
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// Compressed reports whether permessage-deflate was negotiated.
func (c *Conn) Compressed() bool {
	return c.compressed
}

// Request is the upgrade request.
func (c *Conn) Request() *http.Request {
	return c.request
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Done is closed once the socket is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) Stats() Stats {
	return Stats{
		FramesIn:    c.framesIn.Load(),
		FramesOut:   c.framesOut.Load(),
		BytesIn:     c.bytesIn.Load(),
		BytesOut:    c.bytesOut.Load(),
		MessagesIn:  c.messagesIn.Load(),
		MessagesOut: c.messagesOut.Load(),
	}
}

// Send writes data as one message, compressed when negotiated and fragmented
// into FragmentSize frames.
func (c *Conn) Send(ctx context.Context, data []byte, text bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.State() != StateOpen {
		return ErrConnClosed
	}

	opcode := OpBinary
	if text {
		opcode = OpText
	}

	payload, compressed := data, false
	if c.compressed && len(data) >= c.opts.CompressionThreshold {
		var err error
		if payload, err = compressMessage(data, c.opts.CompressionLevel); err != nil {
			return err
		}
		compressed = true
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.setWriteDeadline(ctx)
	for _, f := range Fragment(opcode, payload, c.opts.FragmentSize, compressed) {
		if err := c.writeFrameLocked(f); err != nil {
			return fmt.Errorf("websocket: send: %w", err)
		}
	}
	if err := c.bw.Flush(); err != nil {
		return fmt.Errorf("websocket: send: %w", err)
	}

	c.messagesOut.Add(1)
	return nil
}

func (c *Conn) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, []byte(text), true)
}

func (c *Conn) Ping(ctx context.Context, data []byte) error {
	if len(data) > MaxControlPayload {
		return ErrControlTooLong
	}
	if c.State() != StateOpen {
		return ErrConnClosed
	}
	return c.writeControl(ctx, OpPing, data)
}

func (c *Conn) writeControl(ctx context.Context, opcode Opcode, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.setWriteDeadline(ctx)
	f := &Frame{Fin: FinFinal, Opcode: opcode, PayloadLength: uint64(len(payload)), Payload: payload}
	if err := c.writeFrameLocked(f); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *Conn) writeFrameLocked(f *Frame) error {
	buf := AppendFrame(make([]byte, 0, maxHeaderSize+len(f.Payload)), f)
	if _, err := c.bw.Write(buf); err != nil {
		return err
	}

	c.framesOut.Add(1)
	c.bytesOut.Add(uint64(len(buf)))
	framesSent.Add(context.Background(), 1)
	return nil
}

func (c *Conn) setWriteDeadline(ctx context.Context) {
	var deadline time.Time
	if c.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	c.netConn.SetWriteDeadline(deadline)
}

// Close starts the closing handshake. The socket is closed when the peer
// answers or after CloseTimeout.
func (c *Conn) Close(status CloseStatus, reason string) error {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CloseTimeout)
	defer cancel()
	if err := c.writeControl(ctx, OpClose, closePayload(status, reason)); err != nil {
		c.shutdown()
		return fmt.Errorf("websocket: close: %w", err)
	}

	c.netConn.SetReadDeadline(time.Now().Add(c.opts.CloseTimeout))
	time.AfterFunc(c.opts.CloseTimeout, c.shutdown)
	return nil
}

// fail closes the connection after a protocol violation.
func (c *Conn) fail(status CloseStatus, reason string) {
	if c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.CloseTimeout)
		c.writeControl(ctx, OpClose, closePayload(status, reason))
		cancel()
	}
	c.shutdown()
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.netConn.Close()
		close(c.closed)
		activeConnections.Add(context.Background(), -1)
	})
}

// ReadMessage returns the next data message. Pings are answered and pongs
// dropped on the way. After the peer's close frame it returns a *CloseError.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		f, err := c.reader.ReadFrame()
		if err != nil {
			return Message{}, c.readFailed(err)
		}

		c.framesIn.Add(1)
		c.bytesIn.Add(f.PayloadLength)
		framesReceived.Add(context.Background(), 1)

		if f.Opcode.IsControl() {
			if err := c.handleControl(f); err != nil {
				return Message{}, err
			}
			continue
		}

		msg, err := c.assembler.push(f)
		if err != nil {
			return Message{}, c.readFailed(err)
		}
		if msg != nil {
			c.messagesIn.Add(1)
			return *msg, nil
		}
	}
}

func (c *Conn) readFailed(err error) error {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		c.logger.Info("Protocol violation", slog.Any("error", err))
		c.fail(perr.Status, perr.Err.Error())
		return err
	}

	closing := c.State() != StateOpen
	c.shutdown()
	if c.peerClose != nil {
		return c.peerClose
	}
	if closing {
		return ErrConnClosed
	}
	c.logger.Debug("Read failed", slog.Any("error", err))
	return fmt.Errorf("%w: %v", ErrConnClosed, err)
}

func (c *Conn) handleControl(f *Frame) error {
	switch f.Opcode {
	case OpPing:
		if c.State() != StateOpen {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.CloseTimeout)
		defer cancel()
		if err := c.writeControl(ctx, OpPong, f.Payload); err != nil {
			return c.readFailed(err)
		}
		return nil
	case OpPong:
		return nil
	}

	status, reason, err := parseClosePayload(f.Payload)
	if err != nil {
		return c.readFailed(err)
	}

	c.peerClose = &CloseError{Status: status, Reason: reason}
	if c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.CloseTimeout)
		c.writeControl(ctx, OpClose, closePayload(status, ""))
		cancel()
	}
	c.shutdown()
	return c.peerClose
}

func (c *Conn) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := c.Ping(ctx, nil)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Serve reads messages until the connection closes, handing each one to
// onMessage. When ctx is done the connection is closed with 1001.
func (c *Conn) Serve(ctx context.Context, onMessage func(Message)) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close(CloseEndpointUnavailable, "server shutting down")
	})
	defer stop()

	for {
		msg, err := c.ReadMessage()
		if err != nil {
			return err
		}
		onMessage(msg)
	}
}

// closePayload encodes a close frame body. CloseEmpty yields no body.
func closePayload(status CloseStatus, reason string) []byte {
	if status == CloseEmpty {
		return nil
	}
	if !status.isSendable() {
		status = CloseServerError
	}

	maxReason := MaxControlPayload - 2
	for len(reason) > maxReason {
		_, size := utf8.DecodeLastRuneInString(reason)
		reason = reason[:len(reason)-size]
	}

	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), uint16(status))
	return append(payload, reason...)
}

func parseClosePayload(payload []byte) (CloseStatus, string, error) {
	switch {
	case len(payload) == 0:
		return CloseEmpty, "", nil
	case len(payload) == 1:
		return 0, "", newProtocolError(CloseProtocolError, ErrInvalidClosePayload)
	}

	status := CloseStatus(binary.BigEndian.Uint16(payload))
	if !status.isSendable() {
		return 0, "", newProtocolError(CloseProtocolError, ErrInvalidClosePayload)
	}

	reason := payload[2:]
	if !utf8.Valid(reason) {
		return 0, "", newProtocolError(CloseInvalidPayloadData, ErrInvalidUTF8)
	}
	return status, string(reason), nil
}
