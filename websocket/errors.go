package websocket

import (
	"errors"
	"fmt"
)

var (
	ErrControlFragmented   = errors.New("websocket: a control frame is fragmented")
	ErrControlTooLong      = errors.New("websocket: control frame payload exceeds 125 bytes")
	ErrUnknownOpcode       = errors.New("websocket: unknown opcode")
	ErrReservedBits        = errors.New("websocket: reserved bits set without a negotiated extension")
	ErrCompressedControl   = errors.New("websocket: compression bit set on a non-data frame")
	ErrPayloadTooBig       = errors.New("websocket: payload exceeds the maximum length")
	ErrUnmaskedFrame       = errors.New("websocket: client frame is not masked")
	ErrUnexpectedContinue  = errors.New("websocket: continuation frame without a message in progress")
	ErrMessageInterrupted  = errors.New("websocket: data frame while a fragmented message is in progress")
	ErrInvalidUTF8         = errors.New("websocket: text message is not valid UTF-8")
	ErrInvalidClosePayload = errors.New("websocket: invalid close frame payload")

	ErrConnClosed = errors.New("websocket: connection closed")
)

// ProtocolError is a protocol violation. The connection is closed with Status.
type ProtocolError struct {
	Status CloseStatus
	Err    error
}

func newProtocolError(status CloseStatus, err error) *ProtocolError {
	return &ProtocolError{Status: status, Err: err}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v (close %d %s)", e.Err, uint16(e.Status), e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var (
	ErrNotWebSocket       = errors.New("websocket: not a websocket upgrade request")
	ErrBadMethod          = errors.New("websocket: upgrade request method is not GET")
	ErrUnsupportedVersion = errors.New("websocket: unsupported Sec-WebSocket-Version")
	ErrBadKey             = errors.New("websocket: missing or malformed Sec-WebSocket-Key")
)

// HandshakeError is a rejected upgrade. Status is the HTTP status answered.
type HandshakeError struct {
	Status int
	Err    error
}

func (e *HandshakeError) Error() string {
	return e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// CloseError is returned by reads once the peer closed the connection.
type CloseError struct {
	Status CloseStatus
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket: closed with %d (%s)", uint16(e.Status), e.Status)
	}
	return fmt.Sprintf("websocket: closed with %d (%s): %s", uint16(e.Status), e.Status, e.Reason)
}
