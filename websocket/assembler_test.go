package websocket

import (
	"bytes"
	"compress/flate"
	"testing"

	"github.com/freekieb7/embedio/test"
)

func TestAssemblerRejectsUnexpectedContinuation(t *testing.T) {
	a := messageAssembler{maxLength: DefaultMaxPayloadLength}

	_, err := a.push(&Frame{Fin: FinFinal, Opcode: OpContinuation, Payload: []byte("x")})
	assertProtocolError(t, err, ErrUnexpectedContinue, CloseProtocolError)
}

func TestAssemblerRejectsInterruptedMessage(t *testing.T) {
	a := messageAssembler{maxLength: DefaultMaxPayloadLength}

	msg, err := a.push(&Frame{Fin: FinMore, Opcode: OpText, Payload: []byte("par")})
	test.AssertNoError(t, err)
	test.AssertTrue(t, msg == nil, "message should not be complete")

	_, err = a.push(&Frame{Fin: FinFinal, Opcode: OpBinary, Payload: []byte("other")})
	assertProtocolError(t, err, ErrMessageInterrupted, CloseProtocolError)
}

func TestAssemblerValidatesUTF8(t *testing.T) {
	a := messageAssembler{maxLength: DefaultMaxPayloadLength}

	// a multi-byte rune split over two fragments is fine
	_, err := a.push(&Frame{Fin: FinMore, Opcode: OpText, Payload: []byte{0xE2, 0x82}})
	test.AssertNoError(t, err)
	msg, err := a.push(&Frame{Fin: FinFinal, Opcode: OpContinuation, Payload: []byte{0xAC}})
	test.AssertNoError(t, err)
	test.AssertEqual(t, "€", msg.Text())

	_, err = a.push(&Frame{Fin: FinFinal, Opcode: OpText, Payload: []byte{0xFF, 0xFE}})
	assertProtocolError(t, err, ErrInvalidUTF8, CloseInvalidPayloadData)

	msg, err = a.push(&Frame{Fin: FinFinal, Opcode: OpBinary, Payload: []byte{0xFF, 0xFE}})
	test.AssertNoError(t, err)
	test.AssertEqual(t, []byte{0xFF, 0xFE}, msg.Data)
}

func TestAssemblerLimitsMessageLength(t *testing.T) {
	a := messageAssembler{maxLength: 10}

	_, err := a.push(&Frame{Fin: FinMore, Opcode: OpBinary, Payload: make([]byte, 8)})
	test.AssertNoError(t, err)
	_, err = a.push(&Frame{Fin: FinFinal, Opcode: OpContinuation, Payload: make([]byte, 8)})
	assertProtocolError(t, err, ErrPayloadTooBig, CloseTooBig)
}

func TestAssemblerDecompresses(t *testing.T) {
	text := bytes.Repeat([]byte("compressible text "), 200)
	compressed, err := compressMessage(text, flate.BestSpeed)
	test.AssertNoError(t, err)
	test.AssertTrue(t, len(compressed) < len(text), "message should shrink")
	test.AssertTrue(t, !bytes.HasSuffix(compressed, deflateTail), "sync flush tail should be stripped")

	a := messageAssembler{maxLength: DefaultMaxPayloadLength}
	var msg *Message
	for _, f := range Fragment(OpText, compressed, 16, true) {
		msg, err = a.push(f)
		test.AssertNoError(t, err)
	}
	test.AssertEqual(t, string(text), msg.Text())

	a = messageAssembler{maxLength: 100}
	_, err = a.push(&Frame{Fin: FinFinal, Opcode: OpText, Rsv1: true, Payload: compressed})
	assertProtocolError(t, err, ErrPayloadTooBig, CloseTooBig)
}

func TestNegotiateDeflate(t *testing.T) {
	tests := []struct {
		header string
		ok     bool
	}{
		{"", false},
		{"x-webkit-deflate-frame", false},
		{"permessage-deflate", true},
		{"permessage-deflate; client_max_window_bits", true},
		{"permessage-deflate; server_max_window_bits=10, permessage-deflate", true},
		{"permessage-deflate; server_max_window_bits=10", false},
		{"foo, Permessage-Deflate; server_no_context_takeover", true},
	}

	for _, tt := range tests {
		value, ok := negotiateDeflate(tt.header)
		test.AssertEqual(t, tt.ok, ok)
		if ok {
			test.AssertEqual(t, deflateResponse, value)
		}
	}
}
