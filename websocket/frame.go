// Package websocket implements the RFC 6455 frame engine: handshake, frame
// reading and writing, fragmentation, permessage-deflate and connections.
package websocket

import (
	"encoding/binary"
	"strconv"
)

// Fin tells whether a frame ends its message.
type Fin bool

const (
	FinMore  Fin = false
	FinFinal Fin = true
)

// Mask tells whether a frame payload is masked.
type Mask bool

const (
	MaskOff Mask = false
	MaskOn  Mask = true
)

// Opcode represents WebSocket frame opcodes per RFC 6455.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) IsValid() bool {
	switch o {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

// IsControl reports whether o is a control opcode (0x8 and above).
func (o Opcode) IsControl() bool {
	return o >= OpClose
}

func (o Opcode) IsData() bool {
	return o == OpContinuation || o == OpText || o == OpBinary
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "opcode(" + strconv.Itoa(int(o)) + ")"
	}
}

// CloseStatus is the status code carried by a Close frame.
type CloseStatus uint16

const (
	CloseNormal              CloseStatus = 1000
	CloseEndpointUnavailable CloseStatus = 1001
	CloseProtocolError       CloseStatus = 1002
	CloseInvalidMessageType  CloseStatus = 1003
	CloseEmpty               CloseStatus = 1005
	CloseAbnormal            CloseStatus = 1006
	CloseInvalidPayloadData  CloseStatus = 1007
	ClosePolicyViolation     CloseStatus = 1008
	CloseTooBig              CloseStatus = 1009
	CloseMandatoryExtension  CloseStatus = 1010
	CloseServerError         CloseStatus = 1011
)

func (s CloseStatus) String() string {
	switch s {
	case CloseNormal:
		return "normal"
	case CloseEndpointUnavailable:
		return "endpoint unavailable"
	case CloseProtocolError:
		return "protocol error"
	case CloseInvalidMessageType:
		return "invalid message type"
	case CloseEmpty:
		return "empty"
	case CloseAbnormal:
		return "abnormal"
	case CloseInvalidPayloadData:
		return "invalid payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseTooBig:
		return "too big"
	case CloseMandatoryExtension:
		return "mandatory extension"
	case CloseServerError:
		return "server error"
	default:
		return strconv.Itoa(int(s))
	}
}

// isSendable reports whether s may appear on the wire. 1005 and 1006 are
// reserved for local reporting.
func (s CloseStatus) isSendable() bool {
	switch {
	case s >= 3000 && s <= 4999:
		return true
	case s < 1000 || s > 1011:
		return false
	case s == 1004 || s == CloseEmpty || s == CloseAbnormal:
		return false
	default:
		return true
	}
}

const (
	finBit  = 0x80
	rsv1Bit = 0x40
	rsv2Bit = 0x20
	rsv3Bit = 0x10
	maskBit = 0x80

	// MaxControlPayload is the largest payload a control frame may carry.
	MaxControlPayload = 125
	// maxHeaderSize is 2 bytes, an 8 byte extended length and a 4 byte masking key.
	maxHeaderSize = 14
)

// Frame is one protocol unit. Payload is always held unmasked.
type Frame struct {
	Fin           Fin
	Rsv1          bool
	Rsv2          bool
	Rsv3          bool
	Opcode        Opcode
	Mask          Mask
	PayloadLength uint64
	MaskingKey    [4]byte
	Payload       []byte
}

// appendLength appends the 7 bit length field and, when needed, the 16 or 64
// bit extended length.
func appendLength(dst []byte, mask Mask, length uint64) []byte {
	var m byte
	if mask {
		m = maskBit
	}

	switch {
	case length <= 125:
		return append(dst, m|byte(length))
	case length <= 0xFFFF:
		dst = append(dst, m|126)
		return binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, m|127)
		return binary.BigEndian.AppendUint64(dst, length)
	}
}

// extendedLengthSize is the number of bytes following a 7 bit length field.
func extendedLengthSize(length7 byte) int {
	switch length7 {
	case 126:
		return 2
	case 127:
		return 8
	default:
		return 0
	}
}

func decodeExtendedLength(length7 byte, ext []byte) uint64 {
	switch length7 {
	case 126:
		return uint64(binary.BigEndian.Uint16(ext))
	case 127:
		return binary.BigEndian.Uint64(ext)
	default:
		return uint64(length7)
	}
}

// maskBytes XORs b with key, starting at key position pos, and returns the
// position to continue from.
func maskBytes(key [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= key[pos&3]
		pos++
	}
	return pos & 3
}
