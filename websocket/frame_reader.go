package websocket

import (
	"errors"
	"io"
	"slices"
)

const (
	// DefaultMaxPayloadLength bounds a single frame and a reassembled message.
	DefaultMaxPayloadLength = 16 * 1024 * 1024
	payloadChunkSize        = 1024
	initialPayloadCapacity  = 4 * payloadChunkSize
	maxInt63                = 1<<63 - 1
)

// FrameReader decodes frames from a byte stream. Each frame is validated as
// soon as its header is known, before any payload byte is read.
type FrameReader struct {
	r io.Reader

	MaxPayloadLength uint64
	// Compression allows Rsv1 on the first frame of a data message.
	Compression bool
	// RequireMask rejects unmasked frames, as a server must.
	RequireMask bool

	header [maxHeaderSize]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:                r,
		MaxPayloadLength: DefaultMaxPayloadLength,
		RequireMask:      true,
	}
}

func (fr *FrameReader) ReadFrame() (*Frame, error) {
	h := fr.header[:2]
	if _, err := io.ReadFull(fr.r, h); err != nil {
		return nil, err
	}

	f := &Frame{
		Fin:    Fin(h[0]&finBit != 0),
		Rsv1:   h[0]&rsv1Bit != 0,
		Rsv2:   h[0]&rsv2Bit != 0,
		Rsv3:   h[0]&rsv3Bit != 0,
		Opcode: Opcode(h[0] & 0x0F),
		Mask:   Mask(h[1]&maskBit != 0),
	}

	length7 := h[1] & 0x7F
	if n := extendedLengthSize(length7); n > 0 {
		ext := fr.header[2 : 2+n]
		if _, err := io.ReadFull(fr.r, ext); err != nil {
			return nil, unexpectedEOF(err)
		}
		f.PayloadLength = decodeExtendedLength(length7, ext)
	} else {
		f.PayloadLength = uint64(length7)
	}

	if f.Mask {
		if _, err := io.ReadFull(fr.r, f.MaskingKey[:]); err != nil {
			return nil, unexpectedEOF(err)
		}
	}

	if err := fr.validate(f); err != nil {
		return nil, err
	}

	payload, err := fr.readPayload(f.PayloadLength)
	if err != nil {
		return nil, err
	}
	if f.Mask {
		maskBytes(f.MaskingKey, 0, payload)
	}
	f.Payload = payload

	return f, nil
}

func (fr *FrameReader) validate(f *Frame) error {
	switch {
	case !f.Opcode.IsValid():
		return newProtocolError(CloseProtocolError, ErrUnknownOpcode)
	case f.Rsv1 && f.Opcode.IsControl():
		return newProtocolError(CloseProtocolError, ErrCompressedControl)
	case f.Rsv1 && (!fr.Compression || f.Opcode == OpContinuation):
		return newProtocolError(CloseProtocolError, ErrReservedBits)
	case f.Rsv2 || f.Rsv3:
		return newProtocolError(CloseProtocolError, ErrReservedBits)
	case f.Opcode.IsControl() && f.Fin == FinMore:
		return newProtocolError(CloseProtocolError, ErrControlFragmented)
	case f.Opcode.IsControl() && f.PayloadLength > MaxControlPayload:
		return newProtocolError(CloseProtocolError, ErrControlTooLong)
	case f.PayloadLength > maxInt63:
		return newProtocolError(CloseProtocolError, ErrPayloadTooBig)
	case f.PayloadLength > fr.MaxPayloadLength:
		return newProtocolError(CloseTooBig, ErrPayloadTooBig)
	case fr.RequireMask && f.Mask == MaskOff:
		return newProtocolError(CloseProtocolError, ErrUnmaskedFrame)
	}
	return nil
}

// readPayload grows the buffer with the bytes that actually arrive, so a
// declared length costs nothing until the peer sends it.
func (fr *FrameReader) readPayload(length uint64) ([]byte, error) {
	payload := make([]byte, 0, min(length, initialPayloadCapacity))
	for remaining := length; remaining > 0; {
		n := int(min(remaining, payloadChunkSize))
		off := len(payload)
		payload = slices.Grow(payload, n)[:off+n]
		if _, err := io.ReadFull(fr.r, payload[off:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		remaining -= uint64(n)
	}
	return payload, nil
}

// unexpectedEOF reports a stream ending inside a frame.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
