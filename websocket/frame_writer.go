package websocket

import (
	"crypto/rand"
	"io"
)

// DefaultFragmentSize is the largest payload written per frame.
const DefaultFragmentSize = 1016

// AppendFrame encodes f onto dst. A masked frame is masked in the output
// only; f.Payload is left untouched.
func AppendFrame(dst []byte, f *Frame) []byte {
	b0 := byte(f.Opcode)
	if f.Fin {
		b0 |= finBit
	}
	if f.Rsv1 {
		b0 |= rsv1Bit
	}
	if f.Rsv2 {
		b0 |= rsv2Bit
	}
	if f.Rsv3 {
		b0 |= rsv3Bit
	}

	dst = append(dst, b0)
	dst = appendLength(dst, f.Mask, uint64(len(f.Payload)))
	if f.Mask {
		dst = append(dst, f.MaskingKey[:]...)
	}

	start := len(dst)
	dst = append(dst, f.Payload...)
	if f.Mask {
		maskBytes(f.MaskingKey, 0, dst[start:])
	}
	return dst
}

func WriteFrame(w io.Writer, f *Frame) error {
	buf := AppendFrame(make([]byte, 0, maxHeaderSize+len(f.Payload)), f)
	_, err := w.Write(buf)
	return err
}

// NewMaskingKey returns a random key for client frames.
func NewMaskingKey() [4]byte {
	var key [4]byte
	rand.Read(key[:])
	return key
}

// Fragment splits a message into frames carrying at most size payload bytes.
// The first frame carries opcode, the others are continuations, and only the
// last one is final. An empty message yields a single empty final frame.
func Fragment(opcode Opcode, data []byte, size int, compressed bool) []*Frame {
	if size <= 0 {
		size = DefaultFragmentSize
	}

	n := (len(data) + size - 1) / size
	if n == 0 {
		n = 1
	}

	frames := make([]*Frame, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := min(start+size, len(data))

		f := &Frame{
			Fin:           Fin(i == n-1),
			Opcode:        OpContinuation,
			PayloadLength: uint64(end - start),
			Payload:       data[start:end],
		}
		if i == 0 {
			f.Opcode = opcode
			f.Rsv1 = compressed
		}
		frames = append(frames, f)
	}
	return frames
}
