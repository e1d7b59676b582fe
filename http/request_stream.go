package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

const maxChunkLineLength = 4096

var (
	ErrBodyClosed       = errors.New("http: read on closed request body")
	ErrMalformedChunked = errors.New("http: malformed chunked encoding")
)

// bodySource is the buffered side of a connection.
type bodySource interface {
	io.Reader
	io.ByteReader
}

// RequestStream exposes a request body bounded by Content-Length or by chunked
// transfer decoding.
type RequestStream struct {
	src       bodySource
	chunked   bool
	remaining int64 // bytes left in the body or in the current chunk
	done      bool
	closed    bool
	err       error

	continueOnce sync.Once
	sendContinue func() error
}

func newRequestStream(src bodySource, req *Request, sendContinue func() error) *RequestStream {
	s := &RequestStream{
		src:          src,
		chunked:      req.Chunked,
		sendContinue: sendContinue,
	}
	if !req.Chunked {
		s.remaining = req.ContentLength
		s.done = req.ContentLength <= 0
	}
	return s
}

func (s *RequestStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrBodyClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	if s.sendContinue != nil {
		var err error
		s.continueOnce.Do(func() { err = s.sendContinue() })
		if err != nil {
			s.err = err
			return 0, err
		}
	}

	if s.chunked {
		return s.readChunked(p)
	}
	return s.readFixed(p)
}

func (s *RequestStream) readFixed(p []byte) (int, error) {
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}

	n, err := s.src.Read(p)
	s.remaining -= int64(n)
	if s.remaining == 0 {
		s.done = true
		return n, nil
	}
	if err == io.EOF {
		s.err = io.ErrUnexpectedEOF
		return n, s.err
	}
	if err != nil {
		s.err = err
	}
	return n, err
}

func (s *RequestStream) readChunked(p []byte) (int, error) {
	if s.remaining == 0 {
		size, err := s.readChunkSize()
		if err != nil {
			s.err = err
			return 0, err
		}
		if size == 0 {
			if err := s.skipTrailers(); err != nil {
				s.err = err
				return 0, err
			}
			s.done = true
			return 0, io.EOF
		}
		s.remaining = size
	}

	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.src.Read(p)
	s.remaining -= int64(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		s.err = err
		return n, err
	}

	if s.remaining == 0 {
		// chunk-data CRLF
		line, err := s.readLine()
		if err != nil || len(line) != 0 {
			s.err = ErrMalformedChunked
			return n, s.err
		}
	}
	return n, nil
}

// readChunkSize reads: chunk-size [ chunk-ext ] CRLF.
func (s *RequestStream) readChunkSize() (int64, error) {
	line, err := s.readLine()
	if err != nil {
		return 0, err
	}
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}

	size, err := parseHex(bytes.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: chunk size %q", ErrMalformedChunked, line)
	}
	return size, nil
}

func (s *RequestStream) skipTrailers() error {
	for {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func (s *RequestStream) readLine() ([]byte, error) {
	var line []byte
	for {
		b, err := s.src.ReadByte()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}

		if b == '\n' {
			return bytes.TrimSuffix(line, []byte{'\r'}), nil
		}
		line = append(line, b)
		if len(line) > maxChunkLineLength {
			return nil, ErrMalformedChunked
		}
	}
}

// Close marks the body as closed. Unread bytes are drained by the connection.
func (s *RequestStream) Close() error {
	s.closed = true
	return nil
}

// drain discards the rest of the body. It reports false when more than limit
// bytes remain or the body is broken, in which case the connection cannot be reused.
func (s *RequestStream) drain(limit int64) bool {
	if s.done {
		return true
	}
	if s.err != nil {
		return false
	}

	// a client still waiting for 100 Continue never sent the body
	if s.sendContinue != nil {
		sent := true
		s.continueOnce.Do(func() { sent = false })
		if !sent {
			return false
		}
	}

	s.closed = false
	n, err := io.Copy(io.Discard, io.LimitReader(readerFunc(s.Read), limit+1))
	s.closed = true
	return err == nil && n <= limit && s.done
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
