package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrHeadersSent     = errors.New("http: headers already sent")
	ErrResponseClosed  = errors.New("http: write on closed response")
	ErrBodyTooLong     = errors.New("http: response body longer than Content-Length")
	ErrBodyNotAllowed  = errors.New("http: response status does not allow a body")
	ErrConnectionTaken = errors.New("http: connection has been hijacked")
)

var (
	crlf          = []byte("\r\n")
	lastChunk     = []byte("0\r\n\r\n")
	colonSpace    = []byte(": ")
	continueReply = []byte("HTTP/1.1 100 Continue\r\n\r\n")
)

// Response is the mutable, single-writer response of a Context.
//
// Headers are sent on the first body write or on Close. Without an explicit
// ContentLength an HTTP/1.1 response is sent chunked and an HTTP/1.0 response
// is delimited by closing the connection.
type Response struct {
	StatusCode        int
	StatusDescription string
	Header            Header
	// ContentLength is -1 when unknown.
	ContentLength int64
	SendChunked   bool
	KeepAlive     bool

	protoMinor  int
	headOnly    bool
	w           *bufio.Writer
	cookies     []*Cookie
	headersSent bool
	closed      bool
	chunked     bool
	written     int64
	err         error
}

func newResponse(req *Request, w *bufio.Writer) *Response {
	return &Response{
		StatusCode:    StatusOK,
		Header:        make(Header),
		ContentLength: -1,
		KeepAlive:     req.KeepAlive,
		protoMinor:    req.ProtoMinor,
		headOnly:      req.Method == "HEAD",
		w:             w,
	}
}

func (res *Response) HeadersSent() bool {
	return res.headersSent
}

// SetCookie adds a Set-Cookie header to the response.
func (res *Response) SetCookie(cookie *Cookie) {
	res.cookies = append(res.cookies, cookie)
}

// ClearCookies drops the cookies set so far. It has no effect once the
// headers were sent.
func (res *Response) ClearCookies() {
	res.cookies = nil
}

func (res *Response) WithStatus(status int) *Response {
	res.StatusCode = status
	return res
}

// WithText writes payload as a complete text/plain body.
func (res *Response) WithText(payload string) error {
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return res.writeComplete([]byte(payload))
}

// WithJSON writes payload encoded as JSON as a complete body.
func (res *Response) WithJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("http: encoding json response: %w", err)
	}

	res.Header.Set("Content-Type", "application/json; charset=utf-8")
	return res.writeComplete(data)
}

// Redirect answers with a Location header and the given 3xx status.
func (res *Response) Redirect(location string, status int) error {
	res.Header.Set("Location", location)
	res.StatusCode = status
	res.ContentLength = 0
	return res.sendHeaders()
}

func (res *Response) writeComplete(data []byte) error {
	if res.headersSent {
		_, err := res.Write(data)
		return err
	}

	res.ContentLength = int64(len(data))
	_, err := res.Write(data)
	return err
}

func (res *Response) WriteString(s string) (int, error) {
	return res.Write([]byte(s))
}

func (res *Response) Write(p []byte) (int, error) {
	if res.closed {
		return 0, ErrResponseClosed
	}
	if res.err != nil {
		return 0, res.err
	}
	if !res.headersSent {
		if err := res.sendHeaders(); err != nil {
			return 0, err
		}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !bodyAllowed(res.StatusCode) {
		return 0, ErrBodyNotAllowed
	}
	if res.ContentLength >= 0 && res.written+int64(len(p)) > res.ContentLength {
		return 0, ErrBodyTooLong
	}

	res.written += int64(len(p))
	if res.headOnly {
		return len(p), nil
	}

	if res.chunked {
		var size [16]byte
		res.fail(write(res.w, appendHex(size[:0], len(p)), crlf, p, crlf))
	} else {
		_, err := res.w.Write(p)
		res.fail(err)
	}

	if res.err != nil {
		return 0, res.err
	}
	return len(p), nil
}

// Flush sends the headers and everything written so far.
func (res *Response) Flush() error {
	if !res.headersSent {
		if err := res.sendHeaders(); err != nil {
			return err
		}
	}
	res.fail(res.w.Flush())
	return res.err
}

// sendHeaders writes the status line and header section. It decides the body
// framing and the final keep-alive state.
func (res *Response) sendHeaders() error {
	if res.headersSent {
		return ErrHeadersSent
	}
	res.headersSent = true

	if headerHasToken(res.Header.Get("Connection"), "close") {
		res.KeepAlive = false
	}

	switch {
	case res.StatusCode == StatusSwitchingProtocols:
		// the upgrade owns the header set
	case !bodyAllowed(res.StatusCode):
		res.Header.Del("Content-Length")
		res.Header.Del("Transfer-Encoding")
	case res.ContentLength >= 0 && !res.SendChunked:
		res.Header.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
		res.Header.Del("Transfer-Encoding")
	case res.protoMinor >= 1:
		res.chunked = true
		res.ContentLength = -1
		res.Header.Set("Transfer-Encoding", "chunked")
		res.Header.Del("Content-Length")
	default:
		res.KeepAlive = false
	}

	if res.StatusCode != StatusSwitchingProtocols {
		if res.KeepAlive {
			if res.protoMinor == 0 {
				res.Header.Set("Connection", "keep-alive")
			} else {
				res.Header.Del("Connection")
			}
		} else {
			res.Header.Set("Connection", "close")
		}
	}

	if res.StatusCode != StatusSwitchingProtocols && res.Header.Get("Date") == "" {
		res.Header.Set("Date", time.Now().UTC().Format(TimeFormat))
	}

	description := res.StatusDescription
	if description == "" {
		description = StatusText(res.StatusCode)
	}

	line := make([]byte, 0, 64)
	line = append(line, "HTTP/1."...)
	line = strconv.AppendInt(line, int64(res.protoMinor), 10)
	line = append(line, ' ')
	line = strconv.AppendInt(line, int64(res.StatusCode), 10)
	line = append(line, ' ')
	line = append(line, description...)
	line = append(line, crlf...)
	if _, err := res.w.Write(line); err != nil {
		res.fail(err)
		return err
	}

	for name, values := range res.Header {
		for _, value := range values {
			res.fail(write(res.w, []byte(name), colonSpace, []byte(value), crlf))
		}
	}
	for _, cookie := range res.cookies {
		// String is empty for an invalid cookie
		if v := cookie.String(); v != "" {
			res.fail(write(res.w, []byte("Set-Cookie"), colonSpace, []byte(v), crlf))
		}
	}
	_, err := res.w.Write(crlf)
	res.fail(err)

	return res.err
}

// close finishes the body and flushes. It reports whether the connection may be reused.
func (res *Response) close() bool {
	if res.closed {
		return false
	}

	if !res.headersSent {
		if res.ContentLength < 0 && !res.SendChunked {
			res.ContentLength = 0
		}
		res.sendHeaders()
	}
	res.closed = true

	if res.chunked && !res.headOnly {
		_, err := res.w.Write(lastChunk)
		res.fail(err)
	}
	if res.ContentLength >= 0 && res.written < res.ContentLength && !res.headOnly && bodyAllowed(res.StatusCode) {
		res.KeepAlive = false
	}
	res.fail(res.w.Flush())

	return res.KeepAlive && res.err == nil
}

func (res *Response) fail(err error) {
	if err != nil && res.err == nil {
		res.err = err
	}
}

func bodyAllowed(status int) bool {
	if status >= 100 && status < 200 {
		return false
	}
	return status != StatusNoContent && status != StatusNotModified
}

func write(w *bufio.Writer, parts ...[]byte) error {
	for _, part := range parts {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// TimeFormat is the format of Date, Last-Modified and Expires headers.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
