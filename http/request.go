package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"path"
	"strings"

	"github.com/freekieb7/embedio/compression"
)

// Header is the canonicalized header map shared with net/http.
type Header = nethttp.Header

var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrMalformedHeader      = errors.New("http: malformed header line")
	ErrUnsupportedVersion   = errors.New("http: unsupported protocol version")
	ErrHeadersTooLarge      = errors.New("http: request headers too large")
	ErrMissingHost          = errors.New("http: missing Host header")
	ErrInvalidContentLength = errors.New("http: invalid Content-Length")
)

// Request is the read-only view of a parsed request.
type Request struct {
	Method     string
	RawURL     string
	URL        *url.URL
	Path       string // decoded and cleaned, keeps a trailing slash
	Query      url.Values
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     Header
	Host       string

	// ContentLength is -1 when unknown.
	ContentLength int64
	Chunked       bool
	KeepAlive     bool

	RemoteAddr net.Addr
	LocalAddr  net.Addr
	IsSecure   bool

	Body io.ReadCloser

	cookies []*Cookie
}

func newRequest() *Request {
	return &Request{
		Header:        make(Header),
		ContentLength: -1,
	}
}

// parseRequestLine parses: method SP request-target SP HTTP-version.
func (req *Request) parseRequestLine(line string) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}

	method, target, version := parts[0], parts[1], parts[2]
	if method == "" || !isToken(method) || target == "" {
		return fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}

	switch version {
	case "HTTP/1.1":
		req.ProtoMajor, req.ProtoMinor = 1, 1
	case "HTTP/1.0":
		req.ProtoMajor, req.ProtoMinor = 1, 0
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}

	req.Method = method
	req.RawURL = target
	req.Proto = version
	return nil
}

// addHeaderLine parses: field-name ":" OWS field-value OWS.
func (req *Request) addHeaderLine(line string) error {
	if line[0] == ' ' || line[0] == '\t' {
		// obsolete line folding
		return fmt.Errorf("%w: folded header %q", ErrMalformedHeader, line)
	}

	name, value, found := strings.Cut(line, ":")
	if !found || name == "" || !isToken(name) {
		return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}

	req.Header.Add(name, strings.TrimSpace(value))
	return nil
}

// finishHead validates the parsed head and derives URL, body framing and keep-alive.
func (req *Request) finishHead() error {
	req.Host = req.Header.Get("Host")
	if req.Host == "" && req.ProtoMinor == 1 {
		return ErrMissingHost
	}

	u, err := url.ParseRequestURI(req.RawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequestLine, err)
	}
	if u.Host != "" && req.Host == "" {
		req.Host = u.Host
	}
	req.URL = u
	req.Query = u.Query()
	req.Path = cleanPath(u.Path)

	if te := req.Header.Get("Transfer-Encoding"); te != "" {
		if !headerHasToken(te, "chunked") {
			return fmt.Errorf("%w: unsupported Transfer-Encoding %q", ErrMalformedHeader, te)
		}
		req.Chunked = true
		req.Header.Del("Content-Length")
	} else if cl := req.Header.Values("Content-Length"); len(cl) > 0 {
		n, err := parseContentLength(cl[0])
		if err != nil {
			return ErrInvalidContentLength
		}
		for _, other := range cl[1:] {
			if m, err := parseContentLength(other); err != nil || m != n {
				return ErrInvalidContentLength
			}
		}
		req.ContentLength = n
	} else {
		req.ContentLength = 0
	}

	connection := req.Header.Get("Connection")
	switch req.ProtoMinor {
	case 1:
		req.KeepAlive = !headerHasToken(connection, "close")
	default:
		req.KeepAlive = headerHasToken(connection, "keep-alive")
	}

	return nil
}

// HasBody reports whether the request carries a body.
func (req *Request) HasBody() bool {
	return req.Chunked || req.ContentLength > 0
}

// Cookies returns the cookies sent with the request.
func (req *Request) Cookies() []*Cookie {
	if req.cookies == nil {
		req.cookies = make([]*Cookie, 0)
		for _, line := range req.Header.Values("Cookie") {
			req.cookies = append(req.cookies, ParseCookies(line)...)
		}
	}
	return req.cookies
}

// Cookie returns the named request cookie or ErrNoCookie.
func (req *Request) Cookie(name string) (*Cookie, error) {
	for _, c := range req.Cookies() {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, ErrNoCookie
}

// IsWebSocketRequest reports whether the request asks for a WebSocket upgrade.
func (req *Request) IsWebSocketRequest() bool {
	return req.Method == nethttp.MethodGet &&
		headerHasToken(req.Header.Get("Connection"), "upgrade") &&
		strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

// ExpectsContinue reports whether the client waits for 100 Continue before sending the body.
func (req *Request) ExpectsContinue() bool {
	return req.ProtoMinor == 1 && strings.EqualFold(req.Header.Get("Expect"), "100-continue")
}

// AcceptEncoding negotiates the response compression from Accept-Encoding.
func (req *Request) AcceptEncoding() compression.Method {
	return compression.Negotiate(req.Header.Get("Accept-Encoding"))
}

// cleanPath collapses dot segments and duplicate slashes but keeps the trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}

	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func isToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f {
			return false
		}
		switch c {
		case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
			return false
		}
	}
	return true
}
