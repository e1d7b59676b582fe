package http

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/freekieb7/embedio/test"
)

func parseHead(t *testing.T, raw string) (*Request, error) {
	t.Helper()

	var p headParser
	p.reset()

	done, err := p.process([]byte(raw))
	if err != nil {
		return nil, err
	}
	if !done {
		t.Fatalf("head %q not complete", raw)
	}
	return p.req, p.req.finishHead()
}

func TestRequestParse(t *testing.T) {
	req, err := parseHead(t, "GET /test?q=1 HTTP/1.1\r\nHost: localhost\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	test.AssertNoError(t, err)

	test.AssertEqual(t, "GET", req.Method)
	test.AssertEqual(t, "/test", req.Path)
	test.AssertEqual(t, "1", req.Query.Get("q"))
	test.AssertEqual(t, "text/css", req.Header.Get("accept"))
	test.AssertEqual(t, int64(0), req.ContentLength)
	test.AssertTrue(t, req.KeepAlive, "HTTP/1.1 should keep the connection alive")
}

func TestRequestParseIncremental(t *testing.T) {
	raw := "\r\nPOST /upload HTTP/1.1\r\nHost: localhost\r\nTransfer-Encoding: chunked\r\nContent-Length: 12\r\n\r\n"

	var p headParser
	p.reset()

	// feed the head one byte at a time, as a slow client would
	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		buf = append(buf, raw[i])
		done, err := p.process(buf)
		test.AssertNoError(t, err)
		if done != (i == len(raw)-1) {
			t.Fatalf("done=%v at byte %d", done, i)
		}
	}

	test.AssertNoError(t, p.req.finishHead())
	test.AssertTrue(t, p.req.Chunked, "chunked transfer coding should win over Content-Length")
	test.AssertEqual(t, int64(-1), p.req.ContentLength)
}

func TestRequestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"two part request line", "GET /\r\n\r\n", ErrMalformedRequestLine},
		{"bad method", "G(T / HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"unsupported version", "GET / HTTP/2.0\r\n\r\n", ErrUnsupportedVersion},
		{"folded header", "GET / HTTP/1.1\r\nHost: a\r\n  b\r\n\r\n", ErrMalformedHeader},
		{"header without colon", "GET / HTTP/1.1\r\nHost\r\n\r\n", ErrMalformedHeader},
		{"missing host", "GET / HTTP/1.1\r\n\r\n", ErrMissingHost},
		{"bad content length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: ten\r\n\r\n", ErrInvalidContentLength},
		{"conflicting content length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n", ErrInvalidContentLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHead(t, tt.raw)
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestRequestKeepAlive(t *testing.T) {
	tests := []struct {
		raw       string
		keepAlive bool
	}{
		{"GET / HTTP/1.1\r\nHost: a\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nHost: a\r\nConnection: close\r\n\r\n", false},
		{"GET / HTTP/1.0\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n", true},
	}

	for _, tt := range tests {
		req, err := parseHead(t, tt.raw)
		test.AssertNoError(t, err)
		if req.KeepAlive != tt.keepAlive {
			t.Errorf("%q: expected keep-alive %v", tt.raw, tt.keepAlive)
		}
	}
}

func TestRequestCookie(t *testing.T) {
	req, err := parseHead(t, "GET / HTTP/1.1\r\nHost: a\r\nCookie: test=value; other=data\r\n\r\n")
	test.AssertNoError(t, err)

	cookie, err := req.Cookie("test")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "value", cookie.Value)

	_, err = req.Cookie("nonexistent")
	test.AssertErrorIs(t, err, ErrNoCookie)
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":             "/",
		"/":            "/",
		"/a/../b":      "/b",
		"/a//b/":       "/a/b/",
		"/../../etc":   "/etc",
		"/static/./x/": "/static/x/",
	}

	for in, expected := range tests {
		test.AssertEqual(t, expected, cleanPath(in))
	}
}

func TestRequestStreamChunked(t *testing.T) {
	req := &Request{Chunked: true, ContentLength: -1}
	src := strings.NewReader("5;ext=1\r\nhello\r\n6\r\n world\r\n0\r\nTrailer: x\r\n\r\nNEXT")
	body := newRequestStream(src, req, nil)

	var sb strings.Builder
	buf := make([]byte, 3)
	for {
		n, err := body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("Unexpected error: %v", err)
			}
			break
		}
	}

	test.AssertEqual(t, "hello world", sb.String())
	rest := make([]byte, 4)
	n, _ := src.Read(rest)
	test.AssertEqual(t, "NEXT", string(rest[:n]))
}

func TestRequestStreamContinue(t *testing.T) {
	req := &Request{ContentLength: 4}
	sent := 0
	body := newRequestStream(strings.NewReader("data"), req, func() error {
		sent++
		return nil
	})

	// nothing was sent yet, so the connection cannot be reused without reading
	if body.drain(1024) {
		t.Error("Drain should fail while the client waits for 100 Continue")
	}

	body = newRequestStream(strings.NewReader("data"), req, func() error {
		sent++
		return nil
	})
	buf := make([]byte, 2)
	body.Read(buf)
	body.Read(buf)
	test.AssertEqual(t, 1, sent)
}

func TestRequestStreamDrainLimit(t *testing.T) {
	req := &Request{ContentLength: 10}

	body := newRequestStream(strings.NewReader("0123456789"), req, nil)
	test.AssertTrue(t, body.drain(16), "short body should drain")

	body = newRequestStream(strings.NewReader("0123456789"), req, nil)
	test.AssertTrue(t, !body.drain(4), "long body should not drain")
}
