package http

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/embedio/test"
)

func TestParseCookies(t *testing.T) {
	cookies := ParseCookies(`test=value; other="quoted" ; broken; =empty;;`)

	if len(cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(cookies))
	}
	test.AssertEqual(t, "test", cookies[0].Name)
	test.AssertEqual(t, "value", cookies[0].Value)
	test.AssertEqual(t, "other", cookies[1].Name)
	test.AssertEqual(t, "quoted", cookies[1].Value)
}

func newTestResponse(method string) (*Response, *bytes.Buffer) {
	out := &bytes.Buffer{}
	req := &Request{Method: method, ProtoMajor: 1, ProtoMinor: 1, KeepAlive: true, Header: make(Header)}
	return newResponse(req, bufio.NewWriter(out)), out
}

func TestSetCookieHeader(t *testing.T) {
	res, out := newTestResponse("GET")
	res.SetCookie(&Cookie{
		Name:     "__session",
		Value:    "abc",
		Path:     "/",
		Expires:  time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC),
		HttpOnly: true,
		SameSite: SameSiteLaxMode,
	})
	res.SetCookie(&Cookie{Name: "bad name", Value: "x"})
	res.close()

	head := out.String()
	test.AssertTrue(t, strings.Contains(head,
		"Set-Cookie: __session=abc; Path=/; Expires=Wed, 02 Jan 2030 03:04:05 GMT; HttpOnly; SameSite=Lax\r\n"),
		"session cookie should be serialised")
	test.AssertEqual(t, 1, strings.Count(head, "Set-Cookie"))
}
