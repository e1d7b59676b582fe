package http

import (
	"errors"
	"testing"

	"github.com/freekieb7/embedio/test"
)

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		uri    string
		scheme string
		host   string
		port   int
		path   string
	}{
		{"http://*:9696/", "http", "*", 9696, "/"},
		{"http://localhost", "http", "localhost", 80, "/"},
		{"https://example.com/api", "https", "example.com", 443, "/api/"},
		{"http://[::1]:8080/app/", "http", "::1", 8080, "/app/"},
		{"HTTP://+:81/x/y", "http", "+", 81, "/x/y/"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			p, err := ParsePrefix(tt.uri)
			test.AssertNoError(t, err)
			test.AssertEqual(t, tt.scheme, p.Scheme)
			test.AssertEqual(t, tt.host, p.Host)
			test.AssertEqual(t, tt.port, p.Port)
			test.AssertEqual(t, tt.path, p.Path)
		})
	}
}

func TestParsePrefixInvalid(t *testing.T) {
	for _, uri := range []string{
		"localhost:80/",
		"ftp://localhost/",
		"http://localhost:0/",
		"http://localhost:70000/",
		"http://localhost:/",
		"http://localhost/a%20b/",
		"http://localhost/a//b/",
		"http://[::1/",
	} {
		if _, err := ParsePrefix(uri); !errors.Is(err, ErrInvalidPrefix) {
			t.Errorf("%q: expected ErrInvalidPrefix, got %v", uri, err)
		}
	}
}

func TestPrefixMatching(t *testing.T) {
	p, err := ParsePrefix("http://Example.com:8080/api/")
	test.AssertNoError(t, err)

	test.AssertTrue(t, p.matchesHost("example.com:8080"), "host comparison ignores case and port")
	test.AssertTrue(t, !p.matchesHost("other.com"), "other hosts must not match")
	test.AssertTrue(t, p.matchesPath("/api/users"), "sub path should match")
	test.AssertTrue(t, p.matchesPath("/api"), "path without trailing slash should match")
	test.AssertTrue(t, !p.matchesPath("/apix"), "sibling path must not match")
}

func TestEndPointPrefixOrder(t *testing.T) {
	ep := &EndPointListener{}
	for _, uri := range []string{"http://*:80/", "http://*:80/api/", "http://example.com:80/"} {
		p, err := ParsePrefix(uri)
		test.AssertNoError(t, err)
		test.AssertNoError(t, ep.addPrefix(p))
	}

	dup, _ := ParsePrefix("http://*:80/api/")
	test.AssertErrorIs(t, ep.addPrefix(dup), ErrPrefixInUse)

	test.AssertEqual(t, "http://example.com:80/", ep.match("example.com", "/api/x").String())
	test.AssertEqual(t, "http://*:80/api/", ep.match("other", "/api/x").String())
	test.AssertEqual(t, "http://*:80/", ep.match("other", "/index.html").String())
}
