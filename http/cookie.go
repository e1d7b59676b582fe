package http

import (
	"errors"
	nethttp "net/http"
	"strings"
)

var ErrNoCookie = errors.New("http: named cookie not present")

// Cookie is serialised with its String method as one Set-Cookie header.
type Cookie = nethttp.Cookie

type SameSite = nethttp.SameSite

const (
	SameSiteDefaultMode = nethttp.SameSiteDefaultMode
	SameSiteLaxMode     = nethttp.SameSiteLaxMode
	SameSiteStrictMode  = nethttp.SameSiteStrictMode
	SameSiteNoneMode    = nethttp.SameSiteNoneMode
)

// ParseCookies parses the value of a Cookie request header. Malformed pairs
// are skipped instead of failing the whole header.
func ParseCookies(line string) []*Cookie {
	var cookies []*Cookie
	for _, pair := range strings.Split(line, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parsed, err := nethttp.ParseCookie(pair)
		if err != nil {
			continue
		}
		cookies = append(cookies, parsed...)
	}
	return cookies
}
