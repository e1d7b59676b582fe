package http

import (
	"errors"
	"strings"
)

var errInvalidNumber = errors.New("http: invalid number")

// parseContentLength parses a non-negative decimal length.
func parseContentLength(b string) (int64, error) {
	b = strings.TrimSpace(b)
	if b == "" {
		return 0, errInvalidNumber
	}

	var n int64
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		if n > (1<<62)/10 {
			return 0, errInvalidNumber
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

// parseHex parses a chunk-size token. Chunk extensions must be stripped by the caller.
func parseHex(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 15 {
		return 0, errInvalidNumber
	}

	var n int64
	for _, c := range b {
		v := hexToByte(c)
		if v == 255 {
			return 0, errInvalidNumber
		}
		n = n<<4 | int64(v)
	}
	return n, nil
}

// appendHex appends n in lower-case hex without allocating.
func appendHex(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, '0')
	}

	const hexDigits = "0123456789abcdef"
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hexDigits[n&0xF]
		n >>= 4
	}
	return append(dst, buf[i:]...)
}

func hexToByte(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 255 // Invalid hex
}

// headerHasToken reports whether a comma separated header value contains token,
// ignoring case.
func headerHasToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
