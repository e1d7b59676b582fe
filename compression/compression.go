// Package compression holds the HTTP content codings used by the file cache
// and the static files module.
package compression

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Method identifies a content coding.
type Method int

const (
	None Method = iota
	Gzip
	Deflate
)

// Methods lists every coding, in preference order after None.
var Methods = [...]Method{None, Gzip, Deflate}

var ErrUnknownMethod = errors.New("compression: unknown method")

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// ContentEncoding returns the Content-Encoding token, empty for None.
func (m Method) ContentEncoding() string {
	if m == None {
		return ""
	}
	return m.String()
}

// Compress encodes data with m. None returns data unchanged.
func Compress(data []byte, m Method) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch m {
	case None:
		return data, nil
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Deflate:
		w = zlib.NewWriter(&buf)
	default:
		return nil, ErrUnknownMethod
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: %s write: %w", m, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: %s close: %w", m, err)
	}

	return buf.Bytes(), nil
}

// Decompress decodes data that was encoded with m.
func Decompress(data []byte, m Method) ([]byte, error) {
	var r io.ReadCloser
	var err error

	switch m {
	case None:
		return data, nil
	case Gzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case Deflate:
		r, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return nil, ErrUnknownMethod
	}
	if err != nil {
		return nil, fmt.Errorf("compression: %s reader: %w", m, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: %s read: %w", m, err)
	}

	return out, nil
}

// Negotiate picks a coding from an Accept-Encoding header value.
// Gzip wins over deflate at equal quality; codings with q=0 are refused.
func Negotiate(acceptEncoding string) Method {
	best := None
	bestQ := 0.0

	for _, part := range strings.Split(acceptEncoding, ",") {
		token, q := parseQuality(part)
		var m Method
		switch token {
		case "gzip", "x-gzip":
			m = Gzip
		case "deflate":
			m = Deflate
		case "*":
			m = Gzip
		default:
			continue
		}

		if q <= 0 {
			continue
		}
		if q > bestQ || (q == bestQ && m == Gzip) {
			best, bestQ = m, q
		}
	}

	return best
}

func parseQuality(part string) (string, float64) {
	token, params, _ := strings.Cut(part, ";")
	token = strings.ToLower(strings.TrimSpace(token))

	q := 1.0
	for _, param := range strings.Split(params, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || strings.TrimSpace(key) != "q" {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			q = v
		}
	}

	return token, q
}
