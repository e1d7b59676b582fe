package websocket

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"strings"
)

const (
	extensionDeflate = "permessage-deflate"
	deflateResponse  = "permessage-deflate; server_no_context_takeover; client_no_context_takeover"
)

var (
	deflateTail = []byte{0x00, 0x00, 0xff, 0xff}
	// an empty final stored block terminates the stream for the reader
	deflateFinal = []byte{0x01, 0x00, 0x00, 0xff, 0xff}
)

// compressMessage deflates data without context takeover and strips the sync flush tail.
func compressMessage(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("websocket: deflate writer: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("websocket: deflate: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("websocket: deflate flush: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), deflateTail), nil
}

// decompressMessage inflates a message, failing with ErrPayloadTooBig past limit bytes.
func decompressMessage(data []byte, limit uint64) ([]byte, error) {
	r := flate.NewReader(io.MultiReader(
		bytes.NewReader(data),
		bytes.NewReader(deflateTail),
		bytes.NewReader(deflateFinal),
	))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("websocket: inflate: %w", err)
	}
	if uint64(len(out)) > limit {
		return nil, ErrPayloadTooBig
	}
	return out, nil
}

// negotiateDeflate picks the first acceptable permessage-deflate offer of a
// Sec-WebSocket-Extensions header and returns the response value.
func negotiateDeflate(header string) (string, bool) {
	for _, offer := range strings.Split(header, ",") {
		params := strings.Split(offer, ";")
		if !strings.EqualFold(strings.TrimSpace(params[0]), extensionDeflate) {
			continue
		}

		acceptable := true
		for _, param := range params[1:] {
			name, value, _ := strings.Cut(strings.TrimSpace(param), "=")
			// the server always uses a full window
			if strings.EqualFold(name, "server_max_window_bits") && strings.Trim(value, `"`) != "15" {
				acceptable = false
			}
		}
		if acceptable {
			return deflateResponse, true
		}
	}
	return "", false
}
