package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"slices"
	"strings"

	"github.com/freekieb7/embedio/http"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// checkUpgrade validates the opening handshake of req.
func checkUpgrade(req *http.Request) error {
	if req.Method != "GET" {
		return &HandshakeError{Status: http.StatusMethodNotAllowed, Err: ErrBadMethod}
	}
	if !headerContains(req.Header.Get("Connection"), "upgrade") ||
		!strings.EqualFold(strings.TrimSpace(req.Header.Get("Upgrade")), "websocket") {
		return &HandshakeError{Status: http.StatusBadRequest, Err: ErrNotWebSocket}
	}
	if strings.TrimSpace(req.Header.Get("Sec-WebSocket-Version")) != "13" {
		return &HandshakeError{Status: http.StatusUpgradeRequired, Err: ErrUnsupportedVersion}
	}

	key := strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	if decoded, err := base64.StdEncoding.DecodeString(key); err != nil || len(decoded) != 16 {
		return &HandshakeError{Status: http.StatusBadRequest, Err: ErrBadKey}
	}
	return nil
}

// Accept completes the opening handshake on ctx and takes over its socket.
// On a *HandshakeError nothing has been written and the caller still owns
// the response.
func Accept(ctx *http.Context, opts ...Option) (*Conn, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.normalize()

	req := ctx.Request
	if err := checkUpgrade(req); err != nil {
		if herr, ok := err.(*HandshakeError); ok && herr.Status == http.StatusUpgradeRequired {
			ctx.Response.Header.Set("Sec-WebSocket-Version", "13")
		}
		return nil, err
	}

	res := ctx.Response
	clear(res.Header)
	res.ClearCookies()
	res.WithStatus(http.StatusSwitchingProtocols)
	res.Header.Set("Upgrade", "websocket")
	res.Header.Set("Connection", "Upgrade")
	res.Header.Set("Sec-WebSocket-Accept", computeAcceptKey(strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))))

	subprotocol := selectSubprotocol(req.Header.Get("Sec-WebSocket-Protocol"), o.Subprotocols)
	if subprotocol != "" {
		res.Header.Set("Sec-WebSocket-Protocol", subprotocol)
	}

	compressed := false
	if o.EnableCompression {
		if value, ok := negotiateDeflate(req.Header.Get("Sec-WebSocket-Extensions")); ok {
			res.Header.Set("Sec-WebSocket-Extensions", value)
			compressed = true
		}
	}

	for _, cookie := range req.Cookies() {
		res.SetCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	ctx.SetHandled()
	netConn, rw, err := ctx.Hijack()
	if err != nil {
		return nil, err
	}

	return newConn(netConn, rw, o, compressed, subprotocol, req), nil
}

// selectSubprotocol returns the most preferred supported protocol that the
// client offers. supported is in server order of preference.
func selectSubprotocol(header string, supported []string) string {
	var offered []string
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			offered = append(offered, p)
		}
	}

	for _, p := range supported {
		if slices.Contains(offered, p) {
			return p
		}
	}
	return ""
}

func headerContains(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
