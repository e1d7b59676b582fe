package websocket

import (
	"testing"

	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/test"
)

func TestComputeAcceptKey(t *testing.T) {
	// RFC 6455 section 1.3
	test.AssertEqual(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func upgradeRequest(mutate func(req *http.Request)) *http.Request {
	req := &http.Request{Method: "GET", Header: make(http.Header)}
	req.Header.Set("Connection", "keep-alive, Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	if mutate != nil {
		mutate(req)
	}
	return req
}

func TestCheckUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *http.Request)
		status int
		err    error
	}{
		{"valid", nil, 0, nil},
		{"method", func(req *http.Request) { req.Method = "POST" }, http.StatusMethodNotAllowed, ErrBadMethod},
		{"no upgrade", func(req *http.Request) { req.Header.Del("Upgrade") }, http.StatusBadRequest, ErrNotWebSocket},
		{"no connection token", func(req *http.Request) { req.Header.Set("Connection", "keep-alive") }, http.StatusBadRequest, ErrNotWebSocket},
		{"version", func(req *http.Request) { req.Header.Set("Sec-WebSocket-Version", "8") }, http.StatusUpgradeRequired, ErrUnsupportedVersion},
		{"missing key", func(req *http.Request) { req.Header.Del("Sec-WebSocket-Key") }, http.StatusBadRequest, ErrBadKey},
		{"short key", func(req *http.Request) { req.Header.Set("Sec-WebSocket-Key", "c2hvcnQ=") }, http.StatusBadRequest, ErrBadKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkUpgrade(upgradeRequest(tt.mutate))
			if tt.err == nil {
				test.AssertNoError(t, err)
				return
			}

			test.AssertErrorIs(t, err, tt.err)
			herr, ok := err.(*HandshakeError)
			test.AssertTrue(t, ok, "expected a *HandshakeError")
			if ok {
				test.AssertEqual(t, tt.status, herr.Status)
			}
		})
	}
}

func TestSelectSubprotocol(t *testing.T) {
	test.AssertEqual(t, "chat", selectSubprotocol("superchat, chat", []string{"chat", "superchat"}))
	test.AssertEqual(t, "superchat", selectSubprotocol("chat,superchat", []string{"superchat", "chat"}))
	test.AssertEqual(t, "chat", selectSubprotocol(" , chat", []string{"v2", "chat"}))
	test.AssertEqual(t, "", selectSubprotocol("other", []string{"chat"}))
	test.AssertEqual(t, "", selectSubprotocol("", []string{"chat"}))
}

func TestClosePayload(t *testing.T) {
	status, reason, err := parseClosePayload(closePayload(CloseNormal, "bye"))
	test.AssertNoError(t, err)
	test.AssertEqual(t, CloseNormal, status)
	test.AssertEqual(t, "bye", reason)

	status, _, err = parseClosePayload(nil)
	test.AssertNoError(t, err)
	test.AssertEqual(t, CloseEmpty, status)

	_, _, err = parseClosePayload([]byte{0x03})
	test.AssertErrorIs(t, err, ErrInvalidClosePayload)

	_, _, err = parseClosePayload([]byte{0x03, 0xED})
	test.AssertErrorIs(t, err, ErrInvalidClosePayload)

	long := closePayload(CloseNormal, string(make([]byte, 200)))
	test.AssertTrue(t, len(long) <= MaxControlPayload, "close payload should fit a control frame")
}
