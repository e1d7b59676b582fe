package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"github.com/freekieb7/embedio/filesystem"
	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/test"
)

// newTestServer returns a server bound to a free loopback port and its address.
func newTestServer(t *testing.T) (*WebServer, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.AssertNoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewWebServer(
		WithURLPrefix(fmt.Sprintf("http://127.0.0.1:%d/", port)),
		WithListenerOptions(http.WithTimeouts(2*time.Second, 2*time.Second)),
	)
	return s, fmt.Sprintf("http://127.0.0.1:%d", port)
}

// run starts s and stops it when the test ends.
func run(t *testing.T, s *WebServer) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateListening && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.State() != StateListening {
		cancel()
		t.Fatalf("Server did not start: %v", <-done)
	}

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	})
}

func get(t *testing.T, url string, header map[string]string) (*nethttp.Response, string) {
	t.Helper()
	return do(t, "GET", url, header)
}

func do(t *testing.T, method, url string, header map[string]string) (*nethttp.Response, string) {
	t.Helper()

	req, err := nethttp.NewRequest(method, url, nil)
	test.AssertNoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := nethttp.DefaultClient.Do(req)
	test.AssertNoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	test.AssertNoError(t, err)
	return resp, string(body)
}

func decodeError(t *testing.T, body string) errorBody {
	t.Helper()

	var e errorBody
	test.AssertNoError(t, json.Unmarshal([]byte(body), &e))
	return e
}

func TestServerStates(t *testing.T) {
	s, _ := newTestServer(t)

	var mu sync.Mutex
	var states []State
	s.OnStateChanged(func(_, state State) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateListening && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	test.AssertErrorIs(t, s.Run(ctx), ErrServerStarted)

	cancel()
	test.AssertNoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	test.AssertEqual(t, []State{StateLoading, StateListening, StateStopping, StateStopped}, states)
}

func TestServerReportsRegistrationErrors(t *testing.T) {
	s, _ := newTestServer(t)
	s.WithAction("/a/", "", func(ctx *http.Context) error { return nil })
	s.WithAction("/a/", "", func(ctx *http.Context) error { return nil })
	s.WithStaticFolder("/static/", "/definitely/not/here")

	err := s.Run(context.Background())
	test.AssertErrorIs(t, err, ErrDuplicateModule)
	test.AssertErrorIs(t, err, filesystem.ErrDirectoryNotFound)
	test.AssertEqual(t, StateCreated, s.State())
}

func TestServerWithoutPrefix(t *testing.T) {
	test.AssertErrorIs(t, NewWebServer().Run(context.Background()), ErrNoPrefixes)
}

func TestPipelineOrder(t *testing.T) {
	s, base := newTestServer(t)

	var seen []string
	var mu sync.Mutex
	record := func(name string) ActionFunc {
		return func(ctx *http.Context) error {
			mu.Lock()
			seen = append(seen, name+" "+ctx.Route.SubPath)
			mu.Unlock()
			return nil
		}
	}

	s.WithAction("/", "", record("root"))
	s.WithAction("/app/", "POST", record("post"))
	s.WithAction("/app/", "GET", func(ctx *http.Context) error {
		record("get")(ctx)
		ctx.Response.Header.Set("X-Seen", "get")
		return nil
	})
	s.WithModule("final", NewRedirectModule("/app/", "/elsewhere", http.StatusMovedPermanently))
	s.WithAction("/app/", "", record("unreachable"))
	run(t, s)

	client := &nethttp.Client{CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
		return nethttp.ErrUseLastResponse
	}}
	resp, err := client.Get(base + "/app/page")
	test.AssertNoError(t, err)
	resp.Body.Close()

	test.AssertEqual(t, nethttp.StatusMovedPermanently, resp.StatusCode)
	test.AssertEqual(t, "/elsewhere", resp.Header.Get("Location"))
	test.AssertEqual(t, "get", resp.Header.Get("X-Seen"))

	mu.Lock()
	defer mu.Unlock()
	test.AssertEqual(t, []string{"root /app/page", "get /page"}, seen)
}

func TestPipelineHandledStopsChain(t *testing.T) {
	s, base := newTestServer(t)
	s.WithAction("/", "", func(ctx *http.Context) error {
		ctx.SetHandled()
		return ctx.Response.WithText("first")
	})
	s.WithAction("/", "", func(ctx *http.Context) error {
		return ctx.Response.WithText("second")
	})
	run(t, s)

	_, body := get(t, base+"/", nil)
	test.AssertEqual(t, "first", body)
}

func TestBuildersChainOnOneRoute(t *testing.T) {
	s, base := newTestServer(t)
	s.WithAction("/", "GET", func(ctx *http.Context) error {
		ctx.Response.Header.Set("X-First", "1")
		return nil
	})
	s.WithAction("/", "GET", func(ctx *http.Context) error {
		ctx.SetHandled()
		return ctx.Response.WithText("second")
	})
	test.AssertEqual(t, []string{"action:GET:/#1", "action:GET:/#2"}, s.Modules().Names())
	run(t, s)

	resp, body := get(t, base+"/", nil)
	test.AssertEqual(t, "1", resp.Header.Get("X-First"))
	test.AssertEqual(t, "second", body)
}

func TestPipelineUnhandled(t *testing.T) {
	s, base := newTestServer(t)
	s.WithAction("/api/", "", func(ctx *http.Context) error { return nil })
	run(t, s)

	resp, body := get(t, base+"/nothing", nil)
	test.AssertEqual(t, nethttp.StatusNotFound, resp.StatusCode)
	test.AssertEqual(t, errorBody{Status: 404, Message: "Not Found"}, decodeError(t, body))
}

func TestPipelineErrors(t *testing.T) {
	s, base := newTestServer(t)
	s.WithAction("/teapot/", "", func(ctx *http.Context) error {
		return NewHTTPError(http.StatusTeapot, "short and stout")
	})
	s.WithAction("/broken/", "", func(ctx *http.Context) error {
		return errors.New("database exploded")
	})
	s.WithAction("/panic/", "", func(ctx *http.Context) error {
		panic("boom")
	})
	run(t, s)

	resp, body := get(t, base+"/teapot/", nil)
	test.AssertEqual(t, http.StatusTeapot, resp.StatusCode)
	test.AssertEqual(t, "short and stout", decodeError(t, body).Message)

	resp, body = get(t, base+"/broken/", nil)
	test.AssertEqual(t, nethttp.StatusInternalServerError, resp.StatusCode)
	test.AssertEqual(t, "Internal Server Error", decodeError(t, body).Message)

	resp, _ = get(t, base+"/panic/", nil)
	test.AssertEqual(t, nethttp.StatusInternalServerError, resp.StatusCode)

	// the server survives the panic
	resp, _ = get(t, base+"/teapot/", nil)
	test.AssertEqual(t, http.StatusTeapot, resp.StatusCode)
}

func TestHandlerModule(t *testing.T) {
	s, base := newTestServer(t)
	s.WithModule("legacy", NewHandlerModule("/legacy/", nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Length", "8")
		w.WriteHeader(nethttp.StatusAccepted)
		fmt.Fprint(w, r.URL.Path[:8])
	})))
	run(t, s)

	resp, body := get(t, base+"/legacy/abc", nil)
	test.AssertEqual(t, nethttp.StatusAccepted, resp.StatusCode)
	test.AssertEqual(t, int64(8), resp.ContentLength)
	test.AssertEqual(t, "/legacy/", body)
}
