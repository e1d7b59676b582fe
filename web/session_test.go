package web

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/session/storage"
	"github.com/freekieb7/embedio/test"
)

// waitForCount polls store until session id holds count, since sessions are
// saved after the response went out.
func waitForCount(t *testing.T, store *storage.MemorySessionStore, id string, count int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if attributes, err := store.Get(id); err == nil && attributes["count"] == count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Session %s never reached count %d", id, count)
}

func TestSessionModule(t *testing.T) {
	store := storage.NewMemorySessionStore()

	s, base := newTestServer(t)
	s.WithSessions("/", store).
		WithAction("/count/", "GET", func(ctx *http.Context) error {
			count := ctx.Session.Get("count", 0).(int) + 1
			ctx.Session.Set("count", count)
			ctx.SetHandled()
			return ctx.Response.WithText(fmt.Sprintf("%d", count))
		})
	run(t, s)

	jar, err := cookiejar.New(nil)
	test.AssertNoError(t, err)
	client := &nethttp.Client{Jar: jar}

	var id string
	for i := 1; i <= 3; i++ {
		resp, err := client.Get(base + "/count/")
		test.AssertNoError(t, err)
		resp.Body.Close()
		test.AssertEqual(t, nethttp.StatusOK, resp.StatusCode)

		var cookie *nethttp.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == DefaultSessionCookie {
				cookie = c
			}
		}
		test.AssertTrue(t, cookie != nil, "session cookie should be set")
		test.AssertTrue(t, cookie.HttpOnly, "session cookie should be HttpOnly")
		if id == "" {
			id = cookie.Value
		}
		test.AssertEqual(t, id, cookie.Value)

		waitForCount(t, store, id, i)
	}
}

func TestSessionModuleIgnoresUnknownCookie(t *testing.T) {
	store := storage.NewMemorySessionStore()

	s, base := newTestServer(t)
	s.WithSessions("/", store)
	run(t, s)

	resp, _ := get(t, base+"/", map[string]string{"Cookie": DefaultSessionCookie + "=forged"})
	test.AssertEqual(t, nethttp.StatusNotFound, resp.StatusCode)

	var value string
	for _, c := range resp.Cookies() {
		if c.Name == DefaultSessionCookie {
			value = c.Value
		}
	}
	test.AssertTrue(t, value != "" && value != "forged", "a new session id should be issued")
	test.AssertTrue(t, !store.Has("forged"), "forged id should not be stored")
}

func TestSessionModuleHousekeep(t *testing.T) {
	store := storage.NewMemorySessionStore()
	m := NewSessionModule("/", store, WithSessionTTL(time.Millisecond))

	s, base := newTestServer(t)
	s.WithModule("session", m)
	run(t, s)

	resp, _ := get(t, base+"/", nil)
	test.AssertEqual(t, nethttp.StatusNotFound, resp.StatusCode)

	deadline := time.Now().Add(time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	test.AssertEqual(t, 1, store.Len())

	time.Sleep(5 * time.Millisecond)
	m.Housekeep(context.Background())
	test.AssertEqual(t, 0, store.Len())
}
