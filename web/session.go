package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/session"
	"github.com/freekieb7/embedio/session/storage"
)

const (
	DefaultSessionCookie = "__session"
	DefaultSessionTTL    = 30 * time.Minute
)

// SessionModule restores the session named by the session cookie, or starts
// a new one, and saves it once the response is closed.
type SessionModule struct {
	ModuleBase
	store      storage.SessionStore
	cookieName string
	ttl        time.Duration
}

type SessionOption func(*SessionModule)

func WithSessionCookie(name string) SessionOption {
	return func(m *SessionModule) {
		m.cookieName = name
	}
}

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionModule) {
		m.ttl = ttl
	}
}

func NewSessionModule(baseRoute string, store storage.SessionStore, opts ...SessionOption) *SessionModule {
	m := &SessionModule{
		ModuleBase: NewModuleBase(baseRoute, false),
		store:      store,
		cookieName: DefaultSessionCookie,
		ttl:        DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SessionModule) HandleRequest(ctx *http.Context) error {
	var sess session.Session
	if cookie, err := ctx.Request.Cookie(m.cookieName); err == nil {
		if attributes, err := m.store.Get(cookie.Value); err == nil {
			sess = session.NewDefaultSession(cookie.Value, m.cookieName, attributes)
		}
	}
	if sess == nil {
		sess = session.NewDefaultSession(session.NewID(), m.cookieName, nil)
	}
	sess.Touch(m.ttl)
	ctx.Session = sess

	ctx.Response.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    sess.GetId(),
		Path:     "/",
		Expires:  sess.ExpiresAt(),
		Secure:   ctx.Request.IsSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	ctx.OnClose(func(c *http.Context) {
		if err := m.store.Save(sess); err != nil {
			logger.Warn("Saving session failed", slog.String("session", sess.GetId()), slog.Any("error", err))
		}
	})
	return nil
}

// Housekeep purges expired sessions.
func (m *SessionModule) Housekeep(ctx context.Context) {
	if n := m.store.PurgeExpired(time.Now()); n > 0 {
		logger.DebugContext(ctx, "Purged expired sessions", slog.Int("count", n))
	}
}
