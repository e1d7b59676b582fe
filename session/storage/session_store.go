package storage

import (
	"time"

	"github.com/freekieb7/embedio/session"
)

type SessionStore interface {
	Close() error
	Has(id string) bool
	Get(id string) (map[string]any, error)
	Save(session session.Session) error
	Delete(id string) error
	// PurgeExpired removes the sessions expired at now and returns how many were removed.
	PurgeExpired(now time.Time) int
}
