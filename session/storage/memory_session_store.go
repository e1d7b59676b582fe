package storage

import (
	"errors"
	"maps"
	"time"

	"github.com/freekieb7/embedio/session"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrSessionNotFound = errors.New("session store: session not found")

const MemorySessionStoreName = "memory"

type memoryEntry struct {
	attributes map[string]any
	expiresAt  time.Time
}

// MemorySessionStore keeps sessions in process memory. It is safe for concurrent use.
type MemorySessionStore struct {
	data *xsync.MapOf[string, memoryEntry]
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		data: xsync.NewMapOf[string, memoryEntry](),
	}
}

func (m *MemorySessionStore) Close() error {
	m.data.Clear()
	return nil
}

func (m *MemorySessionStore) Has(id string) bool {
	entry, found := m.data.Load(id)
	return found && !expired(entry, time.Now())
}

func (m *MemorySessionStore) Get(id string) (map[string]any, error) {
	entry, found := m.data.Load(id)
	if !found || expired(entry, time.Now()) {
		return nil, ErrSessionNotFound
	}

	return maps.Clone(entry.attributes), nil
}

func (m *MemorySessionStore) Save(session session.Session) error {
	m.data.Store(session.GetId(), memoryEntry{
		attributes: session.All(),
		expiresAt:  session.ExpiresAt(),
	})
	return nil
}

func (m *MemorySessionStore) Delete(id string) error {
	m.data.Delete(id)
	return nil
}

func (m *MemorySessionStore) PurgeExpired(now time.Time) int {
	purged := 0
	m.data.Range(func(id string, entry memoryEntry) bool {
		if expired(entry, now) {
			m.data.Delete(id)
			purged++
		}
		return true
	})
	return purged
}

// Len is the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	return m.data.Size()
}

func expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}
