package session

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

/*
Inspited by https://github.com/symfony/symfony/blob/7.2/src/Symfony/Component/HttpFoundation/Session/SessionInterface.php
*/
type Session interface {
	GetId() string
	GetName() string
	Has(name string) bool
	Get(name string, fallback any) any
	Set(name string, value any)
	All() map[string]any
	Replace(attributes map[string]any)
	Remove(name string)
	Clear()

	ExpiresAt() time.Time
	IsExpired(now time.Time) bool
	// Touch extends the lifetime of the session to now plus ttl.
	Touch(ttl time.Duration)
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

type defaultSession struct {
	mu         sync.RWMutex
	id         string
	name       string
	attributes map[string]any
	expiresAt  time.Time
}

func NewDefaultSession(id, name string, attributes map[string]any) Session {
	if attributes == nil {
		attributes = make(map[string]any)
	}

	return &defaultSession{
		id:         id,
		name:       name,
		attributes: attributes,
	}
}

func (s *defaultSession) GetId() string {
	return s.id
}

func (s *defaultSession) GetName() string {
	return s.name
}

// All returns a copy of the attributes.
func (s *defaultSession) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.attributes)
}

func (s *defaultSession) Clear() {
	s.mu.Lock()
	s.attributes = make(map[string]any)
	s.mu.Unlock()
}

func (s *defaultSession) Get(name string, fallback any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.attributes[name]
	if !found {
		return fallback
	}

	return value
}

func (s *defaultSession) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, found := s.attributes[name]
	return found
}

func (s *defaultSession) Remove(name string) {
	s.mu.Lock()
	delete(s.attributes, name)
	s.mu.Unlock()
}

func (s *defaultSession) Replace(attributes map[string]any) {
	s.mu.Lock()
	s.attributes = maps.Clone(attributes)
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.mu.Unlock()
}

func (s *defaultSession) Set(name string, value any) {
	s.mu.Lock()
	s.attributes[name] = value
	s.mu.Unlock()
}

func (s *defaultSession) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiresAt
}

// IsExpired is false for a session that never expires.
func (s *defaultSession) IsExpired(now time.Time) bool {
	expiresAt := s.ExpiresAt()
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

func (s *defaultSession) Touch(ttl time.Duration) {
	s.mu.Lock()
	s.expiresAt = time.Now().Add(ttl)
	s.mu.Unlock()
}
