// Package session holds the single persisted authentication slot of the client.
package session

import (
	"context"
	"sync"
)

// Session is the persisted authentication state. An empty AccessToken is the
// same as no session.
type Session struct {
	AccessToken string `yaml:"accessToken" json:"accessToken"`
}

// Store is the durable slot holding at most one Session. Get returns nil, nil
// when nothing is stored. Set replaces the slot. Clear is idempotent.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Token returns the current access token or "" if there is none or the store
// could not be read.
func Token(ctx context.Context, store Store) string {
	s, err := store.Get(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.AccessToken == "" {
		m.session = nil
		return nil
	}
	m.session = &s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
