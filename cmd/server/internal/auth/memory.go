package auth

import (
	"context"
	"sync"
	"time"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

type session struct {
	identity models.Identity
	issuedAt time.Time
}

// MemoryStore keeps live sessions in a mutex-guarded map. State does not
// survive restart.
type MemoryStore struct {
	creds []models.Credential

	mu       sync.RWMutex
	sessions map[string]session
}

func NewMemoryStore(creds []models.Credential) *MemoryStore {
	return &MemoryStore{
		creds:    creds,
		sessions: make(map[string]session),
	}
}

func (s *MemoryStore) Login(ctx context.Context, email, password string) (models.Identity, string, error) {
	identity, err := authenticate(s.creds, email, password)
	if err != nil {
		return models.Identity{}, "", err
	}

	now := time.Now()
	token := newToken(identity.ID, now)

	s.mu.Lock()
	s.sessions[token] = session{identity: identity, issuedAt: now}
	s.mu.Unlock()

	return identity, token, nil
}

func (s *MemoryStore) Verify(ctx context.Context, token string) (models.Identity, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	return sess.identity, ok, nil
}

func (s *MemoryStore) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Refresh invalidates the old token and inserts the new one under a
// single critical section, so no reader ever sees both or neither live.
func (s *MemoryStore) Refresh(ctx context.Context, token string) (models.Identity, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return models.Identity{}, "", false, nil
	}

	now := time.Now()
	fresh := newToken(sess.identity.ID, now)
	delete(s.sessions, token)
	s.sessions[fresh] = session{identity: sess.identity, issuedAt: now}

	return sess.identity, fresh, true, nil
}

func (s *MemoryStore) Close() error { return nil }
