package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

var (
	// ErrMissingCredentials is returned when either login field is empty.
	ErrMissingCredentials = errors.New("email and password are required")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Callers must not be able to tell which one failed.
	ErrInvalidCredentials = errors.New("email and password are incorrect")
)

// Store owns the token -> identity mapping for live sessions.
//
// Verify and Refresh take a context because a real credential backend
// may block; the in-memory implementation ignores it.
type Store interface {
	// Login authenticates against the credential records and issues a
	// fresh token bound to the matching identity.
	Login(ctx context.Context, email, password string) (models.Identity, string, error)

	// Verify resolves a token to its identity. Unknown or empty tokens
	// return ok=false, never an error of their own.
	Verify(ctx context.Context, token string) (models.Identity, bool, error)

	// Logout removes a session. Removing an absent token is a no-op.
	Logout(ctx context.Context, token string) error

	// Refresh atomically invalidates the old token and issues a new one
	// for the same identity. ok=false if the old token was not live.
	Refresh(ctx context.Context, token string) (models.Identity, string, bool, error)

	Close() error
}

// newToken derives an opaque bearer token from the identity id, the
// current time and a random component. Tokens carry no signature;
// validity means presence in the live session set. Collisions are
// negligible and treated as overwrite-last-wins.
func newToken(id string, now time.Time) string {
	return fmt.Sprintf("tok-%s-%d-%s", id, now.UnixMicro(), uuid.NewString()[:8])
}

// authenticate matches email+password against the credential records.
func authenticate(creds []models.Credential, email, password string) (models.Identity, error) {
	if email == "" || password == "" {
		return models.Identity{}, ErrMissingCredentials
	}
	for _, c := range creds {
		if c.Email == email && c.Password == password {
			return c.Identity, nil
		}
	}
	return models.Identity{}, ErrInvalidCredentials
}

// DemoCredentials returns the static login records used by the demo
// deployment. A production system would back these with a user store.
func DemoCredentials() []models.Credential {
	return []models.Credential{
		{
			Email:    "user-a@demo.com",
			Password: "demo",
			Identity: models.Identity{ID: "1", Email: "user-a@demo.com", DisplayName: "User A"},
		},
		{
			Email:    "user-b@demo.com",
			Password: "demo123",
			Identity: models.Identity{ID: "2", Email: "user-b@demo.com", DisplayName: "User B"},
		},
	}
}
