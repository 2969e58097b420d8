// Package auth keeps the bearer token issued by the backend in the client
// key-value store so it survives between invocations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/store"
)

// ErrMissingCredentials is returned when username or password is blank.
var ErrMissingCredentials = errors.New("username and password are required")

// Authenticator exchanges a username and password for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Session reads and writes the persisted token. It satisfies api.TokenSource.
type Session struct {
	store store.Store
}

// NewSession creates a session over st.
func NewSession(st store.Store) *Session {
	return &Session{store: st}
}

// Login authenticates through a and stores the returned token.
func (s *Session) Login(ctx context.Context, a Authenticator, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrMissingCredentials
	}

	token, err := a.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := s.store.Set(constants.TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Token returns the stored token, or "" when logged out.
func (s *Session) Token() string {
	token, _ := s.store.Get(constants.TokenKey)
	return token
}

// LoggedIn reports whether a token is stored.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Logout forgets the stored token.
func (s *Session) Logout() error {
	if err := s.store.Delete(constants.TokenKey); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}
