package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bandloop/bandloop/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters")
	ErrInvalidPassword    = errors.New("password must be at least 8 characters")
)

// DefaultSessionTTL is how long issued sessions stay valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Service implements signup and login over the user and session stores.
type Service struct {
	users    *store.UserStore
	sessions *store.SessionStore
	hasher   *PasswordHasher
	ttl      time.Duration
}

// NewService creates an auth service with the default session TTL.
func NewService(users *store.UserStore, sessions *store.SessionStore) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   NewPasswordHasher(),
		ttl:      DefaultSessionTTL,
	}
}

// Signup registers a new user and logs them in, returning the user and a
// fresh session token.
func (s *Service) Signup(username, password string) (*store.User, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, "", ErrInvalidUsername
	}
	if len(password) < 8 {
		return nil, "", ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(username, hash)
	if err != nil {
		return nil, "", err
	}

	sess, err := s.sessions.Create(user.ID, s.ttl)
	if err != nil {
		return nil, "", err
	}
	return user, sess.Token, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(username, password string) (*store.User, string, error) {
	user, err := s.users.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(user.ID, s.ttl)
	if err != nil {
		return nil, "", err
	}
	return user, sess.Token, nil
}

// Logout invalidates the session token.
func (s *Service) Logout(token string) error {
	return s.sessions.Delete(token)
}
