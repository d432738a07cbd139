package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrSessionExpired = errors.New("session expired")

// SessionStore manages opaque bearer-token sessions. Expiry is enforced
// lazily at validation time; there is no background sweep.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a session store.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create issues a fresh session token for the user.
func (s *SessionStore) Create(userID uint, ttl time.Duration) (*Session, error) {
	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Validate looks up a token and checks expiry. Expired sessions are
// deleted on the spot and reported as ErrSessionExpired; unknown tokens
// report ErrNotFound.
func (s *SessionStore) Validate(token string) (*Session, error) {
	var sess Session
	if err := s.db.First(&sess, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		if err := s.db.Delete(&Session{}, "token = ?", token).Error; err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, ErrSessionExpired
	}

	return &sess, nil
}

// UpdateRoom records which room the session is authorized to enter over
// WebSocket. The HTTP join endpoint passes the room id; the leave endpoint
// and the disconnect path pass nil.
func (s *SessionStore) UpdateRoom(token string, roomID *uint) error {
	result := s.db.Model(&Session{}).
		Where("token = ?", token).
		Update("room_id", roomID)
	if result.Error != nil {
		return fmt.Errorf("failed to update session room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session (logout).
func (s *SessionStore) Delete(token string) error {
	if err := s.db.Delete(&Session{}, "token = ?", token).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
