package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrUsernameTaken = errors.New("username already taken")

// UserStore provides the narrow user lookups the system needs.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a user store.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user with an already-hashed password.
func (s *UserStore) Create(username, passwordHash string) (*User, error) {
	user := &User{Username: username, PasswordHash: passwordHash}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		// SQLite reports unique violations as plain errors; check the
		// username to classify.
		var existing User
		if lookupErr := s.db.First(&existing, "username = ?", username).Error; lookupErr == nil {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// FindByID returns the user with the given id.
func (s *UserStore) FindByID(id uint) (*User, error) {
	var user User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindByUsername returns the user with the given username.
func (s *UserStore) FindByUsername(username string) (*User, error) {
	var user User
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
