package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MessageStore persists chat history. Messages are append-only.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a message store.
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append inserts a chat line and returns it with the storage-assigned id.
func (s *MessageStore) Append(roomID, userID uint, text string) (*Message, error) {
	msg := &Message{
		RoomID: roomID,
		UserID: userID,
		Text:   text,
		SentAt: time.Now(),
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// ListBefore returns up to limit messages of the room sent before the
// given time, oldest first within the window. Ordering is by sent_at then
// id so same-timestamp messages keep insertion order.
func (s *MessageStore) ListBefore(roomID uint, before time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Fetch the newest matching rows, then reverse into chronological
	// order for the caller.
	var page []Message
	err := s.db.
		Where("room_id = ? AND sent_at < ?", roomID, before).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit).
		Find(&page).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}
