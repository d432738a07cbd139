package store

import "time"

// User is a registered account. Password handling lives in the auth
// package; the store only persists the hash.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string
	CreatedAt    time.Time
}

// Room is a durable collaborative session. Contents holds the serialized
// track list; Version backs the compare-and-swap update protocol.
type Room struct {
	ID        uint `gorm:"primaryKey"`
	SongName  string
	CreatedBy uint
	Contents  string
	Version   uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session maps a bearer token to a user and, once the HTTP join endpoint
// has run, the room that user is authorized to enter over WebSocket.
// RoomID is nil until then.
type Session struct {
	Token     string `gorm:"primaryKey;size:64"`
	UserID    uint   `gorm:"index"`
	RoomID    *uint
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Message is one chat line; append-only, never mutated. Ordering is by
// SentAt then ID.
type Message struct {
	ID     uint `gorm:"primaryKey"`
	RoomID uint `gorm:"index:idx_messages_room_sent"`
	UserID uint
	Text   string
	SentAt time.Time `gorm:"index:idx_messages_room_sent"`
}
