package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bandloop/bandloop/room"
)

// RoomStore persists rooms and their versioned contents blobs.
type RoomStore struct {
	db *gorm.DB
}

// NewRoomStore creates a room store.
func NewRoomStore(db *gorm.DB) *RoomStore {
	return &RoomStore{db: db}
}

// Create inserts a room with an empty track list.
func (s *RoomStore) Create(songName string, createdBy uint) (*Room, error) {
	contents, _ := json.Marshal(room.Contents{Tracks: []room.Track{}})
	r := &Room{SongName: songName, CreatedBy: createdBy, Contents: string(contents)}
	if err := s.db.Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return r, nil
}

// FindByID returns the room with the given id.
func (s *RoomStore) FindByID(id uint) (*Room, error) {
	var r Room
	if err := s.db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &r, nil
}

// List returns all rooms, newest first.
func (s *RoomStore) List() ([]Room, error) {
	var rooms []Room
	if err := s.db.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// LoadContents returns the room's deserialized track list and the version
// it was read at, for a later compare-and-swap write.
func (s *RoomStore) LoadContents(id uint) (room.Contents, uint, error) {
	r, err := s.FindByID(id)
	if err != nil {
		return room.Contents{}, 0, err
	}

	var contents room.Contents
	if r.Contents != "" {
		if err := json.Unmarshal([]byte(r.Contents), &contents); err != nil {
			return room.Contents{}, 0, fmt.Errorf("corrupt room contents: %w", err)
		}
	}
	return contents, r.Version, nil
}

// UpdateContents writes the track list, guarded by the version observed at
// read time. A concurrent writer bumps the version and this call returns
// ErrVersionConflict; the caller re-reads and retries.
func (s *RoomStore) UpdateContents(id uint, contents room.Contents, expectedVersion uint) error {
	data, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to serialize contents: %w", err)
	}

	result := s.db.Model(&Room{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"contents": string(data),
			"version":  expectedVersion + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update room contents: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.FindByID(id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}
