package room

import "time"

// Track is one audio clip placed on the shared timeline. The ID is
// client-generated (time-based) and unique within the room; only the owner
// may mutate instrument, sound, or position.
type Track struct {
	ID         string `json:"id"`
	OwnerID    uint   `json:"ownerId"`
	Instrument string `json:"instrument"`
	SoundName  string `json:"soundName"`
	Position   int    `json:"position"`
	Color      string `json:"color,omitempty"`
}

// Contents is the persisted shared state of a room: its ordered track list.
type Contents struct {
	Tracks []Track `json:"tracks"`
}

// Find returns a pointer to the track with the given id, or nil.
func (c *Contents) Find(id string) *Track {
	for i := range c.Tracks {
		if c.Tracks[i].ID == id {
			return &c.Tracks[i]
		}
	}
	return nil
}

// Remove deletes the track with the given id, preserving order.
// It reports whether a track was removed.
func (c *Contents) Remove(id string) bool {
	for i := range c.Tracks {
		if c.Tracks[i].ID == id {
			c.Tracks = append(c.Tracks[:i], c.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// Song is the snapshot a joining client needs to render a room.
type Song struct {
	RoomID    uint    `json:"roomId"`
	Name      string  `json:"songName"`
	CreatedBy uint    `json:"createdBy"`
	Tracks    []Track `json:"tracks"`
}

// Member is one roster entry. Rosters are always deduplicated by user id,
// never by connection: a user with two open tabs appears once.
type Member struct {
	UserID     uint   `json:"userId"`
	Username   string `json:"username"`
	Instrument string `json:"instrument,omitempty"`
}

// ChatMessage is the enriched, broadcast-ready form of a stored message.
type ChatMessage struct {
	MessageID uint      `json:"messageId"`
	RoomID    uint      `json:"roomId"`
	UserID    uint      `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"message"`
	SentAt    time.Time `json:"timestamp"`
}
