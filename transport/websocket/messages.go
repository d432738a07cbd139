package websocket

import (
	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/service"
)

// inboundMessage is the tagged union of everything a client may send.
// Handlers validate the fields their type requires.
type inboundMessage struct {
	Type       string       `json:"type"`
	RoomID     uint         `json:"roomId,omitempty"`
	Message    string       `json:"message,omitempty"`
	TrackID    string       `json:"trackId,omitempty"`
	Instrument string       `json:"instrument,omitempty"`
	SoundName  string       `json:"soundName,omitempty"`
	Position   *int         `json:"position,omitempty"`
	Tracks     []room.Track `json:"tracks,omitempty"`
	Status     string       `json:"status,omitempty"`
	X          float64      `json:"x,omitempty"`
	Y          float64      `json:"y,omitempty"`
	Timestamp  int64        `json:"timestamp,omitempty"`
}

// roomJoinedMessage is the direct reply to a successful join_room.
type roomJoinedMessage struct {
	Type string `json:"type"`
	service.JoinResult
}

// errorMessage is the typed failure reply, delivered to the sender only.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
