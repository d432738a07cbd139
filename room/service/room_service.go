package service

import (
	"context"

	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/registry"
)

// RoomService defines the room coordination operations the transports use.
type RoomService interface {
	// Authenticate resolves a bearer token to its user. It is called once
	// per connection, before the connection enters the registry.
	Authenticate(ctx context.Context, token string) (userID uint, username string, err error)

	// Join confirms a join already authorized over HTTP and produces the
	// snapshot the new connection needs.
	Join(ctx context.Context, conn registry.ConnID, roomID uint) (*JoinResult, error)

	// Disconnect handles socket close at any protocol state.
	Disconnect(ctx context.Context, conn registry.ConnID)

	// Track mutations. All are ownership-checked except ReplaceTracks,
	// which is the wholesale client-authoritative list update.
	ApplySoundSelection(ctx context.Context, conn registry.ConnID, trackID, instrument, soundName string) (*room.Track, error)
	ApplyTrackMove(ctx context.Context, conn registry.ConnID, trackID string, position int) (*room.Track, error)
	ReplaceTracks(ctx context.Context, conn registry.ConnID, tracks []room.Track) error
	RemoveTrack(ctx context.Context, conn registry.ConnID, trackID string) error

	// Chat and ephemeral relays.
	AppendChatMessage(ctx context.Context, conn registry.ConnID, text string) (*room.ChatMessage, error)
	RelayTrackStatus(ctx context.Context, conn registry.ConnID, trackID, status string) error
	RelayMousePosition(ctx context.Context, conn registry.ConnID, x, y float64, timestamp int64) error

	// Roster returns the room's connected users, deduplicated by user id.
	Roster(roomID uint) []room.Member
}

// Broadcaster fans an event out to every connection in a room, optionally
// excluding one. Implemented by the WebSocket hub. Delivery is
// fire-and-forget: per-peer failures stay inside the implementation.
type Broadcaster interface {
	BroadcastToRoom(roomID uint, payload any, exclude registry.ConnID)
}

// JoinResult is the reply to a successful join. ConnectedUsers lists the
// other members only; the joiner is excluded.
type JoinResult struct {
	RoomID             uint          `json:"roomId"`
	ConnectedUsers     []room.Member `json:"connectedUsers"`
	AssignedInstrument string        `json:"assignedInstrument"`
	Song               room.Song     `json:"song"`
}
