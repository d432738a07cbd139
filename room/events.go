package room

// Events broadcast to room members. Every payload carries its own type tag
// so the fabric can stay payload-agnostic. Wherever feasible these are full
// state snapshots (complete track, complete roster) rather than deltas, so
// reordering across connections has no lasting effect.

// Wire values for the "type" tag on every outbound event.
const (
	EventRoomJoined    = "room_joined"
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventMessage       = "message"
	EventTrackUpdated  = "track_updated"
	EventTrackRemoved  = "track_removed"
	EventTrackStatus   = "track_status"
	EventMousePosition = "mouse_position"
	EventError         = "error"
)

// UserJoinedEvent announces a new member. It carries the complete updated
// roster so existing peers reconcile without per-event accumulation.
type UserJoinedEvent struct {
	Type           string   `json:"type"`
	UserID         uint     `json:"userId"`
	Username       string   `json:"username"`
	ConnectedUsers []Member `json:"connectedUsers"`
}

// UserLeftEvent announces that a user's last connection in the room closed.
type UserLeftEvent struct {
	Type     string `json:"type"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

// MessageEvent carries a persisted chat message to the rest of the room.
// The sender renders its own echo locally and is excluded from delivery.
type MessageEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"messageId"`
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TrackUpdatedEvent carries either a single mutated track or, for wholesale
// replaces, the full new list.
type TrackUpdatedEvent struct {
	Type   string  `json:"type"`
	UserID uint    `json:"userId"`
	Track  *Track  `json:"track,omitempty"`
	Tracks []Track `json:"tracks,omitempty"`
}

// TrackRemovedEvent announces a deleted track.
type TrackRemovedEvent struct {
	Type    string `json:"type"`
	UserID  uint   `json:"userId"`
	TrackID string `json:"trackId"`
}

// MousePositionEvent relays a peer's cursor during drags. High-frequency;
// throttled at the transport layer.
type MousePositionEvent struct {
	Type      string  `json:"type"`
	UserID    uint    `json:"userId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

// TrackStatusEvent relays a client-reported load status for a track.
type TrackStatusEvent struct {
	Type    string `json:"type"`
	UserID  uint   `json:"userId"`
	TrackID string `json:"trackId"`
	Status  string `json:"status"`
}
