package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/instrument"
	"github.com/bandloop/bandloop/room/registry"
	"github.com/bandloop/bandloop/soundbank"
	"github.com/bandloop/bandloop/store"
)

// maxContentsRetries bounds the compare-and-swap retry loop on room
// contents. Conflicts are rare; three attempts is generous.
const maxContentsRetries = 3

// Service is the production RoomService.
type Service struct {
	users       *store.UserStore
	rooms       *store.RoomStore
	messages    *store.MessageStore
	sessions    *store.SessionStore
	registry    *registry.Registry
	allocator   *instrument.Allocator
	bank        *soundbank.Manager
	broadcaster Broadcaster
}

// NewService wires the room service. The broadcaster is typically the
// WebSocket hub.
func NewService(
	users *store.UserStore,
	rooms *store.RoomStore,
	messages *store.MessageStore,
	sessions *store.SessionStore,
	reg *registry.Registry,
	alloc *instrument.Allocator,
	bank *soundbank.Manager,
	broadcaster Broadcaster,
) *Service {
	return &Service{
		users:       users,
		rooms:       rooms,
		messages:    messages,
		sessions:    sessions,
		registry:    reg,
		allocator:   alloc,
		bank:        bank,
		broadcaster: broadcaster,
	}
}

// Authenticate resolves a token to its user, enforcing lazy expiry.
func (s *Service) Authenticate(_ context.Context, token string) (uint, string, error) {
	if token == "" {
		return 0, "", room.ErrUnauthenticated
	}

	sess, err := s.sessions.Validate(token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrSessionExpired) {
			return 0, "", room.ErrUnauthenticated
		}
		return 0, "", err
	}

	user, err := s.users.FindByID(sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, "", room.ErrUnauthenticated
		}
		return 0, "", err
	}

	return user.ID, user.Username, nil
}

// Join confirms the handshake. The WebSocket join_room message carries no
// authority of its own: the session persisted by the HTTP join endpoint
// must already name the same room, otherwise the caller is told to use the
// HTTP endpoint first.
func (s *Service) Join(_ context.Context, conn registry.ConnID, roomID uint) (*JoinResult, error) {
	rec, ok := s.registry.Get(conn)
	if !ok {
		return nil, room.ErrUnauthenticated
	}

	sess, err := s.sessions.Validate(rec.Token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrSessionExpired) {
			return nil, room.ErrUnauthenticated
		}
		return nil, err
	}
	if sess.RoomID == nil || *sess.RoomID != roomID {
		return nil, fmt.Errorf("%w: join the room via the HTTP endpoint first", room.ErrUnauthorized)
	}

	r, err := s.rooms.FindByID(roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: room %d", room.ErrNotFound, roomID)
		}
		return nil, err
	}
	contents, _, err := s.rooms.LoadContents(roomID)
	if err != nil {
		return nil, err
	}

	if err := s.registry.SetRoom(conn, roomID); err != nil {
		return nil, room.ErrUnauthenticated
	}

	inst, err := s.allocator.Assign(roomID, rec.UserID)
	if err != nil {
		return nil, err
	}

	others := s.rosterExcluding(roomID, rec.UserID)

	// Existing peers get the complete updated roster so they reconcile
	// without per-event accumulation.
	s.broadcaster.BroadcastToRoom(roomID, room.UserJoinedEvent{
		Type:           room.EventUserJoined,
		UserID:         rec.UserID,
		Username:       rec.Username,
		ConnectedUsers: s.Roster(roomID),
	}, conn)

	return &JoinResult{
		RoomID:             roomID,
		ConnectedUsers:     others,
		AssignedInstrument: inst,
		Song: room.Song{
			RoomID:    r.ID,
			Name:      r.SongName,
			CreatedBy: r.CreatedBy,
			Tracks:    contents.Tracks,
		},
	}, nil
}

// Disconnect tears a connection down at any protocol state. The instrument
// is released and user_left broadcast only when the user's last connection
// in the room closed.
func (s *Service) Disconnect(_ context.Context, conn registry.ConnID) {
	rec, ok := s.registry.Unregister(conn)
	if !ok || rec.RoomID == 0 {
		return
	}

	if err := s.sessions.UpdateRoom(rec.Token, nil); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("failed to clear session room on disconnect: %v", err)
	}

	if s.registry.UserHasConn(rec.RoomID, rec.UserID) {
		return
	}

	s.allocator.Release(rec.RoomID, rec.UserID)
	s.broadcaster.BroadcastToRoom(rec.RoomID, room.UserLeftEvent{
		Type:     room.EventUserLeft,
		UserID:   rec.UserID,
		Username: rec.Username,
	}, "")
}

// ApplySoundSelection sets a track's instrument and sound. Only the track
// owner may do this, and the sound must belong to the instrument's library.
func (s *Service) ApplySoundSelection(_ context.Context, conn registry.ConnID, trackID, instrument, soundName string) (*room.Track, error) {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return nil, err
	}
	if trackID == "" {
		return nil, fmt.Errorf("%w: trackId is required", room.ErrValidation)
	}
	if !s.bank.HasSound(instrument, soundName) {
		return nil, fmt.Errorf("%w: sound %q is not in the %q library", room.ErrValidation, soundName, instrument)
	}

	var updated room.Track
	err = s.mutateContents(rec.RoomID, func(c *room.Contents) error {
		tr := c.Find(trackID)
		if tr == nil {
			return fmt.Errorf("%w: track %s", room.ErrNotFound, trackID)
		}
		if tr.OwnerID != rec.UserID {
			return fmt.Errorf("%w: track %s belongs to another user", room.ErrUnauthorized, trackID)
		}
		tr.Instrument = instrument
		tr.SoundName = soundName
		if color := s.bank.ColorFor(instrument); color != "" {
			tr.Color = color
		}
		updated = *tr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.TrackUpdatedEvent{
		Type:   room.EventTrackUpdated,
		UserID: rec.UserID,
		Track:  &updated,
	}, conn)
	return &updated, nil
}

// ApplyTrackMove sets a track's timeline position. Owner only.
func (s *Service) ApplyTrackMove(_ context.Context, conn registry.ConnID, trackID string, position int) (*room.Track, error) {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return nil, err
	}
	if trackID == "" {
		return nil, fmt.Errorf("%w: trackId is required", room.ErrValidation)
	}
	if position < 0 {
		return nil, fmt.Errorf("%w: position must be >= 0", room.ErrValidation)
	}

	var updated room.Track
	err = s.mutateContents(rec.RoomID, func(c *room.Contents) error {
		tr := c.Find(trackID)
		if tr == nil {
			return fmt.Errorf("%w: track %s", room.ErrNotFound, trackID)
		}
		if tr.OwnerID != rec.UserID {
			return fmt.Errorf("%w: track %s belongs to another user", room.ErrUnauthorized, trackID)
		}
		tr.Position = position
		updated = *tr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.TrackUpdatedEvent{
		Type:   room.EventTrackUpdated,
		UserID: rec.UserID,
		Track:  &updated,
	}, conn)
	return &updated, nil
}

// ReplaceTracks is the wholesale client-authoritative update of the room's
// track list. No per-track ownership check at this layer.
func (s *Service) ReplaceTracks(_ context.Context, conn registry.ConnID, tracks []room.Track) error {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return err
	}
	if tracks == nil {
		return fmt.Errorf("%w: tracks is required", room.ErrValidation)
	}

	err = s.mutateContents(rec.RoomID, func(c *room.Contents) error {
		c.Tracks = tracks
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.TrackUpdatedEvent{
		Type:   room.EventTrackUpdated,
		UserID: rec.UserID,
		Tracks: tracks,
	}, conn)
	return nil
}

// RemoveTrack deletes a track. Owner only. Used both for explicit removal
// and for tracks whose audio failed to load irrecoverably.
func (s *Service) RemoveTrack(_ context.Context, conn registry.ConnID, trackID string) error {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return err
	}
	if trackID == "" {
		return fmt.Errorf("%w: trackId is required", room.ErrValidation)
	}

	err = s.mutateContents(rec.RoomID, func(c *room.Contents) error {
		tr := c.Find(trackID)
		if tr == nil {
			return fmt.Errorf("%w: track %s", room.ErrNotFound, trackID)
		}
		if tr.OwnerID != rec.UserID {
			return fmt.Errorf("%w: track %s belongs to another user", room.ErrUnauthorized, trackID)
		}
		c.Remove(trackID)
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.TrackRemovedEvent{
		Type:    room.EventTrackRemoved,
		UserID:  rec.UserID,
		TrackID: trackID,
	}, conn)
	return nil
}

// AppendChatMessage persists a chat line and broadcasts the enriched
// message to the rest of the room. The sender renders its own echo locally
// and only receives the returned message as an acknowledgment.
func (s *Service) AppendChatMessage(_ context.Context, conn registry.ConnID, text string) (*room.ChatMessage, error) {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message is required", room.ErrValidation)
	}

	msg, err := s.messages.Append(rec.RoomID, rec.UserID, text)
	if err != nil {
		return nil, err
	}

	enriched := &room.ChatMessage{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		UserID:    rec.UserID,
		Username:  rec.Username,
		Text:      msg.Text,
		SentAt:    msg.SentAt,
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.MessageEvent{
		Type:      room.EventMessage,
		MessageID: enriched.MessageID,
		UserID:    enriched.UserID,
		Username:  enriched.Username,
		Message:   enriched.Text,
		Timestamp: enriched.SentAt.UnixMilli(),
	}, conn)
	return enriched, nil
}

// RelayTrackStatus forwards a client-reported load status. A failed load
// removes the track for everyone; any other status is relayed as-is.
func (s *Service) RelayTrackStatus(ctx context.Context, conn registry.ConnID, trackID, status string) error {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return err
	}
	if trackID == "" || status == "" {
		return fmt.Errorf("%w: trackId and status are required", room.ErrValidation)
	}

	if status == "failed" {
		return s.RemoveTrack(ctx, conn, trackID)
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.TrackStatusEvent{
		Type:    room.EventTrackStatus,
		UserID:  rec.UserID,
		TrackID: trackID,
		Status:  status,
	}, conn)
	return nil
}

// RelayMousePosition forwards a cursor update to the rest of the room.
// Throttling happens at the transport layer.
func (s *Service) RelayMousePosition(_ context.Context, conn registry.ConnID, x, y float64, timestamp int64) error {
	rec, err := s.joinedRecord(conn)
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastToRoom(rec.RoomID, room.MousePositionEvent{
		Type:      room.EventMousePosition,
		UserID:    rec.UserID,
		X:         x,
		Y:         y,
		Timestamp: timestamp,
	}, conn)
	return nil
}

// Roster returns the room's connected users, one entry per user, with
// their current instrument assignments. Sorted by user id for stable
// output.
func (s *Service) Roster(roomID uint) []room.Member {
	users := s.registry.UsersInRoom(roomID)
	assignments := s.allocator.Assignments(roomID)

	members := make([]room.Member, 0, len(users))
	for _, u := range users {
		members = append(members, room.Member{
			UserID:     u.UserID,
			Username:   u.Username,
			Instrument: assignments[u.UserID],
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

// rosterExcluding is Roster minus one user, for the join reply.
func (s *Service) rosterExcluding(roomID, userID uint) []room.Member {
	all := s.Roster(roomID)
	others := make([]room.Member, 0, len(all))
	for _, m := range all {
		if m.UserID != userID {
			others = append(others, m)
		}
	}
	return others
}

// joinedRecord fetches the connection's record and requires a confirmed
// join.
func (s *Service) joinedRecord(conn registry.ConnID) (registry.Record, error) {
	rec, ok := s.registry.Get(conn)
	if !ok {
		return registry.Record{}, room.ErrUnauthenticated
	}
	if rec.RoomID == 0 {
		return registry.Record{}, fmt.Errorf("%w: join a room first", room.ErrUnauthorized)
	}
	return rec, nil
}

// mutateContents runs the optimistic read-modify-write loop on a room's
// track list.
func (s *Service) mutateContents(roomID uint, apply func(*room.Contents) error) error {
	for attempt := 0; attempt < maxContentsRetries; attempt++ {
		contents, version, err := s.rooms.LoadContents(roomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: room %d", room.ErrNotFound, roomID)
			}
			return err
		}

		if err := apply(&contents); err != nil {
			return err
		}

		err = s.rooms.UpdateContents(roomID, contents, version)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("room %d: gave up after %d conflicting updates", roomID, maxContentsRetries)
}
