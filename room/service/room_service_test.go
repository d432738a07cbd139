package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/instrument"
	"github.com/bandloop/bandloop/room/registry"
	"github.com/bandloop/bandloop/soundbank"
	"github.com/bandloop/bandloop/store"
)

type broadcastCall struct {
	roomID  uint
	payload any
	exclude registry.ConnID
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID uint, payload any, exclude registry.ConnID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{roomID: roomID, payload: payload, exclude: exclude})
}

func (f *fakeBroadcaster) all() []broadcastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcastCall(nil), f.calls...)
}

func (f *fakeBroadcaster) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fixture struct {
	svc      *Service
	users    *store.UserStore
	rooms    *store.RoomStore
	sessions *store.SessionStore
	registry *registry.Registry
	alloc    *instrument.Allocator
	fab      *fakeBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	bank, err := soundbank.NewManager("")
	if err != nil {
		t.Fatalf("failed to create soundbank: %v", err)
	}

	f := &fixture{
		users:    store.NewUserStore(db),
		rooms:    store.NewRoomStore(db),
		sessions: store.NewSessionStore(db),
		registry: registry.NewRegistry(),
		alloc:    instrument.NewAllocator(bank.Instruments()),
		fab:      &fakeBroadcaster{},
	}
	f.svc = NewService(f.users, f.rooms, store.NewMessageStore(db), f.sessions, f.registry, f.alloc, bank, f.fab)
	return f
}

// connect creates a user, an HTTP-authorized session for the room, and a
// registered connection, then runs the WebSocket join handshake.
func (f *fixture) connect(t *testing.T, username string, roomID uint) (registry.ConnID, uint, *JoinResult) {
	t.Helper()

	user, err := f.users.FindByUsername(username)
	if errors.Is(err, store.ErrNotFound) {
		user, err = f.users.Create(username, "hash")
	}
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}

	sess, err := f.sessions.Create(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := f.sessions.UpdateRoom(sess.Token, &roomID); err != nil {
		t.Fatalf("failed to authorize room: %v", err)
	}

	conn := registry.NewConnID()
	f.registry.Register(conn, user.ID, username, sess.Token)

	result, err := f.svc.Join(context.Background(), conn, roomID)
	if err != nil {
		t.Fatalf("Join failed for %s: %v", username, err)
	}
	return conn, user.ID, result
}

func (f *fixture) seedTrack(t *testing.T, roomID uint, tr room.Track) {
	t.Helper()
	contents, version, err := f.rooms.LoadContents(roomID)
	if err != nil {
		t.Fatalf("failed to load contents: %v", err)
	}
	contents.Tracks = append(contents.Tracks, tr)
	if err := f.rooms.UpdateContents(roomID, contents, version); err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, _ := f.users.Create("alice", "hash")
	sess, _ := f.sessions.Create(user.ID, time.Hour)

	id, name, err := f.svc.Authenticate(ctx, sess.Token)
	if err != nil || id != user.ID || name != "alice" {
		t.Errorf("Authenticate: %v %d %q", err, id, name)
	}

	if _, _, err := f.svc.Authenticate(ctx, "bogus"); !errors.Is(err, room.ErrUnauthenticated) {
		t.Errorf("unknown token: got %v", err)
	}
	if _, _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, room.ErrUnauthenticated) {
		t.Errorf("empty token: got %v", err)
	}

	expired, _ := f.sessions.Create(user.ID, -time.Minute)
	if _, _, err := f.svc.Authenticate(ctx, expired.Token); !errors.Is(err, room.ErrUnauthenticated) {
		t.Errorf("expired token: got %v", err)
	}
}

func TestJoinRequiresHTTPAuthorization(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)

	user, _ := f.users.Create("alice", "hash")
	sess, _ := f.sessions.Create(user.ID, time.Hour)

	conn := registry.NewConnID()
	f.registry.Register(conn, user.ID, "alice", sess.Token)

	// Session has no room_id: the socket join must be refused.
	if _, err := f.svc.Join(context.Background(), conn, r.ID); !errors.Is(err, room.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without HTTP join, got %v", err)
	}

	// Session authorized for a different room: still refused.
	otherRoom, _ := f.rooms.Create("other", 1)
	f.sessions.UpdateRoom(sess.Token, &otherRoom.ID)
	if _, err := f.svc.Join(context.Background(), conn, r.ID); !errors.Is(err, room.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for mismatched room, got %v", err)
	}
}

func TestJoinReplyAndBroadcast(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)

	// alice joins with two tabs.
	f.connect(t, "alice", r.ID)
	f.connect(t, "alice", r.ID)
	f.fab.reset()

	bobConn, bobID, result := f.connect(t, "bob", r.ID)

	if result.RoomID != r.ID {
		t.Errorf("expected room %d, got %d", r.ID, result.RoomID)
	}
	if result.AssignedInstrument == "" {
		t.Error("expected an assigned instrument")
	}
	if result.Song.Name != "jam" {
		t.Errorf("expected song snapshot, got %+v", result.Song)
	}

	// The join reply roster excludes bob and dedups alice's two tabs.
	if len(result.ConnectedUsers) != 1 {
		t.Fatalf("expected 1 connected user, got %+v", result.ConnectedUsers)
	}
	if result.ConnectedUsers[0].Username != "alice" {
		t.Errorf("expected alice in roster, got %+v", result.ConnectedUsers[0])
	}

	// Peers got user_joined with the full roster, excluding bob's conn.
	calls := f.fab.all()
	if len(calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(calls))
	}
	if calls[0].exclude != bobConn {
		t.Error("user_joined should exclude the joining connection")
	}
	evt, ok := calls[0].payload.(room.UserJoinedEvent)
	if !ok {
		t.Fatalf("expected UserJoinedEvent, got %T", calls[0].payload)
	}
	if evt.UserID != bobID || evt.Type != room.EventUserJoined {
		t.Errorf("unexpected event: %+v", evt)
	}
	if len(evt.ConnectedUsers) != 2 {
		t.Errorf("full roster should have 2 distinct users, got %+v", evt.ConnectedUsers)
	}
}

func TestJoinIdempotentInstrument(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)

	_, _, first := f.connect(t, "alice", r.ID)
	_, _, second := f.connect(t, "alice", r.ID)

	if first.AssignedInstrument != second.AssignedInstrument {
		t.Errorf("same user should keep instrument across joins: %q vs %q",
			first.AssignedInstrument, second.AssignedInstrument)
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	f := newFixture(t)

	user, _ := f.users.Create("alice", "hash")
	sess, _ := f.sessions.Create(user.ID, time.Hour)
	ghost := uint(404)
	f.sessions.UpdateRoom(sess.Token, &ghost)

	conn := registry.NewConnID()
	f.registry.Register(conn, user.ID, "alice", sess.Token)

	if _, err := f.svc.Join(context.Background(), conn, ghost); !errors.Is(err, room.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSoundSelectionOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)

	aliceConn, aliceID, _ := f.connect(t, "alice", r.ID)
	bobConn, _, _ := f.connect(t, "bob", r.ID)

	f.seedTrack(t, r.ID, room.Track{ID: "t1", OwnerID: aliceID, Instrument: "piano", SoundName: "piano-c1", Position: 100})
	f.fab.reset()

	// Non-owner mutation fails and persists nothing.
	_, err := f.svc.ApplySoundSelection(ctx, bobConn, "t1", "piano", "piano-e1")
	if !errors.Is(err, room.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	contents, _, _ := f.rooms.LoadContents(r.ID)
	if contents.Tracks[0].SoundName != "piano-c1" {
		t.Error("non-owner mutation must not persist")
	}
	if len(f.fab.all()) != 0 {
		t.Error("failed mutation must not broadcast")
	}

	// Owner mutation persists and broadcasts, excluding the sender.
	updated, err := f.svc.ApplySoundSelection(ctx, aliceConn, "t1", "drums", "kick")
	if err != nil {
		t.Fatalf("owner mutation failed: %v", err)
	}
	if updated.Instrument != "drums" || updated.SoundName != "kick" {
		t.Errorf("unexpected track: %+v", updated)
	}
	if updated.Color == "" {
		t.Error("expected instrument color on updated track")
	}

	contents, _, _ = f.rooms.LoadContents(r.ID)
	if contents.Tracks[0].SoundName != "kick" {
		t.Error("owner mutation should persist")
	}

	calls := f.fab.all()
	if len(calls) != 1 || calls[0].exclude != aliceConn {
		t.Fatalf("expected 1 broadcast excluding sender, got %+v", calls)
	}
}

func TestSoundSelectionValidatesLibrary(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)
	conn, userID, _ := f.connect(t, "alice", r.ID)
	f.seedTrack(t, r.ID, room.Track{ID: "t1", OwnerID: userID})

	_, err := f.svc.ApplySoundSelection(context.Background(), conn, "t1", "piano", "kick")
	if !errors.Is(err, room.ErrValidation) {
		t.Errorf("expected ErrValidation for foreign sound, got %v", err)
	}
}

func TestTrackMoveNonOwnerLeavesPositionUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)

	_, aliceID, _ := f.connect(t, "alice", r.ID)
	bobConn, _, _ := f.connect(t, "bob", r.ID)
	f.seedTrack(t, r.ID, room.Track{ID: "T", OwnerID: aliceID, Position: 100})

	_, err := f.svc.ApplyTrackMove(ctx, bobConn, "T", 500)
	if !errors.Is(err, room.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	contents, _, _ := f.rooms.LoadContents(r.ID)
	if contents.Tracks[0].Position != 100 {
		t.Errorf("persisted position must stay 100, got %d", contents.Tracks[0].Position)
	}
}

func TestTrackMoveOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)

	conn, userID, _ := f.connect(t, "alice", r.ID)
	f.seedTrack(t, r.ID, room.Track{ID: "T", OwnerID: userID, Position: 100})
	f.fab.reset()

	updated, err := f.svc.ApplyTrackMove(ctx, conn, "T", 500)
	if err != nil {
		t.Fatalf("ApplyTrackMove failed: %v", err)
	}
	if updated.Position != 500 {
		t.Errorf("expected position 500, got %d", updated.Position)
	}

	if _, err := f.svc.ApplyTrackMove(ctx, conn, "T", -1); !errors.Is(err, room.ErrValidation) {
		t.Errorf("negative position: got %v", err)
	}
	if _, err := f.svc.ApplyTrackMove(ctx, conn, "ghost", 5); !errors.Is(err, room.ErrNotFound) {
		t.Errorf("unknown track: got %v", err)
	}
}

func TestReplaceTracks(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)
	conn, userID, _ := f.connect(t, "alice", r.ID)
	f.fab.reset()

	tracks := []room.Track{
		{ID: "a", OwnerID: userID, Position: 0},
		{ID: "b", OwnerID: userID, Position: 200},
	}
	if err := f.svc.ReplaceTracks(context.Background(), conn, tracks); err != nil {
		t.Fatalf("ReplaceTracks failed: %v", err)
	}

	contents, _, _ := f.rooms.LoadContents(r.ID)
	if len(contents.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(contents.Tracks))
	}

	calls := f.fab.all()
	if len(calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(calls))
	}
	evt := calls[0].payload.(room.TrackUpdatedEvent)
	if len(evt.Tracks) != 2 || evt.Track != nil {
		t.Errorf("replace should broadcast the full list: %+v", evt)
	}
}

func TestFailedTrackStatusRemovesTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)
	conn, userID, _ := f.connect(t, "alice", r.ID)
	f.seedTrack(t, r.ID, room.Track{ID: "t1", OwnerID: userID})
	f.fab.reset()

	if err := f.svc.RelayTrackStatus(ctx, conn, "t1", "failed"); err != nil {
		t.Fatalf("RelayTrackStatus failed: %v", err)
	}

	contents, _, _ := f.rooms.LoadContents(r.ID)
	if len(contents.Tracks) != 0 {
		t.Error("failed track should be removed")
	}

	calls := f.fab.all()
	if len(calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(calls))
	}
	if _, ok := calls[0].payload.(room.TrackRemovedEvent); !ok {
		t.Errorf("expected TrackRemovedEvent, got %T", calls[0].payload)
	}

	// Non-failure statuses are relayed untouched.
	f.seedTrack(t, r.ID, room.Track{ID: "t2", OwnerID: userID})
	f.fab.reset()
	if err := f.svc.RelayTrackStatus(ctx, conn, "t2", "loading"); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if _, ok := f.fab.all()[0].payload.(room.TrackStatusEvent); !ok {
		t.Error("expected TrackStatusEvent relay")
	}
}

func TestChatMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)
	conn, userID, _ := f.connect(t, "alice", r.ID)
	f.fab.reset()

	var lastSent time.Time
	for _, text := range []string{"hey", "listen to this", "done"} {
		msg, err := f.svc.AppendChatMessage(ctx, conn, text)
		if err != nil {
			t.Fatalf("AppendChatMessage failed: %v", err)
		}
		if msg.MessageID == 0 {
			t.Error("broadcast message must carry a storage-assigned id")
		}
		if msg.Username != "alice" || msg.UserID != userID {
			t.Errorf("message not enriched: %+v", msg)
		}
		if msg.SentAt.Before(lastSent) {
			t.Error("sentAt must be monotonically non-decreasing")
		}
		lastSent = msg.SentAt
	}

	calls := f.fab.all()
	if len(calls) != 3 {
		t.Fatalf("expected 3 broadcasts, got %d", len(calls))
	}
	for _, c := range calls {
		if c.exclude != conn {
			t.Error("chat broadcast must exclude the sender")
		}
	}

	if _, err := f.svc.AppendChatMessage(ctx, conn, "   "); !errors.Is(err, room.ErrValidation) {
		t.Errorf("blank message: got %v", err)
	}
}

func TestMutationsRequireJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, _ := f.users.Create("alice", "hash")
	sess, _ := f.sessions.Create(user.ID, time.Hour)
	conn := registry.NewConnID()
	f.registry.Register(conn, user.ID, "alice", sess.Token)

	if _, err := f.svc.AppendChatMessage(ctx, conn, "hi"); !errors.Is(err, room.ErrUnauthorized) {
		t.Errorf("chat before join: got %v", err)
	}
	if _, err := f.svc.ApplyTrackMove(ctx, conn, "t", 1); !errors.Is(err, room.ErrUnauthorized) {
		t.Errorf("move before join: got %v", err)
	}
	if _, err := f.svc.AppendChatMessage(ctx, "ghost-conn", "hi"); !errors.Is(err, room.ErrUnauthenticated) {
		t.Errorf("unknown conn: got %v", err)
	}
}

func TestDisconnectLastConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.rooms.Create("jam", 1)

	tab1, aliceID, _ := f.connect(t, "alice", r.ID)
	tab2, _, _ := f.connect(t, "alice", r.ID)
	f.connect(t, "bob", r.ID)
	f.fab.reset()

	// First tab closes: alice still connected, no user_left.
	f.svc.Disconnect(ctx, tab1)
	if len(f.fab.all()) != 0 {
		t.Fatal("user_left must not fire while another tab remains")
	}
	if _, ok := f.alloc.Get(r.ID, aliceID); !ok {
		t.Error("instrument must stay assigned while a tab remains")
	}

	// Last tab closes: exactly one user_left, instrument released.
	f.svc.Disconnect(ctx, tab2)
	calls := f.fab.all()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 user_left, got %d", len(calls))
	}
	evt, ok := calls[0].payload.(room.UserLeftEvent)
	if !ok || evt.UserID != aliceID || evt.Type != room.EventUserLeft {
		t.Errorf("unexpected event: %+v", calls[0].payload)
	}
	if _, ok := f.alloc.Get(r.ID, aliceID); ok {
		t.Error("instrument must be released on full disconnect")
	}

	// Disconnecting an unknown or never-joined connection is a no-op.
	f.fab.reset()
	f.svc.Disconnect(ctx, "ghost")
	if len(f.fab.all()) != 0 {
		t.Error("unknown conn disconnect must not broadcast")
	}
}

func TestDisconnectClearsSessionRoom(t *testing.T) {
	f := newFixture(t)
	r, _ := f.rooms.Create("jam", 1)

	user, _ := f.users.Create("alice", "hash")
	sess, _ := f.sessions.Create(user.ID, time.Hour)
	f.sessions.UpdateRoom(sess.Token, &r.ID)

	conn := registry.NewConnID()
	f.registry.Register(conn, user.ID, "alice", sess.Token)
	if _, err := f.svc.Join(context.Background(), conn, r.ID); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	f.svc.Disconnect(context.Background(), conn)

	got, err := f.sessions.Validate(sess.Token)
	if err != nil {
		t.Fatalf("session should survive disconnect: %v", err)
	}
	if got.RoomID != nil {
		t.Error("session room_id must be cleared on disconnect")
	}
}
