package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/registry"
	"github.com/bandloop/bandloop/room/service"
)

// CloseAuthFailure is the close code sent when the handshake token is
// missing, unknown, or expired.
const CloseAuthFailure = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// handlerFunc processes one inbound message for a client.
type handlerFunc func(ctx context.Context, c *Client, msg *inboundMessage) error

// Server authenticates connections and dispatches their messages. The
// dispatch table is the protocol's transition table: every inbound type
// maps to exactly one handler.
type Server struct {
	hub      *Hub
	registry *registry.Registry
	svc      service.RoomService
	handlers map[string]handlerFunc
}

// NewServer creates the WebSocket server.
func NewServer(hub *Hub, reg *registry.Registry, svc service.RoomService) *Server {
	s := &Server{
		hub:      hub,
		registry: reg,
		svc:      svc,
	}
	s.handlers = map[string]handlerFunc{
		"join_room":      s.handleJoinRoom,
		"chat_message":   s.handleChatMessage,
		"use_sound":      s.handleUseSound,
		"move_track":     s.handleMoveTrack,
		"update_track":   s.handleUpdateTrack,
		"track_status":   s.handleTrackStatus,
		"mouse_position": s.handleMousePosition,
	}
	return s
}

// ServeWS upgrades the request and runs the handshake. The bearer token
// comes from the token query parameter; an invalid one closes the socket
// immediately with CloseAuthFailure, before any message is queued.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	token := r.URL.Query().Get("token")
	userID, username, err := s.svc.Authenticate(r.Context(), token)
	if err != nil {
		reason := websocket.FormatCloseMessage(CloseAuthFailure, "authentication failed")
		conn.WriteControl(websocket.CloseMessage, reason, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	id := registry.NewConnID()
	s.registry.Register(id, userID, username, token)

	client := &Client{
		id:            id,
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           s.hub,
		mouseThrottle: NewThrottle(PositionSyncInterval),
	}
	s.hub.add(client)

	go client.writePump()
	go client.readPump(s)
}

// disconnect tears a connection down in lifecycle order: leave the fabric
// first so user_left never reaches the closing client, then let the
// service release room resources and notify peers.
func (s *Server) disconnect(c *Client) {
	s.hub.remove(c)
	s.svc.Disconnect(context.Background(), c.id)
	c.conn.Close()
}

// dispatch routes one raw inbound frame. All failures end as an error
// reply to this client only; nothing here ever closes the socket.
func (s *Server) dispatch(c *Client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(c, "malformed message")
		return
	}

	handler, ok := s.handlers[msg.Type]
	if !ok {
		s.sendError(c, fmt.Sprintf("unknown message type %q", msg.Type))
		return
	}

	if err := handler(context.Background(), c, &msg); err != nil {
		s.logf("%s %s: %v", c.id, msg.Type, err)
		s.sendError(c, userFacing(err))
	}
}

func (s *Server) handleJoinRoom(ctx context.Context, c *Client, msg *inboundMessage) error {
	if msg.RoomID == 0 {
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	}

	result, err := s.svc.Join(ctx, c.id, msg.RoomID)
	if err != nil {
		return err
	}

	s.hub.Send(c.id, roomJoinedMessage{Type: room.EventRoomJoined, JoinResult: *result})
	return nil
}

func (s *Server) handleChatMessage(ctx context.Context, c *Client, msg *inboundMessage) error {
	// The sender echoes locally; only peers receive the broadcast.
	_, err := s.svc.AppendChatMessage(ctx, c.id, msg.Message)
	return err
}

func (s *Server) handleUseSound(ctx context.Context, c *Client, msg *inboundMessage) error {
	if msg.Instrument == "" || msg.SoundName == "" {
		return fmt.Errorf("%w: instrument and soundName are required", room.ErrValidation)
	}
	_, err := s.svc.ApplySoundSelection(ctx, c.id, msg.TrackID, msg.Instrument, msg.SoundName)
	return err
}

func (s *Server) handleMoveTrack(ctx context.Context, c *Client, msg *inboundMessage) error {
	if msg.Position == nil {
		return fmt.Errorf("%w: position is required", room.ErrValidation)
	}

	_, err := s.svc.ApplyTrackMove(ctx, c.id, msg.TrackID, *msg.Position)
	if err == nil {
		// Drag finished: let the next cursor update through immediately.
		c.mouseThrottle.Flush()
	}
	return err
}

func (s *Server) handleUpdateTrack(ctx context.Context, c *Client, msg *inboundMessage) error {
	if msg.Tracks != nil {
		return s.svc.ReplaceTracks(ctx, c.id, msg.Tracks)
	}
	return s.handleMoveTrack(ctx, c, msg)
}

func (s *Server) handleTrackStatus(ctx context.Context, c *Client, msg *inboundMessage) error {
	return s.svc.RelayTrackStatus(ctx, c.id, msg.TrackID, msg.Status)
}

func (s *Server) handleMousePosition(ctx context.Context, c *Client, msg *inboundMessage) error {
	if !c.mouseThrottle.Allow() {
		return nil
	}
	return s.svc.RelayMousePosition(ctx, c.id, msg.X, msg.Y, msg.Timestamp)
}

func (s *Server) sendError(c *Client, message string) {
	s.hub.Send(c.id, errorMessage{Type: room.EventError, Message: message})
}

func (s *Server) logf(format string, args ...any) {
	log.Printf(format, args...)
}

// userFacing maps the error taxonomy to reply text. Storage and other
// internal failures are logged with detail but surfaced generically.
func userFacing(err error) string {
	switch {
	case errors.Is(err, room.ErrUnauthenticated):
		return "not authenticated"
	case errors.Is(err, room.ErrUnauthorized),
		errors.Is(err, room.ErrNotFound),
		errors.Is(err, room.ErrValidation):
		return err.Error()
	default:
		return "internal error"
	}
}
