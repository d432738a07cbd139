package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/bandloop/bandloop/auth"
	"github.com/bandloop/bandloop/room"
	"github.com/bandloop/bandloop/room/service"
	"github.com/bandloop/bandloop/soundbank"
	"github.com/bandloop/bandloop/store"
	"github.com/bandloop/bandloop/transport/websocket"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// Server represents the REST API server
type Server struct {
	auth      *auth.Service
	users     *store.UserStore
	rooms     *store.RoomStore
	messages  *store.MessageStore
	sessions  *store.SessionStore
	bank        *soundbank.Manager
	svc         service.RoomService
	broadcaster service.Broadcaster
	ws          *websocket.Server
	router      *mux.Router
	staticDir   string
}

// NewServer creates a new API server. ws may be nil in tests that only
// exercise the REST surface.
func NewServer(
	authSvc *auth.Service,
	users *store.UserStore,
	rooms *store.RoomStore,
	messages *store.MessageStore,
	sessions *store.SessionStore,
	bank *soundbank.Manager,
	svc service.RoomService,
	broadcaster service.Broadcaster,
	ws *websocket.Server,
	staticDir string,
) *Server {
	s := &Server{
		auth:        authSvc,
		users:       users,
		rooms:       rooms,
		messages:    messages,
		sessions:    sessions,
		bank:        bank,
		svc:         svc,
		broadcaster: broadcaster,
		ws:          ws,
		router:      mux.NewRouter(),
		staticDir:   staticDir,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Accounts
	api.HandleFunc("/signup", s.handleSignup).Methods("POST")
	api.HandleFunc("/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/logout", s.handleLogout).Methods("POST")

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/join", s.handleJoinRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/leave", s.handleLeaveRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/messages", s.handleRoomMessages).Methods("GET")
	api.HandleFunc("/rooms/{id}/messages", s.handlePostRoomMessage).Methods("POST")

	// Sound libraries
	api.HandleFunc("/soundbank", s.handleDefaultBank).Methods("GET")
	api.HandleFunc("/soundbank/{name}", s.handleNamedBank).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	if s.ws != nil {
		s.router.HandleFunc("/ws", s.ws.ServeWS)
	}

	// Static files (the web client)
	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// bearerToken pulls the session token from the Authorization header, or
// the token query parameter as a fallback.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// session resolves the request's token to a live session, or writes a 401
// and returns nil.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *store.Session {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing session token")
		return nil
	}

	sess, err := s.sessions.Validate(token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrSessionExpired) {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return nil
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	return sess
}

func roomIDVar(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Account Handlers

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.auth.Signup(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrUsernameTaken):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":    token,
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	if err := s.auth.Logout(sess.Token); err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]map[string]interface{}, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, map[string]interface{}{
			"roomId":    rm.ID,
			"songName":  rm.SongName,
			"createdBy": rm.CreatedBy,
			"createdAt": rm.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(out),
		"rooms": out,
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		SongName string `json:"songName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.SongName = strings.TrimSpace(req.SongName)
	if req.SongName == "" {
		respondError(w, http.StatusBadRequest, "songName is required")
		return
	}

	rm, err := s.rooms.Create(req.SongName, sess.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"roomId":    rm.ID,
		"songName":  rm.SongName,
		"createdBy": rm.CreatedBy,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDVar(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	rm, err := s.rooms.FindByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	contents, _, err := s.rooms.LoadContents(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":         rm.ID,
		"songName":       rm.SongName,
		"createdBy":      rm.CreatedBy,
		"tracks":         contents.Tracks,
		"connectedUsers": s.svc.Roster(id),
	})
}

// handleJoinRoom records the room on the caller's session. This is the
// authorization step the WebSocket join_room message is checked against.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	id, ok := roomIDVar(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	if _, err := s.rooms.FindByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.sessions.UpdateRoom(sess.Token, &id); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":  id,
		"message": "authorized, complete the join over the WebSocket",
	})
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if _, ok := roomIDVar(r); !ok {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	if err := s.sessions.UpdateRoom(sess.Token, nil); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "left room"})
}

// handleRoomMessages pages chat history backwards from the before cursor
// (unix milliseconds, default now).
func (s *Server) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	id, ok := roomIDVar(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	query := r.URL.Query()
	before := time.Now()
	if beforeStr := query.Get("before"); beforeStr != "" {
		millis, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "before must be unix milliseconds")
			return
		}
		before = time.UnixMilli(millis)
	}

	limit := defaultMessageLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxMessageLimit {
			limit = l
		}
	}

	msgs, err := s.messages.ListBefore(id, before, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	usernames := make(map[uint]string)
	out := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		name, ok := usernames[m.UserID]
		if !ok {
			if u, err := s.users.FindByID(m.UserID); err == nil {
				name = u.Username
			}
			usernames[m.UserID] = name
		}
		out = append(out, map[string]interface{}{
			"messageId": m.ID,
			"userId":    m.UserID,
			"username":  name,
			"message":   m.Text,
			"timestamp": m.SentAt.UnixMilli(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(out),
		"messages": out,
	})
}

// handlePostRoomMessage appends a chat message over HTTP and fans it out
// to the room's live connections. Used by clients without a socket, such
// as the MCP admin tools.
func (s *Server) handlePostRoomMessage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	id, ok := roomIDVar(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if _, err := s.rooms.FindByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.users.FindByID(sess.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	msg, err := s.messages.Append(id, sess.UserID, req.Message)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(id, room.MessageEvent{
			Type:      room.EventMessage,
			MessageID: msg.ID,
			UserID:    user.ID,
			Username:  user.Username,
			Message:   msg.Text,
			Timestamp: msg.SentAt.UnixMilli(),
		}, "")
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"messageId": msg.ID,
		"userId":    user.ID,
		"username":  user.Username,
		"message":   msg.Text,
		"timestamp": msg.SentAt.UnixMilli(),
	})
}

// Sound Library Handlers

func (s *Server) handleDefaultBank(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.bank.Default())
}

func (s *Server) handleNamedBank(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	bank, err := s.bank.Load(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, bank)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
