package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrConnNotFound = errors.New("connection not registered")

// ConnID is the opaque handle of one live transport-level connection.
type ConnID string

// NewConnID returns a fresh connection handle.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Record is the registry's view of one connection. RoomID is zero until the
// join handshake completes. Token is kept so privileged operations can
// re-check the underlying session.
type Record struct {
	UserID   uint
	Username string
	RoomID   uint
	Token    string
}

// RoomUser is a (userID, username) pair produced by roster queries.
type RoomUser struct {
	UserID   uint
	Username string
}

// Registry maps connection ids to their records.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]Record)}
}

// Register adds a record for a freshly authenticated connection.
func (r *Registry) Register(id ConnID, userID uint, username, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = Record{UserID: userID, Username: username, Token: token}
}

// SetRoom marks the connection as joined to a room.
func (r *Registry) SetRoom(id ConnID, roomID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[id]
	if !ok {
		return ErrConnNotFound
	}
	rec.RoomID = roomID
	r.conns[id] = rec
	return nil
}

// Get returns a copy of the connection's record.
func (r *Registry) Get(id ConnID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conns[id]
	return rec, ok
}

// Unregister removes the connection and returns its last record.
func (r *Registry) Unregister(id ConnID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return rec, ok
}

// ConnsInRoom returns the ids of all connections currently in the room.
func (r *Registry) ConnsInRoom(roomID uint) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []ConnID
	for id, rec := range r.conns {
		if rec.RoomID == roomID {
			ids = append(ids, id)
		}
	}
	return ids
}

// UsersInRoom returns the distinct users connected to the room. Two tabs
// of the same user yield one entry.
func (r *Registry) UsersInRoom(roomID uint) []RoomUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint]bool)
	var users []RoomUser
	for _, rec := range r.conns {
		if rec.RoomID != roomID || seen[rec.UserID] {
			continue
		}
		seen[rec.UserID] = true
		users = append(users, RoomUser{UserID: rec.UserID, Username: rec.Username})
	}
	return users
}

// UserHasConn reports whether the user still has at least one live
// connection in the room.
func (r *Registry) UserHasConn(roomID, userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.conns {
		if rec.RoomID == roomID && rec.UserID == userID {
			return true
		}
	}
	return false
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
