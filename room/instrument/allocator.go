package instrument

import (
	"errors"
	"math/rand/v2"
	"sync"
)

var ErrEmptyPool = errors.New("instrument pool is empty")

// Allocator tracks per-room instrument assignments.
type Allocator struct {
	mu    sync.Mutex
	pool  []string
	rooms map[uint]map[uint]string // roomID -> userID -> instrument
}

// NewAllocator creates an allocator over a fixed ordered pool.
func NewAllocator(pool []string) *Allocator {
	return &Allocator{
		pool:  append([]string(nil), pool...),
		rooms: make(map[uint]map[uint]string),
	}
}

// Assign returns the user's instrument in the room, assigning one if
// needed. Repeated calls for the same (room, user) return the same value.
func (a *Allocator) Assign(roomID, userID uint) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pool) == 0 {
		return "", ErrEmptyPool
	}

	assigned := a.rooms[roomID]
	if assigned == nil {
		assigned = make(map[uint]string)
		a.rooms[roomID] = assigned
	}

	if inst, ok := assigned[userID]; ok {
		return inst, nil
	}

	taken := make(map[string]bool, len(assigned))
	for _, inst := range assigned {
		taken[inst] = true
	}

	var available []string
	for _, inst := range a.pool {
		if !taken[inst] {
			available = append(available, inst)
		}
	}

	// Pool exhausted: draw from the full pool and accept the collision.
	if len(available) == 0 {
		available = a.pool
	}

	inst := available[rand.IntN(len(available))]
	assigned[userID] = inst
	return inst, nil
}

// Get returns the user's current assignment without creating one.
func (a *Allocator) Get(roomID, userID uint) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	inst, ok := a.rooms[roomID][userID]
	return inst, ok
}

// Release removes the user's assignment. Dropping the room map when it
// empties is just memory hygiene; the pool rebuilds on next Assign.
func (a *Allocator) Release(roomID, userID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	assigned, ok := a.rooms[roomID]
	if !ok {
		return
	}
	delete(assigned, userID)
	if len(assigned) == 0 {
		delete(a.rooms, roomID)
	}
}

// Assignments returns a copy of the room's userID -> instrument map.
func (a *Allocator) Assignments(roomID uint) map[uint]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[uint]string, len(a.rooms[roomID]))
	for userID, inst := range a.rooms[roomID] {
		out[userID] = inst
	}
	return out
}
