// Package room defines the shared domain model for collaborative jam rooms.
//
// A room holds a song name, its creator, and an ordered list of tracks.
// Each track is one audio clip on the shared timeline, owned by exactly one
// user. The track list is persisted as a JSON blob on the room record and
// is the unit of read-modify-write for all collaborative mutations.
//
// The package also defines the event payloads broadcast to room members and
// the error taxonomy shared by the HTTP and WebSocket layers.
package room
