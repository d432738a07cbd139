// Package service orchestrates the room coordination protocol: the join
// and leave handshake, the ownership-checked read-modify-write protocol on
// shared room contents, and chat persistence.
//
// The service sits between the WebSocket transport and the stores. Every
// mutation entry point reports typed failures to the caller only; events
// for the rest of the room flow through the injected Broadcaster and never
// carry errors.
//
// Concurrent mutations of the same room are resolved with optimistic
// versioning: contents are read at a version, modified, and written back
// with a compare-and-swap, retrying on conflict. Two users mutating
// different tracks at once both land without lost updates.
package service
