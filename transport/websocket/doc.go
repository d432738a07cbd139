// Package websocket is the real-time transport for jam rooms.
//
// Server owns the connection lifecycle: it authenticates the handshake
// token, registers the connection, and dispatches inbound messages by type
// to the room service. Hub is the broadcast fabric: it fans events out to
// every connection of a room, optionally excluding the sender, without
// ever blocking on a slow peer.
//
// Per-message failures become a typed error reply to the sender only; the
// socket stays open. Only a failed handshake closes the connection.
package websocket
