package room

import "errors"

// Error taxonomy shared by the HTTP and WebSocket layers. Per-message
// failures are converted to a typed error reply for the sender only; they
// never close the socket or leak to other room members.
var (
	// ErrUnauthenticated means a missing, unknown, or expired token.
	// At the WebSocket handshake it causes an abnormal close.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized means a room action without a confirmed join, or a
	// track mutation by a non-owner. The connection stays open.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the referenced room or track does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means an inbound message is missing required fields
	// or carries values outside their allowed range.
	ErrValidation = errors.New("validation failed")
)
