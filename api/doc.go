// Package api provides the HTTP REST surface of the jam server.
//
// The api package implements:
//   - Account endpoints (signup, login, logout)
//   - Room listing, creation and inspection
//   - Room authorization (join/leave) for the WebSocket handshake
//   - Chat history with cursor pagination
//   - Sound library listing
//   - WebSocket upgrade handling
//   - Static file serving
//
// Endpoints:
//
// Accounts:
//   - POST /api/signup - Register and receive a session token
//   - POST /api/login - Authenticate and receive a session token
//   - POST /api/logout - Invalidate the session token
//
// Rooms:
//   - GET /api/rooms - List rooms
//   - POST /api/rooms - Create a room
//   - GET /api/rooms/{id} - Room snapshot with tracks and roster
//   - POST /api/rooms/{id}/join - Authorize this session for the room
//   - POST /api/rooms/{id}/leave - Drop the session's room authorization
//   - GET /api/rooms/{id}/messages - Chat history (before, limit)
//   - POST /api/rooms/{id}/messages - Post a chat message without a socket
//
// Sounds:
//   - GET /api/soundbank - The default sound library
//   - GET /api/soundbank/{name} - A named sound library
//
// Authorization:
//
// Authenticated endpoints take the session token as a Bearer token in the
// Authorization header (or a token query parameter, which is what the
// WebSocket handshake uses). Joining a room over HTTP is what entitles the
// session to the join_room WebSocket message; the socket carries no
// authority of its own.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
