// Package mcp provides a Model Context Protocol surface for the jam server.
//
// The mcp package implements:
//   - MCP server for AI agent and operator integration
//   - Tool definitions proxying the REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools:
//   - list_rooms: List the rooms on the server
//   - room_state: Room snapshot with its track arrangement
//   - room_roster: Connected users and their instrument assignments
//   - room_messages: Recent chat history for a room
//   - post_chat: Post a chat message into a room (requires a session token)
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: HTTP endpoint for remote MCP integration
//
// Authorization:
//
// Read tools are unauthenticated, matching the REST API. post_chat and
// room_messages forward the session token the client was constructed with;
// without one those tools report the API's 401 as a tool error.
package mcp
