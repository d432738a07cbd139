package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bandloop/bandloop/room"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API. The token
// is optional; without it the chat tools fail with the API's 401.
func NewClient(baseURL, token string) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Bandloop Jam Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Bandloop Jam Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Rooms are shared music timelines: each connected user gets an instrument
and places tracks on a common arrangement, with chat on the side.

AVAILABLE TOOLS:
- list_rooms: List the rooms on the server
- room_state: A room's song name and track arrangement
- room_roster: Who is connected to a room and on which instrument
- room_messages: Recent chat history for a room
- post_chat: Post a chat message into a room (needs a session token)`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List the rooms on the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get a room's song name and current track arrangement",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "integer",
					"description": "Room ID",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_roster",
		Description: "List the users connected to a room and their instrument assignments",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "integer",
					"description": "Room ID",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomRoster)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_messages",
		Description: "Get recent chat messages for a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "integer",
					"description": "Room ID",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of messages to return (default 50)",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomMessages)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "post_chat",
		Description: "Post a chat message into a room. It is delivered to everyone currently connected.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "integer",
					"description": "Room ID",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Message text",
				},
			},
			Required: []string{"room_id", "message"},
		},
	}, c.handlePostChat)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func intArg(request mcp.CallToolRequest, name string) (int, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return 0, false
	}
	v, ok := args[name].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func stringArg(request mcp.CallToolRequest, name string) string {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := args[name].(string)
	return s
}

// Tool handlers

type roomSummary struct {
	RoomID   uint   `json:"roomId"`
	SongName string `json:"songName"`
}

type roomSnapshot struct {
	RoomID         uint          `json:"roomId"`
	SongName       string        `json:"songName"`
	CreatedBy      uint          `json:"createdBy"`
	Tracks         []room.Track  `json:"tracks"`
	ConnectedUsers []room.Member `json:"connectedUsers"`
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int           `json:"count"`
		Rooms []roomSummary `json:"rooms"`
	}

	err := c.apiCall("GET", "/api/rooms", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Rooms (%d):\n\n", response.Count)
	for _, r := range response.Rooms {
		result += fmt.Sprintf("- #%d %s\n", r.RoomID, r.SongName)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, ok := intArg(request, "room_id")
	if !ok {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var snap roomSnapshot
	err := c.apiCall("GET", fmt.Sprintf("/api/rooms/%d", roomID), nil, &snap)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomState(&snap)), nil
}

func (c *Client) handleRoomRoster(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, ok := intArg(request, "room_id")
	if !ok {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var snap roomSnapshot
	err := c.apiCall("GET", fmt.Sprintf("/api/rooms/%d", roomID), nil, &snap)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoster(&snap)), nil
}

func (c *Client) handleRoomMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, ok := intArg(request, "room_id")
	if !ok {
		return mcp.NewToolResultError("room_id is required"), nil
	}
	path := fmt.Sprintf("/api/rooms/%d/messages", roomID)
	if limit, ok := intArg(request, "limit"); ok {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Count    int `json:"count"`
		Messages []struct {
			Username  string `json:"username"`
			Message   string `json:"message"`
			Timestamp int64  `json:"timestamp"`
		} `json:"messages"`
	}
	err := c.apiCall("GET", path, nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Messages in room #%d (%d):\n\n", roomID, response.Count)
	for _, m := range response.Messages {
		ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
		result += fmt.Sprintf("[%s] %s: %s\n", ts, m.Username, m.Message)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handlePostChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, ok := intArg(request, "room_id")
	if !ok {
		return mcp.NewToolResultError("room_id is required"), nil
	}
	message := stringArg(request, "message")
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	var posted struct {
		MessageID uint   `json:"messageId"`
		Username  string `json:"username"`
	}
	err := c.apiCall("POST", fmt.Sprintf("/api/rooms/%d/messages", roomID),
		map[string]string{"message": message}, &posted)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Posted message %d to room #%d as %s",
		posted.MessageID, roomID, posted.Username)), nil
}

// Formatters

func formatRoomState(snap *roomSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room #%d: %s\n", snap.RoomID, snap.SongName)
	fmt.Fprintf(&b, "Tracks (%d):\n", len(snap.Tracks))
	for _, tr := range snap.Tracks {
		fmt.Fprintf(&b, "- %s: %s/%s at position %d (owner %d)\n",
			tr.ID, tr.Instrument, tr.SoundName, tr.Position, tr.OwnerID)
	}
	return b.String()
}

func formatRoster(snap *roomSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room #%d roster (%d):\n", snap.RoomID, len(snap.ConnectedUsers))
	for _, m := range snap.ConnectedUsers {
		inst := m.Instrument
		if inst == "" {
			inst = "no instrument"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", m.Username, inst)
	}
	return b.String()
}
