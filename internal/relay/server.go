package relay

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parleylabs/parley/internal/storage"
)

const (
	// Tool names
	toolSessionStart   = "session.start"
	toolSessionStop    = "session.stop"
	toolSessionPause   = "session.pause"
	toolSessionStatus  = "session.status"
	toolMessageApprove = "message.approve"
	toolMessageReject  = "message.reject"
	toolTranscriptList = "transcript.list"
	toolTranscriptGet  = "transcript.get"
)

// MCPServer wraps the mcp-go server with the relay control surface
type MCPServer struct {
	server      *server.MCPServer
	coordinator *Coordinator
	registry    *PlatformRegistry
	store       storage.TranscriptStore
}

// Config holds configuration for the MCP server
type Config struct {
	Name    string
	Version string
}

// NewMCPServer creates and configures a new MCP server
func NewMCPServer(cfg Config, coordinator *Coordinator, registry *PlatformRegistry, store storage.TranscriptStore) *MCPServer {
	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	ms := &MCPServer{
		server:      mcpServer,
		coordinator: coordinator,
		registry:    registry,
		store:       store,
	}

	ms.registerTools()

	return ms
}

// registerTools registers all MCP tools with handlers
func (ms *MCPServer) registerTools() {
	startTool := mcp.NewTool(toolSessionStart,
		mcp.WithDescription("Start a relay session (implicitly stops a running one)"),
	)
	ms.server.AddTool(startTool, ms.handleSessionStart)

	stopTool := mcp.NewTool(toolSessionStop,
		mcp.WithDescription("Stop the current relay session and persist its transcript"),
	)
	ms.server.AddTool(stopTool, ms.handleSessionStop)

	pauseTool := mcp.NewTool(toolSessionPause,
		mcp.WithDescription("Toggle the current session between active and paused"),
	)
	ms.server.AddTool(pauseTool, ms.handleSessionPause)

	statusTool := mcp.NewTool(toolSessionStatus,
		mcp.WithDescription("Report session state, registered platforms and platform health"),
	)
	ms.server.AddTool(statusTool, ms.handleSessionStatus)

	approveTool := mcp.NewTool(toolMessageApprove,
		mcp.WithDescription("Approve the pending message for scheduled relay"),
	)
	ms.server.AddTool(approveTool, ms.handleMessageApprove)

	rejectTool := mcp.NewTool(toolMessageReject,
		mcp.WithDescription("Discard the pending message without relaying it"),
	)
	ms.server.AddTool(rejectTool, ms.handleMessageReject)

	listTool := mcp.NewTool(toolTranscriptList,
		mcp.WithDescription("List stored conversation transcripts, oldest first"),
	)
	ms.server.AddTool(listTool, ms.handleTranscriptList)

	getTool := mcp.NewTool(toolTranscriptGet,
		mcp.WithDescription("Fetch one conversation transcript"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID of the transcript to fetch"),
		),
	)
	ms.server.AddTool(getTool, ms.handleTranscriptGet)
}

// statusReport is the session.status payload
type statusReport struct {
	Session   Snapshot                  `json:"session"`
	Platforms []Platform                `json:"platforms"`
	Health    map[Platform]HealthReport `json:"health,omitempty"`
}

// handleSessionStart implements the session.start tool
func (ms *MCPServer) handleSessionStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot := ms.coordinator.Start(ctx)
	return jsonResult(snapshot)
}

// handleSessionStop implements the session.stop tool
func (ms *MCPServer) handleSessionStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot := ms.coordinator.Stop(ctx)
	return jsonResult(snapshot)
}

// handleSessionPause implements the session.pause tool
func (ms *MCPServer) handleSessionPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := ms.coordinator.Pause(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snapshot)
}

// handleSessionStatus implements the session.status tool
func (ms *MCPServer) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := statusReport{
		Session:   ms.coordinator.Snapshot(),
		Platforms: ms.registry.Platforms(),
		Health:    ms.coordinator.Health(),
	}
	return jsonResult(report)
}

// handleMessageApprove implements the message.approve tool
func (ms *MCPServer) handleMessageApprove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := ms.coordinator.Approve(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ms.coordinator.Snapshot())
}

// handleMessageReject implements the message.reject tool
func (ms *MCPServer) handleMessageReject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := ms.coordinator.Reject(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ms.coordinator.Snapshot())
}

// handleTranscriptList implements the transcript.list tool
func (ms *MCPServer) handleTranscriptList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcripts, err := ms.store.ListTranscripts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(transcripts)
}

// handleTranscriptGet implements the transcript.get tool
func (ms *MCPServer) handleTranscriptGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	transcript, err := ms.store.GetTranscript(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if transcript == nil {
		return mcp.NewToolResultError("no transcript for session " + sessionID), nil
	}
	return jsonResult(transcript)
}

// jsonResult renders a payload as an indented JSON tool result
func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Server returns the underlying mcp-go server for serving
func (ms *MCPServer) Server() *server.MCPServer {
	return ms.server
}
