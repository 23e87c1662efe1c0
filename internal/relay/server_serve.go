package relay

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// Serve runs the control plane over stdio for a directly attached MCP
// client. Blocks until the transport closes.
func (ms *MCPServer) Serve(logger *slog.Logger) error {
	logger.Info("serving MCP control plane over stdio")
	return server.ServeStdio(ms.server)
}

// ServeHTTP runs the control plane over HTTP/SSE on addr under /mcp.
// Blocks until the listener fails or is shut down.
func (ms *MCPServer) ServeHTTP(addr string, logger *slog.Logger) error {
	logger.Info("serving MCP control plane over HTTP/SSE",
		"addr", addr,
		"base_path", "/mcp",
	)
	sseServer := server.NewSSEServer(ms.server,
		server.WithBaseURL("http://"+addr),
		server.WithStaticBasePath("/mcp"),
	)
	return sseServer.Start(addr)
}
