// Package mcpserver exposes the session operations as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/session"
)

const (
	// ServerName is the MCP server name
	ServerName = "codebase-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the session manager.
type Server struct {
	mcp      *server.MCPServer
	sessions *session.Manager
}

// NewServer creates an MCP server over a fresh session manager.
func NewServer(cfg config.Config) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		sessions: session.NewManager(cfg),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown. All
// sessions are torn down when serving stops.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.sessions.Shutdown() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(processWorkspaceTool(), s.handleProcessWorkspace)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getProgressTool(), s.handleGetProgress)
	s.mcp.AddTool(shutdownSessionTool(), s.handleShutdownSession)
}
