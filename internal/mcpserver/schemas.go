package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// processWorkspaceTool returns the tool definition for process_workspace
func processWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "process_workspace",
		Description: "Chunk a workspace and ship the chunks to the embedding sink",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Caller identity the session is keyed by",
				},
				"device_id": map[string]interface{}{
					"type":        "string",
					"description": "Device identity the session is keyed by",
				},
				"workspace_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the workspace root",
				},
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Bearer token for the embedding sink (optional override)",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Extra double-star globs to exclude from the scan",
				},
			},
			Required: []string{"user_id", "device_id", "workspace_path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed workspace with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type": "string",
				},
				"device_id": map[string]interface{}{
					"type": "string",
				},
				"workspace_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed workspace",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"languages": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Restrict results to these language tags",
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to paths under this prefix",
				},
			},
			Required: []string{"user_id", "device_id", "workspace_path", "query"},
		},
	}
}

// getProgressTool returns the tool definition for get_progress
func getProgressTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_progress",
		Description: "Report workspace processing progress as a percentage",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type": "string",
				},
				"device_id": map[string]interface{}{
					"type": "string",
				},
				"workspace_path": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"user_id", "device_id", "workspace_path"},
		},
	}
}

// shutdownSessionTool returns the tool definition for shutdown_session
func shutdownSessionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "shutdown_session",
		Description: "Tear down the session for a workspace and release its resources",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type": "string",
				},
				"device_id": map[string]interface{}{
					"type": "string",
				},
				"workspace_path": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"user_id", "device_id", "workspace_path"},
		},
	}
}
