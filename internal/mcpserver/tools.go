package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleProcessWorkspace handles the process_workspace tool invocation
func (s *Server) handleProcessWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, deviceID, workspacePath, err := sessionParams(args)
	if err != nil {
		return nil, err
	}
	if err := validateWorkspace(workspacePath); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid workspace_path", map[string]interface{}{
			"param":  "workspace_path",
			"reason": err.Error(),
		})
	}

	token := getStringDefault(args, "token", "")
	ignorePatterns := getStringSlice(args, "ignore_patterns")

	ok, err = s.sessions.ProcessWorkspace(ctx, userID, deviceID, workspacePath, token, ignorePatterns)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "processing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"success":      ok,
		"progress":     s.sessions.Progress(userID, deviceID, workspacePath),
		"failed_files": s.sessions.FailedFiles(userID, deviceID, workspacePath),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, deviceID, workspacePath, err := sessionParams(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 10)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	var filters *types.SearchFilters
	languages := getStringSlice(args, "languages")
	pathPrefix := getStringDefault(args, "path_prefix", "")
	if len(languages) > 0 || pathPrefix != "" {
		filters = &types.SearchFilters{Languages: languages, PathPrefix: pathPrefix}
	}

	hits, err := s.sessions.Search(ctx, userID, deviceID, workspacePath, query, topK, filters)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(hits))
	for i, h := range hits {
		results[i] = map[string]interface{}{
			"chunk_id":   h.ChunkID,
			"rank":       h.Rank,
			"score":      h.Score,
			"file_path":  h.FilePath,
			"language":   h.Language,
			"start_line": h.StartLine,
			"end_line":   h.EndLine,
			"content":    h.Content,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"results": results,
	})), nil
}

// handleGetProgress handles the get_progress tool invocation
func (s *Server) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	userID, deviceID, workspacePath, err := sessionParams(args)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"progress":     s.sessions.Progress(userID, deviceID, workspacePath),
		"failed_files": s.sessions.FailedFiles(userID, deviceID, workspacePath),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleShutdownSession handles the shutdown_session tool invocation
func (s *Server) handleShutdownSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	userID, deviceID, workspacePath, err := sessionParams(args)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.CloseSession(userID, deviceID, workspacePath); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"closed": true})), nil
}

// Helper functions

// sessionParams extracts the three required session-key parameters.
func sessionParams(args map[string]interface{}) (userID, deviceID, workspacePath string, err error) {
	for _, p := range []struct {
		key string
		dst *string
	}{
		{"user_id", &userID},
		{"device_id", &deviceID},
		{"workspace_path", &workspacePath},
	} {
		v, ok := args[p.key].(string)
		if !ok || v == "" {
			return "", "", "", newMCPError(ErrorCodeInvalidParams, p.key+" parameter is required", map[string]interface{}{
				"param":  p.key,
				"reason": "missing or empty",
			})
		}
		*p.dst = v
	}
	return userID, deviceID, workspacePath, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateWorkspace checks that the workspace path is an accessible directory.
func validateWorkspace(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
