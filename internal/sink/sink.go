// Package sink defines the downstream embedding collaborator: the narrow
// interface the router speaks, and the HTTP client implementing it.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// Embed statuses reported by the service.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// EmbedResult is the embed call's outcome: accepted chunk IDs in request
// order, plus the vectors when the service leaves the store write to the
// caller.
type EmbedResult struct {
	Status  string      `json:"status"`
	IDs     []string    `json:"ids"`
	Vectors [][]float32 `json:"vectors,omitempty"`
	JobID   string      `json:"jobId,omitempty"`
}

// Vector is one row for the vector-store upsert.
type Vector struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// ChunkSink is the downstream collaborator the router streams batches to.
type ChunkSink interface {
	// Embed ships a batch of chunks for embedding and returns the accepted
	// IDs. Implementations may complete asynchronously behind a status poll.
	Embed(ctx context.Context, batch []types.Chunk) (*EmbedResult, error)
	// Upsert writes embedded vectors to the remote store.
	Upsert(ctx context.Context, vectors []Vector) error
}

// Searcher is the query-side surface of the same endpoint. It is separate
// from ChunkSink so the router's dependency stays narrow.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters *types.SearchFilters) ([]types.SearchHit, error)
}

// Error is a sink call failure carrying the HTTP classification: 4xx
// responses are permanent, 5xx and transport errors are transient.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink returned %d: %s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return types.ErrSink }

// Permanent reports whether retrying cannot help.
func (e *Error) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsPermanent reports whether err is a sink error that retries cannot fix.
func IsPermanent(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Permanent()
}
