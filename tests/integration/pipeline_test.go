// Package integration exercises the full pipeline end-to-end over a real
// multi-language workspace, with only the sink stubbed out.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/pipeline"
	"github.com/nameFly-top/vscode-codeBase/internal/sink"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// recordingSink accepts everything and keeps the shipped chunks.
type recordingSink struct {
	mu      sync.Mutex
	chunks  []types.Chunk
	batches int
}

func (r *recordingSink) Embed(ctx context.Context, batch []types.Chunk) (*sink.EmbedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, batch...)
	r.batches++
	res := &sink.EmbedResult{Status: sink.StatusCompleted}
	for _, c := range batch {
		res.IDs = append(res.IDs, c.ID)
	}
	return res, nil
}

func (r *recordingSink) Upsert(ctx context.Context, vectors []sink.Vector) error { return nil }

func (r *recordingSink) byPath() map[string][]types.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]types.Chunk)
	for _, c := range r.chunks {
		out[c.FilePath] = append(out[c.FilePath], c)
	}
	return out
}

// copyFixtures clones tests/testdata/fixtures into a fresh workspace.
func copyFixtures(t *testing.T) string {
	t.Helper()
	src := filepath.Join("..", "testdata", "fixtures")
	dst := t.TempDir()

	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644))
	}
	return dst
}

func newPipeline(t *testing.T, ws string, s sink.ChunkSink) *pipeline.Pipeline {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkspacePath = ws
	cfg.Concurrency = 4
	cfg.Cache.DBPath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Sink.MaxRetries = 1
	cfg.Sink.RetryDelayMs = 1

	p, err := pipeline.New(cfg, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestEndToEnd_MultiLanguageWorkspace(t *testing.T) {
	ws := copyFixtures(t)
	rs := &recordingSink{}
	p := newPipeline(t, ws, rs)

	ok, stats, err := p.Run(context.Background(), ws)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 4, stats.FilesScanned)
	assert.Equal(t, 4, stats.FilesParsed)
	assert.Zero(t, stats.FilesFailed)

	shipped := rs.byPath()

	// Python: a class and a function, plus imports.
	pyTypes := map[types.ChunkType]bool{}
	for _, c := range shipped["service.py"] {
		pyTypes[c.Type] = true
		assert.Equal(t, "python_parser", c.Parser)
		assert.Equal(t, "python", c.Language)
	}
	assert.True(t, pyTypes[types.ChunkClass], "expected a class chunk: %v", pyTypes)
	assert.True(t, pyTypes[types.ChunkFunction], "expected a function chunk: %v", pyTypes)
	assert.True(t, pyTypes[types.ChunkImport], "expected an import chunk: %v", pyTypes)

	// Go: the two adjacent consts merge into one constant chunk.
	constants := 0
	for _, c := range shipped["limits.go"] {
		if c.Type == types.ChunkConstant {
			constants++
			assert.Contains(t, c.Content, "MaxEntries")
			assert.Contains(t, c.Content, "MaxBytes")
		}
	}
	assert.Equal(t, 1, constants, "adjacent const declarations merge")

	// TypeScript: its own plugin, not a javascript downgrade.
	require.NotEmpty(t, shipped["util.ts"])
	for _, c := range shipped["util.ts"] {
		assert.Equal(t, "typescript", c.Language)
	}

	// Markdown is line-routed.
	require.NotEmpty(t, shipped["README.md"])
	assert.Equal(t, types.ChunkLineBased, shipped["README.md"][0].Type)

	// Universal invariants over everything shipped.
	for _, c := range rs.chunks {
		require.NoError(t, c.Validate())
		assert.LessOrEqual(t, len(c.Content), types.MaxChunkBytes)
	}
}

func TestEndToEnd_RerunIsAllCacheHits(t *testing.T) {
	ws := copyFixtures(t)
	rs := &recordingSink{}
	p := newPipeline(t, ws, rs)

	ok, first, err := p.Run(context.Background(), ws)
	require.NoError(t, err)
	require.True(t, ok)
	shippedOnce := len(rs.chunks)

	ok, second, err := p.Run(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, second.Unchanged)
	assert.Equal(t, first.RootHash, second.RootHash)
	assert.Zero(t, second.FilesParsed, "no parser runs on an unchanged workspace")
	assert.Equal(t, shippedOnce, len(rs.chunks), "nothing re-shipped")
	assert.Equal(t, float64(100), p.Tracker().OverallProgress())
}

func TestEndToEnd_SingleFileModification(t *testing.T) {
	ws := copyFixtures(t)
	rs := &recordingSink{}
	p := newPipeline(t, ws, rs)

	_, _, err := p.Run(context.Background(), ws)
	require.NoError(t, err)

	// Append a function to one file only.
	pyPath := filepath.Join(ws, "service.py")
	content, err := os.ReadFile(pyPath)
	require.NoError(t, err)
	updated := string(content) + "\n\ndef added():\n    return 99\n"
	require.NoError(t, os.WriteFile(pyPath, []byte(updated), 0o644))

	ok, stats, err := p.Run(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, stats.FilesParsed, "only the modified file is re-parsed")
	assert.Equal(t, 3, stats.CacheHits, "all other files served from cache")

	// The new function arrived at the sink.
	found := false
	for _, c := range rs.chunks {
		if c.FilePath == "service.py" && strings.Contains(c.Content, "def added()") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEndToEnd_FailedSinkMarksChunksButReportsFailure(t *testing.T) {
	ws := copyFixtures(t)
	p := newPipeline(t, ws, &rejectingSink{})

	ok, stats, err := p.Run(context.Background(), ws)
	require.NoError(t, err, "sink failure is not a pipeline error")
	assert.False(t, ok, "nothing accepted and not all cache hits")
	assert.Zero(t, stats.ChunksAccepted)
	assert.NotZero(t, stats.ChunksFailed)
}

// rejectingSink fails every batch with a permanent error.
type rejectingSink struct{}

func (rejectingSink) Embed(ctx context.Context, batch []types.Chunk) (*sink.EmbedResult, error) {
	return nil, &sink.Error{StatusCode: 400, Body: "always rejected"}
}

func (rejectingSink) Upsert(ctx context.Context, vectors []sink.Vector) error { return nil }
