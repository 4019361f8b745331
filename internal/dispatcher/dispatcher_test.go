package dispatcher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nameFly-top/vscode-codeBase/internal/cache"
	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/progress"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func testCache(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(config.CacheConfig{
		DBPath:       filepath.Join(t.TempDir(), "cache.db"),
		MaxSizeBytes: 100 << 20,
		MaxEntries:   1000,
		TTLHours:     24,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testChunker uses an empty registry: every file takes the line chunker,
// which keeps these tests about pool behavior, not grammars.
func testChunker() *chunker.AstChunker {
	lc := chunker.NewLineChunker(50, types.MaxChunkBytes)
	return chunker.NewAstChunker(chunker.NewRegistry(), lc, types.MaxChunkBytes)
}

func makeFile(rel, content string) *types.File {
	return &types.File{
		RelPath:  rel,
		Content:  []byte(content),
		Hash:     types.HashBytes([]byte(content)),
		Language: "txt",
		Size:     int64(len(content)),
	}
}

type collector struct {
	mu     sync.Mutex
	chunks map[string][]types.Chunk
}

func newCollector() *collector {
	return &collector{chunks: make(map[string][]types.Chunk)}
}

func (c *collector) emit(f *types.File, chunks []types.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks[f.RelPath] = append(c.chunks[f.RelPath], chunks...)
}

func TestRun_ProcessesAllFiles(t *testing.T) {
	tr := progress.NewTracker()
	store := testCache(t)
	d := New(testChunker(), store, tr, 4, time.Minute)

	files := []*types.File{
		makeFile("a.txt", "one\ntwo\n"),
		makeFile("b.txt", "three\n"),
		makeFile("c.txt", "four\nfive\nsix\n"),
	}
	tr.RegisterFiles([]string{"a.txt", "b.txt", "c.txt"})

	col := newCollector()
	stats, err := d.Run(context.Background(), files, col.emit)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesProcessed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 3, stats.ChunksProduced)
	assert.Len(t, col.chunks, 3)
}

func TestRun_PopulatesCache(t *testing.T) {
	tr := progress.NewTracker()
	store := testCache(t)
	d := New(testChunker(), store, tr, 1, time.Minute)

	f := makeFile("a.txt", "hello\nworld\n")
	tr.RegisterFiles([]string{"a.txt"})

	_, err := d.Run(context.Background(), []*types.File{f}, newCollector().emit)
	require.NoError(t, err)

	cs, err := store.Get(context.Background(), "a.txt", f.Hash)
	require.NoError(t, err)
	require.Len(t, cs.Chunks, 1)
	assert.Equal(t, "hello\nworld", cs.Chunks[0].Content)
	assert.Equal(t, f.Hash, cs.FileHash)
}

func TestRun_EmptyFileCompletesWithZeroChunks(t *testing.T) {
	tr := progress.NewTracker()
	d := New(testChunker(), testCache(t), tr, 1, time.Minute)

	f := makeFile("empty.txt", "")
	tr.RegisterFiles([]string{"empty.txt"})

	col := newCollector()
	stats, err := d.Run(context.Background(), []*types.File{f}, col.emit)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 0, stats.ChunksProduced)
	assert.Empty(t, col.chunks)

	st, _ := tr.FileStatus("empty.txt")
	assert.Equal(t, types.StatusCompleted, st)
}

func TestRun_CancelledContextDropsQueuedFiles(t *testing.T) {
	tr := progress.NewTracker()
	d := New(testChunker(), testCache(t), tr, 1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []*types.File{
		makeFile("a.txt", "x\n"),
		makeFile("b.txt", "y\n"),
	}
	tr.RegisterFiles([]string{"a.txt", "b.txt"})

	stats, err := d.Run(ctx, files, newCollector().emit)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesProcessed)
	assert.Equal(t, 2, stats.FilesDropped)

	st, _ := tr.FileStatus("a.txt")
	assert.Equal(t, types.StatusFailed, st)
}

func TestRun_ChunkOrderWithinFilePreserved(t *testing.T) {
	tr := progress.NewTracker()
	d := New(testChunker(), testCache(t), tr, 4, time.Minute)

	// 120 lines → three line_based chunks in ascending order.
	var content string
	for i := 0; i < 120; i++ {
		content += "line\n"
	}
	f := makeFile("big.txt", content)
	tr.RegisterFiles([]string{"big.txt"})

	col := newCollector()
	_, err := d.Run(context.Background(), []*types.File{f}, col.emit)
	require.NoError(t, err)

	chunks := col.chunks["big.txt"]
	require.Len(t, chunks, 3)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartLine, chunks[i-1].EndLine)
	}
}

func TestRun_RegistersChunksWithTracker(t *testing.T) {
	tr := progress.NewTracker()
	d := New(testChunker(), testCache(t), tr, 1, time.Minute)

	f := makeFile("a.txt", "x\ny\n")
	tr.RegisterFiles([]string{"a.txt"})

	col := newCollector()
	_, err := d.Run(context.Background(), []*types.File{f}, col.emit)
	require.NoError(t, err)

	for _, c := range col.chunks["a.txt"] {
		_, ok := tr.ChunkStatus(c.ID)
		assert.True(t, ok, "chunk %s must be registered", c.ID)
	}
}
