// Package progress tracks per-file and per-chunk processing states and
// aggregates completion for the pipeline.
package progress

import (
	"sort"
	"sync"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// ChunkMeta is the metadata recorded when a chunk is registered.
type ChunkMeta struct {
	FilePath string
	Type     types.ChunkType
}

type chunkState struct {
	meta   ChunkMeta
	status types.Status
}

type fileState struct {
	status   types.Status
	explicit bool // set via UpdateFileStatus/RecordFailure; cleared when the status is next derived from chunks
	chunks   []string
}

// Tracker holds the status of every registered file and chunk. All methods
// are guarded by a single lock; updates for a chunk happen-before any
// aggregation that reads them. Entries are never removed; they live as long
// as the tracker.
type Tracker struct {
	mu     sync.Mutex
	files  map[string]*fileState
	chunks map[string]*chunkState
	parts  map[string][]string // parent chunk ID → part IDs
	errs   map[string]string   // file path → first failure message
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		files:  make(map[string]*fileState),
		chunks: make(map[string]*chunkState),
		parts:  make(map[string][]string),
		errs:   make(map[string]string),
	}
}

// RegisterFiles registers paths in state pending. Re-registering an existing
// path resets it.
func (t *Tracker) RegisterFiles(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		t.files[p] = &fileState{status: types.StatusPending}
	}
}

// RegisterChunk registers a chunk in state pending and links it to its file
// and, for split parts, to its parent chunk when that parent is registered.
func (t *Tracker) RegisterChunk(chunkID string, meta ChunkMeta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chunks[chunkID] = &chunkState{meta: meta, status: types.StatusPending}
	if f, ok := t.files[meta.FilePath]; ok {
		f.chunks = append(f.chunks, chunkID)
	}
	if parent, ok := types.ParentChunkID(chunkID); ok {
		if _, exists := t.chunks[parent]; exists {
			t.parts[parent] = append(t.parts[parent], chunkID)
		}
	}
}

// UpdateFileStatus sets a file's status explicitly. Cache hits use this to
// mark files completed without per-chunk transitions.
func (t *Tracker) UpdateFileStatus(path string, status types.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[path]
	if !ok {
		f = &fileState{}
		t.files[path] = f
	}
	f.status = status
	f.explicit = true
}

// UpdateChunkStatus transitions a chunk, propagates split-part updates to
// the parent chunk, and re-derives the owning file's status.
func (t *Tracker) UpdateChunkStatus(chunkID string, status types.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.chunks[chunkID]
	if !ok {
		return
	}
	c.status = status

	if parent, isPart := types.ParentChunkID(chunkID); isPart {
		t.aggregateParent(parent)
	}
	t.deriveFile(c.meta.FilePath)
}

// RecordFailure stores the failure message for a file and marks it failed.
func (t *Tracker) RecordFailure(path, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.errs[path]; !ok {
		t.errs[path] = msg
	}
	f, ok := t.files[path]
	if !ok {
		f = &fileState{}
		t.files[path] = f
	}
	f.status = types.StatusFailed
	f.explicit = true
}

// aggregateParent recomputes a parent chunk's status from its parts: it
// completes only when every known part completed, and fails once all parts
// are terminal with at least one failure.
func (t *Tracker) aggregateParent(parentID string) {
	parts := t.parts[parentID]
	parent, ok := t.chunks[parentID]
	if !ok || len(parts) == 0 {
		return
	}

	allCompleted, allTerminal, anyFailed, anyProcessing := true, true, false, false
	for _, id := range parts {
		p, ok := t.chunks[id]
		if !ok {
			continue
		}
		switch p.status {
		case types.StatusCompleted:
		case types.StatusFailed:
			allCompleted = false
			anyFailed = true
		case types.StatusProcessing:
			allCompleted = false
			allTerminal = false
			anyProcessing = true
		default:
			allCompleted = false
			allTerminal = false
		}
	}

	switch {
	case allCompleted:
		parent.status = types.StatusCompleted
	case allTerminal && anyFailed:
		parent.status = types.StatusFailed
	case anyProcessing:
		parent.status = types.StatusProcessing
	}
}

// deriveFile recomputes a file's status from its chunks: processing if any
// chunk is processing; completed if all chunks completed; failed if at least
// one failed and none is processing; else pending. Explicitly-set statuses
// are not overridden by derivation from an empty chunk list.
func (t *Tracker) deriveFile(path string) {
	f, ok := t.files[path]
	if !ok {
		return
	}
	if len(f.chunks) == 0 {
		return
	}

	anyProcessing, anyFailed, allCompleted := false, false, true
	for _, id := range f.chunks {
		c, ok := t.chunks[id]
		if !ok {
			continue
		}
		switch c.status {
		case types.StatusProcessing:
			anyProcessing = true
			allCompleted = false
		case types.StatusFailed:
			anyFailed = true
			allCompleted = false
		case types.StatusPending:
			allCompleted = false
		}
	}

	switch {
	case anyProcessing:
		f.status = types.StatusProcessing
	case allCompleted:
		f.status = types.StatusCompleted
	case anyFailed:
		f.status = types.StatusFailed
	default:
		f.status = types.StatusPending
	}
	f.explicit = false
}

// FileStatus returns a file's current status.
func (t *Tracker) FileStatus(path string) (types.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[path]
	if !ok {
		return "", false
	}
	return f.status, true
}

// ChunkStatus returns a chunk's current status.
func (t *Tracker) ChunkStatus(chunkID string) (types.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chunks[chunkID]
	if !ok {
		return "", false
	}
	return c.status, true
}

// OverallProgress returns the percentage of files in a terminal state,
// in [0, 100]. An empty tracker reports 100.
func (t *Tracker) OverallProgress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.files) == 0 {
		return 100
	}
	terminal := 0
	for _, f := range t.files {
		if f.status.Terminal() {
			terminal++
		}
	}
	return 100 * float64(terminal) / float64(len(t.files))
}

// FileProgress returns the percentage of a file's chunks that completed.
// Files with no registered chunks report by status alone.
func (t *Tracker) FileProgress(path string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[path]
	if !ok {
		return 0
	}
	if len(f.chunks) == 0 {
		if f.status == types.StatusCompleted {
			return 100
		}
		return 0
	}
	completed := 0
	for _, id := range f.chunks {
		if c, ok := t.chunks[id]; ok && c.status == types.StatusCompleted {
			completed++
		}
	}
	return 100 * float64(completed) / float64(len(f.chunks))
}

// Counts returns the number of files per status.
func (t *Tracker) Counts() map[types.Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[types.Status]int, 4)
	for _, f := range t.files {
		counts[f.status]++
	}
	return counts
}

// FailedFiles returns the failed paths mapped to their first failure
// message.
func (t *Tracker) FailedFiles() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string)
	for p, f := range t.files {
		if f.status == types.StatusFailed {
			out[p] = t.errs[p]
		}
	}
	return out
}

// Files returns all registered paths, sorted.
func (t *Tracker) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
