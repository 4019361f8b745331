// Package dispatcher runs the bounded-concurrency pool that turns admitted
// files into chunks and populates the cache.
package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nameFly-top/vscode-codeBase/internal/cache"
	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/internal/progress"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// Stats summarizes one dispatch run.
type Stats struct {
	FilesProcessed int
	FilesFailed    int
	FilesDropped   int // queued files dropped by cancellation
	ChunksProduced int
}

// EmitFunc receives each file's chunks as they are produced. Implementations
// must be safe for concurrent calls; chunk order within one file is the
// chunker's emission order.
type EmitFunc func(file *types.File, chunks []types.Chunk)

// Dispatcher owns the worker pool. Each worker processes one file end-to-end:
// parse, chunk, cache write, hand downstream. Ordering between files is not
// guaranteed.
type Dispatcher struct {
	chunker *chunker.AstChunker
	cache   *cache.Store
	tracker *progress.Tracker

	workers     int
	fileTimeout time.Duration
}

// New creates a dispatcher. workers <= 0 selects one worker per CPU; the
// degree is otherwise capped at the CPU count.
func New(astChunker *chunker.AstChunker, store *cache.Store, tracker *progress.Tracker, workers int, fileTimeout time.Duration) *Dispatcher {
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	return &Dispatcher{
		chunker:     astChunker,
		cache:       store,
		tracker:     tracker,
		workers:     workers,
		fileTimeout: fileTimeout,
	}
}

// Run processes files through the pool. Per-file failures are local: the
// file is marked failed and the run continues. When ctx is cancelled,
// in-flight files finish but queued files are dropped and marked failed.
// The returned error is non-nil only when the pool itself broke.
func (d *Dispatcher) Run(ctx context.Context, files []*types.File, emit EmitFunc) (*Stats, error) {
	var processed, failed, dropped, chunks atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	for _, f := range files {
		f := f
		if ctx.Err() != nil {
			d.tracker.RecordFailure(f.RelPath, "cancelled before processing")
			dropped.Add(1)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				d.tracker.RecordFailure(f.RelPath, "cancelled before processing")
				dropped.Add(1)
				return nil
			}
			n, err := d.processFile(ctx, f, emit)
			if err != nil {
				log.Warn().Err(err).Str("path", f.RelPath).Msg("dispatcher: file failed")
				d.tracker.RecordFailure(f.RelPath, err.Error())
				failed.Add(1)
				return nil
			}
			processed.Add(1)
			chunks.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dispatcher pool: %w", err)
	}

	return &Stats{
		FilesProcessed: int(processed.Load()),
		FilesFailed:    int(failed.Load()),
		FilesDropped:   int(dropped.Load()),
		ChunksProduced: int(chunks.Load()),
	}, nil
}

// processFile chunks one file under its own timeout, stores the result in
// the cache, and hands the chunks downstream.
func (d *Dispatcher) processFile(ctx context.Context, f *types.File, emit EmitFunc) (int, error) {
	fctx := ctx
	if d.fileTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, d.fileTimeout)
		defer cancel()
	}

	d.tracker.UpdateFileStatus(f.RelPath, types.StatusProcessing)

	chunkList, err := d.chunker.Chunk(fctx, f.Content, f.RelPath)
	if err != nil {
		return 0, err
	}
	if fctx.Err() != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrCancelled, fctx.Err())
	}

	for _, c := range chunkList {
		d.tracker.RegisterChunk(c.ID, progress.ChunkMeta{FilePath: f.RelPath, Type: c.Type})
	}

	// The cache write is best-effort: a cache error never fails the file.
	cs := &types.ChunkSet{
		FilePath:   f.RelPath,
		FileHash:   f.Hash,
		Chunks:     chunkList,
		ProducedAt: time.Now().UTC(),
	}
	if err := d.cache.Set(ctx, f.RelPath, f.Hash, cs); err != nil {
		log.Warn().Err(err).Str("path", f.RelPath).Msg("dispatcher: cache write failed, continuing uncached")
	}

	if len(chunkList) == 0 {
		d.tracker.UpdateFileStatus(f.RelPath, types.StatusCompleted)
		return 0, nil
	}

	emit(f, chunkList)
	return len(chunkList), nil
}
