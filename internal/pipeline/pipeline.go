// Package pipeline orchestrates one workspace run: scan, merkle diff, cache
// partition, dispatch, and routing to the sink.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/internal/cache"
	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/internal/chunker/languages"
	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/dispatcher"
	"github.com/nameFly-top/vscode-codeBase/internal/merkle"
	"github.com/nameFly-top/vscode-codeBase/internal/progress"
	"github.com/nameFly-top/vscode-codeBase/internal/router"
	"github.com/nameFly-top/vscode-codeBase/internal/scanner"
	"github.com/nameFly-top/vscode-codeBase/internal/sink"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// Stats reports the outcome of one run.
type Stats struct {
	FilesScanned   int
	CacheHits      int
	CacheExpired   int
	FilesParsed    int
	FilesFailed    int
	ChunksAccepted int
	ChunksFailed   int
	RootHash       string
	Unchanged      bool // merkle root matched the previous snapshot
	Duration       time.Duration
}

// Pipeline wires the components for one workspace. Construction is the only
// place configuration is read; a ConfigError here is fatal.
type Pipeline struct {
	cfg     config.Config
	scanner *scanner.Scanner
	snaps   *merkle.Store
	cache   *cache.Store
	chunker *chunker.AstChunker
	tracker *progress.Tracker
	sink    sink.ChunkSink
}

// New builds a pipeline from a frozen config and a sink.
func New(cfg config.Config, chunkSink sink.ChunkSink) (*Pipeline, error) {
	if cfg.Cache.DBPath == "" {
		return nil, fmt.Errorf("%w: cache.dbPath is required", types.ErrConfig)
	}

	registry := chunker.NewRegistry()
	languages.RegisterAll(registry)

	lineChunker := chunker.NewLineChunker(cfg.LinesPerChunk, cfg.MaxChunkBytes)
	astChunker := chunker.NewAstChunker(registry, lineChunker, cfg.MaxChunkBytes)

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		scanner: scanner.New(cfg.AllowedExtensions, cfg.IgnoreGlobs, cfg.IgnoredDirs, cfg.MaxFileSize),
		snaps:   merkle.NewStore(filepath.Dir(cfg.Cache.DBPath), cfg.Cache.Compression),
		cache:   store,
		chunker: astChunker,
		tracker: progress.NewTracker(),
		sink:    chunkSink,
	}, nil
}

// Tracker exposes the run's progress state.
func (p *Pipeline) Tracker() *progress.Tracker { return p.tracker }

// Cache exposes the chunk cache for maintenance (janitor, shutdown).
func (p *Pipeline) Cache() *cache.Store { return p.cache }

// Close releases the pipeline's resources.
func (p *Pipeline) Close() error {
	return p.cache.Close()
}

// Run processes the workspace once. The boolean mirrors the entry contract:
// true when at least one chunk was accepted by the sink or every file
// resolved to a cache hit (including the unchanged-workspace short-circuit);
// false otherwise. A scan failure or a broken dispatcher also returns false,
// together with a non-nil error; a run whose batches the sink all rejected
// returns false with a nil error.
func (p *Pipeline) Run(ctx context.Context, workspacePath string) (bool, *Stats, error) {
	start := time.Now()
	stats := &Stats{}

	scanRes, err := p.scanner.Scan(workspacePath)
	if err != nil {
		return false, stats, err
	}
	stats.FilesScanned = len(scanRes.Files)

	paths := make([]string, len(scanRes.Files))
	sizes := make(map[string]int64, len(scanRes.Files))
	for i, f := range scanRes.Files {
		paths[i] = f.RelPath
		sizes[f.RelPath] = f.Size
	}
	p.tracker.RegisterFiles(paths)

	previous, err := p.snaps.Load()
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: snapshot load failed, treating as initial build")
		previous = nil
	}
	diff := merkle.Compare(previous, scanRes.FileHashes)
	snapshot := p.snaps.Snapshot(workspacePath, scanRes.FileHashes, sizes)
	stats.RootHash = snapshot.RootHash

	// Unchanged workspace: no parses, no sink traffic, every file counts as
	// a cache hit.
	if previous != nil && diff.Empty() {
		for _, path := range paths {
			p.tracker.UpdateFileStatus(path, types.StatusCompleted)
		}
		stats.CacheHits = len(paths)
		stats.Unchanged = true
		stats.Duration = time.Since(start)
		log.Info().Str("root", stats.RootHash).Msg("pipeline: workspace unchanged, short-circuiting")
		return true, stats, nil
	}

	// Stale entries for changed or removed paths go before reprocessing.
	for _, path := range diff.Modified {
		if err := p.cache.InvalidateFile(ctx, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("pipeline: cache invalidation failed")
		}
	}
	for _, path := range diff.Removed {
		if err := p.cache.InvalidateFile(ctx, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("pipeline: cache invalidation failed")
		}
	}

	check, err := p.cache.BatchCheck(ctx, scanRes.Files)
	if err != nil {
		// Best-effort cache: treat everything as uncached.
		log.Warn().Err(err).Msg("pipeline: batch check failed, proceeding uncached")
		check = &cache.BatchResult{Uncached: scanRes.Files}
	}
	stats.CacheExpired = len(check.Expired)

	rt := router.New(p.sink, p.tracker, p.cfg.Sink, p.cfg.BatchSize)
	rt.Start(ctx)

	// Cached files replay their stored chunk sets; a read failure demotes
	// the file to the uncached side.
	uncached := append([]*types.File{}, check.Uncached...)
	uncached = append(uncached, check.Expired...)
	for _, f := range check.Cached {
		cs, err := p.cache.Get(ctx, f.RelPath, f.Hash)
		if err != nil {
			uncached = append(uncached, f)
			continue
		}
		stats.CacheHits++
		for _, c := range cs.Chunks {
			p.tracker.RegisterChunk(c.ID, progress.ChunkMeta{FilePath: f.RelPath, Type: c.Type})
		}
		p.tracker.UpdateFileStatus(f.RelPath, types.StatusCompleted)
		rt.Add(cs.Chunks)
	}

	disp := dispatcher.New(p.chunker, p.cache, p.tracker, p.cfg.Concurrency,
		time.Duration(p.cfg.FileTimeoutMs)*time.Millisecond)
	dispStats, dispErr := disp.Run(ctx, uncached, func(f *types.File, chunks []types.Chunk) {
		rt.Add(chunks)
	})

	rt.Close()

	if dispErr != nil {
		stats.Duration = time.Since(start)
		return false, stats, fmt.Errorf("dispatcher crashed: %w", dispErr)
	}

	stats.FilesParsed = dispStats.FilesProcessed
	stats.FilesFailed = dispStats.FilesFailed + dispStats.FilesDropped
	stats.ChunksAccepted = rt.Accepted()
	stats.ChunksFailed = rt.Failed()
	stats.Duration = time.Since(start)

	if err := p.snaps.Save(snapshot); err != nil {
		log.Warn().Err(err).Msg("pipeline: snapshot save failed")
	}

	if entries, bytes, err := p.cache.Stats(ctx); err == nil {
		log.Info().
			Int("scanned", stats.FilesScanned).
			Int("cacheHits", stats.CacheHits).
			Int("parsed", stats.FilesParsed).
			Int("failed", stats.FilesFailed).
			Int("accepted", stats.ChunksAccepted).
			Int("cacheEntries", entries).
			Str("cacheSize", humanize.Bytes(uint64(bytes))).
			Dur("took", stats.Duration).
			Msg("pipeline: run complete")
	}

	success := stats.ChunksAccepted > 0 || len(uncached) == 0
	return success, stats, nil
}
