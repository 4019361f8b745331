// Package router batches processed chunks and streams them to the chunk
// sink with retry.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/progress"
	"github.com/nameFly-top/vscode-codeBase/internal/sink"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// inboxDepth bounds the channel between workers and the batcher. A full
// inbox blocks Add, which is the backpressure toward the dispatcher.
const inboxDepth = 256

// Router coalesces chunks from all workers into batches of at most
// batchSize and pushes them to the sink. A chunk is never dropped silently:
// it either reaches the sink or is marked failed with the sink's error text.
type Router struct {
	sink    sink.ChunkSink
	tracker *progress.Tracker

	batchSize  int
	maxRetries int
	baseDelay  time.Duration
	multiplier float64

	in   chan types.Chunk
	done chan struct{}

	mu       sync.Mutex
	seen     map[string]bool
	failures map[string]string
	accepted int
	failed   int
}

// New creates a router over the given sink.
func New(chunkSink sink.ChunkSink, tracker *progress.Tracker, sinkCfg config.SinkConfig, batchSize int) *Router {
	if batchSize <= 0 {
		batchSize = 100
	}
	baseDelay := time.Duration(sinkCfg.RetryDelayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	multiplier := sinkCfg.BackoffMultiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}
	return &Router{
		sink:       chunkSink,
		tracker:    tracker,
		batchSize:  batchSize,
		maxRetries: sinkCfg.MaxRetries,
		baseDelay:  baseDelay,
		multiplier: multiplier,
		in:         make(chan types.Chunk, inboxDepth),
		done:       make(chan struct{}),
		seen:       make(map[string]bool),
		failures:   make(map[string]string),
	}
}

// Start launches the async batcher. On cancellation the in-flight batch is
// flushed, then remaining queued chunks are marked failed and the batcher
// stops.
func (r *Router) Start(ctx context.Context) {
	go r.run(ctx)
}

// Add hands chunks to the batcher. It blocks when the batcher is behind;
// callers must not Add after Close.
func (r *Router) Add(chunks []types.Chunk) {
	for _, c := range chunks {
		r.in <- c
	}
}

// Close signals that no more chunks are coming and waits for the batcher to
// flush and stop.
func (r *Router) Close() {
	close(r.in)
	<-r.done
}

// Accepted returns the number of chunks the sink accepted.
func (r *Router) Accepted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted
}

// Failed returns the number of chunks marked failed.
func (r *Router) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// FailedChunks returns chunk IDs that terminally failed, with the sink's
// error text.
func (r *Router) FailedChunks() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.failures))
	for id, msg := range r.failures {
		out[id] = msg
	}
	return out
}

func (r *Router) run(ctx context.Context) {
	defer close(r.done)

	batch := make([]types.Chunk, 0, r.batchSize)
	flush := func() {
		if len(batch) > 0 {
			r.sendBatch(ctx, batch)
			batch = make([]types.Chunk, 0, r.batchSize)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			// Queued chunks cannot be shipped anymore; fail them loudly.
			for c := range r.in {
				r.markFailed(c, "router cancelled before dispatch")
			}
			return
		case c, ok := <-r.in:
			if !ok {
				flush()
				return
			}
			if r.dedupe(c) {
				continue
			}
			batch = append(batch, c)
			if len(batch) >= r.batchSize {
				flush()
			}
		}
	}
}

// dedupe partitions the stream by chunk fingerprint: a fingerprint already
// shipped this run is not shipped twice.
func (r *Router) dedupe(c types.Chunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[c.ID] {
		log.Debug().Str("chunk", c.ID).Msg("router: duplicate fingerprint skipped")
		return true
	}
	r.seen[c.ID] = true
	return false
}

// sendBatch pushes one batch with exponential backoff. Transient sink
// failures retry up to maxRetries; permanent (4xx) failures stop
// immediately. A terminal failure marks every chunk in the batch failed.
func (r *Router) sendBatch(ctx context.Context, batch []types.Chunk) {
	for _, c := range batch {
		r.tracker.UpdateChunkStatus(c.ID, types.StatusProcessing)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	bo.Multiplier = r.multiplier
	bo.MaxElapsedTime = 0

	var result *sink.EmbedResult
	op := func() error {
		res, err := r.sink.Embed(ctx, batch)
		if err != nil {
			if sink.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		log.Error().Err(err).Int("batch", len(batch)).Msg("router: batch terminally failed")
		for _, c := range batch {
			r.markFailed(c, err.Error())
		}
		return
	}

	// When the service hands the vectors back, the store write is ours.
	if len(result.Vectors) == len(batch) && len(batch) > 0 {
		if err := r.upsert(ctx, batch, result.Vectors); err != nil {
			log.Error().Err(err).Int("batch", len(batch)).Msg("router: upsert terminally failed")
			for _, c := range batch {
				r.markFailed(c, err.Error())
			}
			return
		}
	}

	r.mu.Lock()
	r.accepted += len(batch)
	r.mu.Unlock()
	for _, c := range batch {
		r.tracker.UpdateChunkStatus(c.ID, types.StatusCompleted)
	}
}

// upsert writes the returned vectors to the store, with the same retry
// policy as embed.
func (r *Router) upsert(ctx context.Context, batch []types.Chunk, vectors [][]float32) error {
	rows := make([]sink.Vector, len(batch))
	for i, c := range batch {
		rows[i] = sink.Vector{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: map[string]any{
				"filePath":  c.FilePath,
				"language":  c.Language,
				"startLine": c.StartLine,
				"endLine":   c.EndLine,
				"type":      string(c.Type),
				"name":      c.Name,
			},
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	bo.Multiplier = r.multiplier
	bo.MaxElapsedTime = 0

	op := func() error {
		err := r.sink.Upsert(ctx, rows)
		if err != nil && sink.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxRetries)), ctx))
}

func (r *Router) markFailed(c types.Chunk, msg string) {
	r.mu.Lock()
	r.failed++
	r.failures[c.ID] = msg
	r.mu.Unlock()
	r.tracker.UpdateChunkStatus(c.ID, types.StatusFailed)
}
