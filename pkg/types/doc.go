// Package types provides shared type definitions for the workspace chunking
// pipeline.
//
// This package defines the domain types used across components: files,
// chunks, chunk sets, processing statuses, and search results.
//
// # Core Types
//
// Chunk is a bounded, addressable span of a source file, semantically
// aligned when AST parsing succeeds:
//
//	chunk := &types.Chunk{
//	    FilePath:  "internal/server/handler.py",
//	    Language:  "python",
//	    StartLine: 10,
//	    EndLine:   24,
//	    Type:      types.ChunkFunction,
//	    Parser:    "python_parser",
//	}
//	chunk.ID = types.ComputeChunkID(chunk.FilePath, chunk.StartLine, chunk.EndLine)
//
// Content is the exact byte sequence of the parsed lines
// [StartLine..EndLine] joined by '\n'. The parsed bytes are the file's own
// bytes with NUL bytes removed (and, on the chunker's retry stages, control
// bytes removed and CRLF normalized). A single line longer than
// MaxChunkBytes is hard-split into byte windows that all carry that line's
// number, so those windows do not round-trip as whole lines. The cap
// on content size is MaxChunkBytes; oversized regions are re-split by line
// and the parts linked back to the parent via SplitPartID.
//
// ChunkSet groups all chunks produced for one (path, contentHash) pair and
// is the value type of the chunk cache.
//
// # Statuses
//
// Files and chunks move through pending → processing → completed/failed.
// A file's status is derived from its chunks by the progress tracker.
//
// # Validation
//
// Chunk implements a Validate method enforcing the structural invariants
// (1-based inclusive line ranges, the byte cap):
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
