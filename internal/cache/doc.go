// Package cache provides the durable, content-addressed chunk cache backing
// incremental workspace processing.
//
// Entries are ChunkSets keyed by (filePath, fileHash): a file whose content
// hash is unchanged is never re-chunked. The key on disk is
// md5(filePath ":" fileHash); the value is the JSON-serialized ChunkSet,
// gzip+base64-wrapped once the payload crosses 1 KiB (when compression is
// enabled).
//
// # Storage Layout
//
// A single SQLite table holds everything:
//
//	cache_entries(
//	    cache_key     TEXT PRIMARY KEY,
//	    file_path     TEXT NOT NULL,
//	    file_hash     TEXT NOT NULL,
//	    data          BLOB NOT NULL,
//	    data_size     INTEGER NOT NULL,
//	    created_at    TEXT NOT NULL,
//	    last_accessed TEXT NOT NULL
//	)
//
// Timestamps are fixed-width ISO-8601 text so lexicographic ORDER BY matches
// time order. The driver is selected at build time: mattn/go-sqlite3 under
// CGO, modernc.org/sqlite otherwise (see build_cgo.go / build_purego.go).
//
// # Eviction
//
// Three mechanisms bound the cache:
//
//   - TTL: entries older than ttlHours read as absent and are deleted
//     lazily on access, and in bulk by CleanExpired.
//   - LRU: EnforceLimits evicts by last_accessed ascending until the entry
//     count fits maxEntries and total bytes fit under 80% of maxSizeBytes.
//     It runs after every Set and on the janitor timer.
//   - Memory layer: a small in-process LRU of deserialized ChunkSets sits in
//     front of SQLite so repeat lookups skip the decode.
//
// # Concurrency
//
// Writes are serialized by an internal mutex, and the database handle holds
// a single connection, so reads and writes reach SQLite one at a time. The
// cache is best-effort throughout: a cache error
// never fails the pipeline, it only costs a re-chunk.
package cache
