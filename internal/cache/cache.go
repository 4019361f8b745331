package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entry doesn't exist.
	ErrNotFound = errors.New("not found")
)

// compressThreshold is the serialized-payload size above which the data blob
// is stored gzip-compressed and base64-wrapped (1 KiB).
const compressThreshold = 1024

// isoFormat is the ISO-8601 layout for the TEXT timestamp columns. The
// fractional part is fixed-width so lexicographic ORDER BY matches time
// order (RFC3339Nano trims trailing zeros and would not).
const isoFormat = "2006-01-02T15:04:05.000000000Z"

// gzipMagic is the base64 prefix of a gzip stream (1f 8b 08).
const gzipMagic = "H4sI"

// evictionHeadroom keeps eviction going until total bytes drop below this
// fraction of the configured cap, so back-to-back sets don't re-trigger it.
const evictionHeadroom = 0.8

// Entry is one cache row: a serialized ChunkSet addressed by
// md5(filePath ":" fileHash).
type Entry struct {
	Key            string
	FilePath       string
	FileHash       string
	SizeBytes      int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// BatchResult partitions a file list by cache presence.
type BatchResult struct {
	Cached   []*types.File
	Uncached []*types.File
	Expired  []*types.File
}

// Store is the durable, content-addressed chunk cache. Writes are serialized
// by an internal mutex; the database handle holds a single connection, so
// reads and writes reach SQLite one at a time.
type Store struct {
	db      *sql.DB
	mem     *memoryLayer
	writeMu sync.Mutex

	ttl          time.Duration
	maxEntries   int
	maxSizeBytes int64
	compression  bool
}

// Key derives the cache key for a (path, hash) pair.
func Key(filePath, fileHash string) string {
	sum := md5.Sum([]byte(filePath + ":" + fileHash))
	return hex.EncodeToString(sum[:])
}

// openDatabase opens the cache database in WAL mode with a single open
// connection shared by readers and the writer.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Open creates or opens the chunk cache at cfg.DBPath.
func Open(cfg config.CacheConfig) (*Store, error) {
	db, err := openDatabase(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open cache db: %v", types.ErrCache, err)
	}
	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrCache, err)
	}
	return &Store{
		db:           db,
		mem:          newMemoryLayer(memoryLayerSize(cfg.MaxEntries)),
		ttl:          time.Duration(cfg.TTLHours) * time.Hour,
		maxEntries:   cfg.MaxEntries,
		maxSizeBytes: cfg.MaxSizeBytes,
		compression:  cfg.Compression,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mem.Purge()
	return s.db.Close()
}

// Get returns the ChunkSet stored for (path, hash), or ErrNotFound. A hit
// refreshes the entry's last-accessed time. Expired entries are treated as
// absent and deleted lazily.
func (s *Store) Get(ctx context.Context, filePath, fileHash string) (*types.ChunkSet, error) {
	key := Key(filePath, fileHash)

	if cs, ok := s.mem.Get(key); ok {
		s.touch(ctx, key)
		return cs, nil
	}

	var blob []byte
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT data, created_at FROM cache_entries WHERE cache_key = ?", key).
		Scan(&blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", types.ErrCache, filePath, err)
	}

	if s.expired(createdAt) {
		s.deleteKey(ctx, key)
		return nil, ErrNotFound
	}

	cs, err := decodePayload(blob)
	if err != nil {
		// A payload that no longer decodes is treated as a miss and purged.
		log.Warn().Err(err).Str("path", filePath).Msg("cache: corrupt payload, evicting")
		s.deleteKey(ctx, key)
		return nil, ErrNotFound
	}

	s.touch(ctx, key)
	s.mem.Add(key, cs)
	return cs, nil
}

// Set upserts the ChunkSet for (path, hash) and enforces the size limits.
// Setting the same value twice leaves exactly one row.
func (s *Store) Set(ctx context.Context, filePath, fileHash string, cs *types.ChunkSet) error {
	blob, err := encodePayload(cs, s.compression)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrCache, filePath, err)
	}

	key := Key(filePath, fileHash)
	now := time.Now().UTC().Format(isoFormat)

	s.writeMu.Lock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, file_path, file_hash, data, data_size, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			data_size = excluded.data_size,
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed
	`, key, filePath, fileHash, blob, len(blob), now, now)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", types.ErrCache, filePath, err)
	}

	s.mem.Add(key, cs)
	return s.EnforceLimits(ctx)
}

// Has reports whether an unexpired entry exists for (path, hash). Expired
// entries are deleted lazily.
func (s *Store) Has(ctx context.Context, filePath, fileHash string) (bool, error) {
	key := Key(filePath, fileHash)
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM cache_entries WHERE cache_key = ?", key).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: has %s: %v", types.ErrCache, filePath, err)
	}
	if s.expired(createdAt) {
		s.deleteKey(ctx, key)
		return false, nil
	}
	return true, nil
}

// BatchCheck partitions files into cached, uncached, and expired. Expired
// files are work upstream reprocesses just like uncached ones, but they
// appear only in Expired (not in Uncached) so callers can count them
// separately.
func (s *Store) BatchCheck(ctx context.Context, files []*types.File) (*BatchResult, error) {
	res := &BatchResult{}
	for _, f := range files {
		key := Key(f.RelPath, f.Hash)
		var createdAt string
		err := s.db.QueryRowContext(ctx,
			"SELECT created_at FROM cache_entries WHERE cache_key = ?", key).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			res.Uncached = append(res.Uncached, f)
		case err != nil:
			return nil, fmt.Errorf("%w: batch check %s: %v", types.ErrCache, f.RelPath, err)
		case s.expired(createdAt):
			s.deleteKey(ctx, key)
			res.Expired = append(res.Expired, f)
		default:
			res.Cached = append(res.Cached, f)
		}
	}
	return res, nil
}

// InvalidateFile deletes every entry for the path, across all hashes.
func (s *Store) InvalidateFile(ctx context.Context, filePath string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT cache_key FROM cache_entries WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", types.ErrCache, filePath, err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return fmt.Errorf("%w: invalidate %s: %v", types.ErrCache, filePath, err)
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", types.ErrCache, filePath, err)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE file_path = ?", filePath); err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", types.ErrCache, filePath, err)
	}
	for _, k := range keys {
		s.mem.Remove(k)
	}
	return nil
}

// EnforceLimits evicts entries in LRU order (last_accessed ascending) until
// the entry count fits maxEntries and total bytes fit under the headroom
// fraction of maxSizeBytes.
func (s *Store) EnforceLimits(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	count, total, err := s.usage(ctx)
	if err != nil {
		return err
	}
	byteCap := int64(float64(s.maxSizeBytes) * evictionHeadroom)
	if count <= s.maxEntries && total <= byteCap {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT cache_key, data_size FROM cache_entries ORDER BY last_accessed ASC")
	if err != nil {
		return fmt.Errorf("%w: enforce limits: %v", types.ErrCache, err)
	}
	type victim struct {
		key  string
		size int64
	}
	var victims []victim
	remainingCount, remainingBytes := count, total
	for rows.Next() {
		if remainingCount <= s.maxEntries && remainingBytes <= byteCap {
			break
		}
		var v victim
		if err := rows.Scan(&v.key, &v.size); err != nil {
			rows.Close()
			return fmt.Errorf("%w: enforce limits: %v", types.ErrCache, err)
		}
		victims = append(victims, v)
		remainingCount--
		remainingBytes -= v.size
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: enforce limits: %v", types.ErrCache, err)
	}

	for _, v := range victims {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM cache_entries WHERE cache_key = ?", v.key); err != nil {
			return fmt.Errorf("%w: evict %s: %v", types.ErrCache, v.key, err)
		}
		s.mem.Remove(v.key)
	}
	if len(victims) > 0 {
		log.Debug().
			Int("evicted", len(victims)).
			Str("freed", humanize.Bytes(uint64(total-remainingBytes))).
			Msg("cache: LRU eviction")
	}
	return nil
}

// CleanExpired deletes every row older than the TTL.
func (s *Store) CleanExpired(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := time.Now().UTC().Add(-s.ttl).Format(isoFormat)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("%w: clean expired: %v", types.ErrCache, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		// The memory layer may still hold purged sets; drop them wholesale.
		s.mem.Purge()
		log.Debug().Int64("deleted", n).Msg("cache: expired entries removed")
	}
	return nil
}

// StartJanitor runs CleanExpired and EnforceLimits on the given interval
// until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.CleanExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("cache: janitor clean failed")
				}
				if err := s.EnforceLimits(ctx); err != nil {
					log.Warn().Err(err).Msg("cache: janitor eviction failed")
				}
			}
		}
	}()
}

// Stats returns the current entry count and total payload bytes.
func (s *Store) Stats(ctx context.Context) (entries int, totalBytes int64, err error) {
	return s.usage(ctx)
}

// Entries returns all rows, most recently accessed first. Debug surface.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_key, file_path, file_hash, data_size, created_at, last_accessed
		FROM cache_entries ORDER BY last_accessed DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", types.ErrCache, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, accessed string
		if err := rows.Scan(&e.Key, &e.FilePath, &e.FileHash, &e.SizeBytes, &created, &accessed); err != nil {
			return nil, fmt.Errorf("%w: list entries: %v", types.ErrCache, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.LastAccessedAt, _ = time.Parse(time.RFC3339Nano, accessed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) usage(ctx context.Context) (int, int64, error) {
	var count int
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(data_size), 0) FROM cache_entries").Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: usage: %v", types.ErrCache, err)
	}
	return count, total.Int64, nil
}

func (s *Store) expired(createdAt string) bool {
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return true
	}
	return time.Since(created) > s.ttl
}

func (s *Store) touch(ctx context.Context, key string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := time.Now().UTC().Format(isoFormat)
	if _, err := s.db.ExecContext(ctx,
		"UPDATE cache_entries SET last_accessed = ? WHERE cache_key = ?", now, key); err != nil {
		log.Warn().Err(err).Msg("cache: touch failed")
	}
}

func (s *Store) deleteKey(ctx context.Context, key string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE cache_key = ?", key); err != nil {
		log.Warn().Err(err).Msg("cache: lazy delete failed")
	}
	s.mem.Remove(key)
}

// encodePayload serializes a ChunkSet, gzip+base64-wrapping payloads over the
// threshold when compression is enabled.
func encodePayload(cs *types.ChunkSet, compression bool) ([]byte, error) {
	data, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	if !compression || len(data) <= compressThreshold {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// decodePayload reverses encodePayload, sniffing the base64 gzip prefix.
func decodePayload(blob []byte) (*types.ChunkSet, error) {
	if bytes.HasPrefix(blob, []byte(gzipMagic)) {
		decoded, err := base64.StdEncoding.DecodeString(string(blob))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(decoded))
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		blob, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("read gzip: %w", err)
		}
	}
	var cs types.ChunkSet
	if err := json.Unmarshal(blob, &cs); err != nil {
		return nil, fmt.Errorf("unmarshal chunk set: %w", err)
	}
	return &cs, nil
}
