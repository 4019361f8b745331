package merkle

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// SchemaVersion is the snapshot wire-format version. Snapshots carrying a
// different version are discarded on load.
const SchemaVersion = "2.0"

// SnapshotFileName is the well-known file name under the cache directory.
const SnapshotFileName = "merkle-state.json"

// gzipMagic marks a gzip+base64 wrapped snapshot file.
const gzipMagic = "H4sI" // base64 of the gzip header bytes 1f 8b 08

// FileEntry is the per-file record inside a snapshot.
type FileEntry struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Snapshot is the persisted state used to short-circuit diffing between runs.
type Snapshot struct {
	SchemaVersion string               `json:"schemaVersion"`
	RootHash      string               `json:"rootHash"`
	Timestamp     int64                `json:"timestamp"` // unix milliseconds
	WorkspacePath string               `json:"workspacePath"`
	FileHashMap   map[string]FileEntry `json:"fileHashMap"`
}

// Store builds trees for scan results and persists snapshots under cacheDir.
type Store struct {
	cacheDir string
	compress bool
}

// NewStore creates a snapshot store rooted at cacheDir. When compress is set,
// snapshots are written gzip-compressed and base64-wrapped.
func NewStore(cacheDir string, compress bool) *Store {
	return &Store{cacheDir: cacheDir, compress: compress}
}

// Snapshot builds the tree over fileHashes and assembles a persistable
// snapshot for the workspace.
func (s *Store) Snapshot(workspacePath string, fileHashes map[string]string, sizes map[string]int64) *Snapshot {
	tree := Build(fileHashes)
	m := make(map[string]FileEntry, len(fileHashes))
	for p, h := range fileHashes {
		m[p] = FileEntry{Hash: h, Size: sizes[p]}
	}
	return &Snapshot{
		SchemaVersion: SchemaVersion,
		RootHash:      tree.RootHash(),
		Timestamp:     time.Now().UnixMilli(),
		WorkspacePath: workspacePath,
		FileHashMap:   m,
	}
}

// Save writes the snapshot to <cacheDir>/merkle-state.json.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if s.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compress snapshot: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress snapshot: %w", err)
		}
		data = []byte(base64.StdEncoding.EncodeToString(buf.Bytes()))
	}

	path := filepath.Join(s.cacheDir, SnapshotFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads the previous snapshot. A missing, corrupt, or version-mismatched
// snapshot returns nil (forcing an initial-build diff) — never an error for
// the corrupt case, only a warning.
func (s *Store) Load() (*Snapshot, error) {
	path := filepath.Join(s.cacheDir, SnapshotFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if bytes.HasPrefix(data, []byte(gzipMagic)) {
		decoded, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("merkle: snapshot base64 corrupt, rebuilding")
			return nil, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(decoded))
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("merkle: snapshot gzip corrupt, rebuilding")
			return nil, nil
		}
		data, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("merkle: snapshot gzip corrupt, rebuilding")
			return nil, nil
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("merkle: snapshot corrupt, rebuilding")
		return nil, nil
	}
	if snap.SchemaVersion != SchemaVersion {
		log.Warn().
			Str("have", snap.SchemaVersion).
			Str("want", SchemaVersion).
			Msg("merkle: snapshot schema mismatch, discarding")
		return nil, nil
	}
	return &snap, nil
}
