package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion tracks the cache database schema version.
const CurrentSchemaVersion = "1.0.0"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cache_entries (
    cache_key     TEXT PRIMARY KEY,
    file_path     TEXT NOT NULL,
    file_hash     TEXT NOT NULL,
    data          BLOB NOT NULL,
    data_size     INTEGER NOT NULL,
    created_at    TEXT NOT NULL,
    last_accessed TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_file_path ON cache_entries(file_path);
CREATE INDEX IF NOT EXISTS idx_cache_entries_file_hash ON cache_entries(file_hash);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_cache_entries_last_accessed ON cache_entries(last_accessed);
CREATE INDEX IF NOT EXISTS idx_cache_entries_data_size ON cache_entries(data_size);
`

// applySchema creates the cache tables and records the schema version.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", CurrentSchemaVersion)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}
