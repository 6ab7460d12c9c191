// cache_store.go: SQLite persistence for last known placeholder values
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCacheStore persists cache entries in a single SQLite table.
type SQLiteCacheStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteCacheStore opens (or creates) the cache database at path.
func OpenSQLiteCacheStore(path string) (*SQLiteCacheStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, NewCacheStoreError("failed to create cache directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, NewCacheStoreError("failed to open database", err)
	}
	// A single connection keeps writes serialized
	db.SetMaxOpenConns(1)

	s := &SQLiteCacheStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, NewCacheStoreError("failed to run migrations", err)
	}
	return s, nil
}

func (s *SQLiteCacheStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS placeholder_cache (
		token TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		plugin_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// Load returns every persisted entry.
func (s *SQLiteCacheStore) Load() ([]CacheEntry, error) {
	rows, err := s.db.Query(`SELECT token, value, plugin_id, updated_at FROM placeholder_cache ORDER BY token`)
	if err != nil {
		return nil, NewCacheStoreError("failed to query cache", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var updated int64
		if err := rows.Scan(&e.Token, &e.Value, &e.PluginID, &updated); err != nil {
			return nil, NewCacheStoreError("failed to scan cache row", err)
		}
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewCacheStoreError("failed to read cache rows", err)
	}
	return entries, nil
}

// Save upserts one entry.
func (s *SQLiteCacheStore) Save(entry CacheEntry) error {
	_, err := s.db.Exec(`INSERT INTO placeholder_cache (token, value, plugin_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			value = excluded.value,
			plugin_id = excluded.plugin_id,
			updated_at = excluded.updated_at`,
		entry.Token, entry.Value, entry.PluginID, entry.UpdatedAt.UnixNano())
	if err != nil {
		return NewCacheStoreError("failed to save cache entry", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteCacheStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteCacheStore) Path() string {
	return s.path
}
