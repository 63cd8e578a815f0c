/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gothumb/internal/log"
	"gothumb/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds the library index under the library root.
	IndexDirName  = ".gothumb"
	IndexFileName = "index.sqlite"
)

// migrations[i] moves the index from schema i to i+1. Append only.
var migrations = [][]string{
	{
		`CREATE TABLE exports (
			id         TEXT    PRIMARY KEY,
			file       TEXT    NOT NULL UNIQUE,
			format     TEXT    NOT NULL,
			bytes      INTEGER NOT NULL,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			created_at TEXT    NOT NULL
		);`,
		`CREATE TABLE scenes (
			export_id  TEXT PRIMARY KEY,
			scene_json BLOB NOT NULL,
			FOREIGN KEY(export_id) REFERENCES exports(id) ON DELETE CASCADE
		);`,
	},
	{
		`CREATE INDEX idx_exports_created ON exports(created_at);`,
		`CREATE TABLE previews (
			export_id  TEXT    PRIMARY KEY,
			w          INTEGER NOT NULL,
			h          INTEGER NOT NULL,
			thumb_blob BLOB    NOT NULL,
			FOREIGN KEY(export_id) REFERENCES exports(id) ON DELETE CASCADE
		);`,
	},
}

// schemaVersion is the schema a fully migrated index reports.
var schemaVersion = len(migrations)

// IndexPath returns the full path to the library's index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// openIndex opens (creating if needed) the WAL-mode index under root and
// migrates it to schemaVersion.
func openIndex(root string) (*sql.DB, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library root is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("root", root))
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; WAL lets readers in other processes proceed.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	steps := []struct {
		name string
		fn   func(context.Context, *sql.DB) error
	}{
		{"wal", func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
			return err
		}},
		{"version", stampVersion},
		{"migrate", migrate},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			_ = db.Close()
			l.Error("index setup failed", slog.String("step", s.name), slog.Any("err", err))
			return nil, fmt.Errorf("index %s: %w", s.name, err)
		}
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

// stampVersion creates the meta tables and records the running app version.
func stampVersion(ctx context.Context, db *sql.DB) error {
	for _, q := range []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (
			id         INTEGER PRIMARY KEY CHECK(id=1),
			schema     INTEGER NOT NULL,
			app        TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx,
		`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES (1, 0, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET app=excluded.app, updated_at=excluded.updated_at`,
		version.String(), now, now)
	return err
}

// migrate applies the pending migrations, one transaction each. An index
// written by a newer build is left alone.
func migrate(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for ; cur < len(migrations); cur++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, q := range migrations[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", cur+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=? WHERE id=1`, cur+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", cur+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", cur+1, err)
		}
	}
	return nil
}

// checkIndex reports whether the index passes quick_check and has its core table.
func checkIndex(ctx context.Context, db *sql.DB) bool {
	var res string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&res); err != nil || !strings.EqualFold(strings.TrimSpace(res), "ok") {
		return false
	}
	_, err := db.ExecContext(ctx, `SELECT 1 FROM exports LIMIT 1;`)
	return err == nil
}

// backupIndexFile copies a damaged index to .gothumb/backups before it is replaced.
func backupIndexFile(indexPath string) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return
	}
	dir := filepath.Join(filepath.Dir(indexPath), "backups")
	if os.MkdirAll(dir, 0o755) != nil {
		return
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format("20060102-150405"))
	_ = os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
