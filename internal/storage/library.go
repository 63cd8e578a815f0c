/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"gothumb/internal/export"
	applog "gothumb/internal/log"
	"gothumb/internal/scene"
)

// ErrNotFound is returned for unknown export ids.
var ErrNotFound = errors.New("export not found")

// createdLayout keeps created_at fixed-width so it sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one indexed export.
type Entry struct {
	ID        string        `json:"id"`
	File      string        `json:"file"`
	Format    export.Format `json:"format"`
	Bytes     int64         `json:"bytes"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	CreatedAt time.Time     `json:"createdAt"`
}

// SaveRequest is an encoded export plus what it was rendered from.
type SaveRequest struct {
	Data   []byte
	Format export.Format
	// Scene is the document JSON; optional.
	Scene []byte
	// Preview is a small PNG for listings; optional.
	Preview []byte
	At      time.Time
}

// Library is an exports directory with its index.
type Library struct {
	Root string
	db   *sql.DB
	log  *slog.Logger
}

// OpenLibrary opens or creates the library at root. A corrupt index is backed
// up, removed and rebuilt from the export files.
func OpenLibrary(ctx context.Context, root string) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library root is required")
	}
	l := applog.WithComponent("storage").With(slog.String("root", root))
	db, err := openIndex(root)
	if err == nil && !checkIndex(ctx, db) {
		_ = db.Close()
		err = errors.New("index check failed")
	}
	if err != nil {
		l.Warn("rebuilding export index", slog.Any("err", err))
		path := IndexPath(root)
		backupIndexFile(path)
		_ = os.Remove(path)
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
		if db, err = openIndex(root); err != nil {
			return nil, err
		}
		lib := &Library{Root: root, db: db, log: l}
		if _, err := lib.Rescan(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return lib, nil
	}
	return &Library{Root: root, db: db, log: l}, nil
}

func (lib *Library) Close() error { return lib.db.Close() }

// language=SQL
// dialect=SQLite
const insertExportSQL = `INSERT INTO exports(id, file, format, bytes, width, height, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectExportCols = `SELECT id, file, format, bytes, width, height, created_at FROM exports`

// Save writes the export file and records it. The file name is
// thumb_<unixms>.<ext>; a clash within the same millisecond gets a suffix.
func (lib *Library) Save(ctx context.Context, req SaveRequest) (Entry, error) {
	if len(req.Data) == 0 {
		return Entry{}, errors.New("save export: no data")
	}
	f := req.Format
	if f == "" {
		f = export.PNG
	}
	if _, err := export.ParseFormat(string(f)); err != nil {
		return Entry{}, err
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	name, err := lib.writeUnique(export.FileName(f, at), req.Data)
	if err != nil {
		return Entry{}, err
	}
	w, h := dimensions(f, req.Data)
	e := Entry{ID: uuid.NewString(), File: name, Format: f, Bytes: int64(len(req.Data)), Width: w, Height: h, CreatedAt: at.UTC()}

	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		_ = os.Remove(filepath.Join(lib.Root, name))
		return Entry{}, err
	}
	rollback := func(err error) (Entry, error) {
		_ = tx.Rollback()
		_ = os.Remove(filepath.Join(lib.Root, name))
		return Entry{}, err
	}
	if _, err := tx.ExecContext(ctx, insertExportSQL, e.ID, e.File, string(e.Format), e.Bytes, e.Width, e.Height,
		e.CreatedAt.Format(createdLayout)); err != nil {
		return rollback(fmt.Errorf("insert export: %w", err))
	}
	if len(req.Scene) > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO scenes(export_id, scene_json) VALUES (?, ?)`, e.ID, req.Scene); err != nil {
			return rollback(fmt.Errorf("insert scene: %w", err))
		}
	}
	if len(req.Preview) > 0 {
		pw, ph := dimensions(export.PNG, req.Preview)
		if _, err := tx.ExecContext(ctx, `INSERT INTO previews(export_id, w, h, thumb_blob) VALUES (?, ?, ?, ?)`, e.ID, pw, ph, req.Preview); err != nil {
			return rollback(fmt.Errorf("insert preview: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return rollback(err)
	}
	lib.log.Info("export saved", slog.String("file", name), slog.Int64("bytes", e.Bytes))
	return e, nil
}

func (lib *Library) writeUnique(name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < 100; i++ {
		cand := name
		if i > 0 {
			cand = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(lib.Root, cand), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return "", err
		}
		return cand, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s", name)
}

// dimensions reads the pixel size of a raster export; PDF pages always carry
// the authoring size.
func dimensions(f export.Format, data []byte) (int, int) {
	if f == export.PDF {
		return scene.Width, scene.Height
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

type rowScanner interface{ Scan(dest ...any) error }

func scanEntry(r rowScanner) (Entry, error) {
	var e Entry
	var format, created string
	if err := r.Scan(&e.ID, &e.File, &format, &e.Bytes, &e.Width, &e.Height, &created); err != nil {
		return Entry{}, err
	}
	e.Format = export.Format(format)
	e.CreatedAt, _ = time.Parse(createdLayout, created)
	return e, nil
}

// List returns the newest exports first. limit <= 0 means all.
func (lib *Library) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := lib.db.QueryContext(ctx, selectExportCols+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id.
func (lib *Library) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scanEntry(lib.db.QueryRowContext(ctx, selectExportCols+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e, err
}

// Path is the absolute file path of e.
func (lib *Library) Path(e Entry) string { return filepath.Join(lib.Root, e.File) }

// Scene returns the stored document JSON of an export, or nil.
func (lib *Library) Scene(ctx context.Context, id string) ([]byte, error) {
	return lib.blob(ctx, `SELECT scene_json FROM scenes WHERE export_id = ?`, id)
}

// Preview returns the stored preview PNG of an export, or nil.
func (lib *Library) Preview(ctx context.Context, id string) ([]byte, error) {
	return lib.blob(ctx, `SELECT thumb_blob FROM previews WHERE export_id = ?`, id)
}

func (lib *Library) blob(ctx context.Context, q, id string) ([]byte, error) {
	var b []byte
	err := lib.db.QueryRowContext(ctx, q, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// Delete removes the export file and its records.
func (lib *Library) Delete(ctx context.Context, id string) error {
	e, err := lib.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := lib.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id); err != nil {
		return err
	}
	if err := os.Remove(lib.Path(e)); err != nil && !errors.Is(err, os.ErrNotExist) {
		lib.log.Warn("remove export file failed", slog.String("file", e.File), slog.Any("err", err))
	}
	return nil
}

// Rescan indexes export files in the root that have no record yet and
// drops records whose file is gone. It returns the number of added entries.
func (lib *Library) Rescan(ctx context.Context) (int, error) {
	known := map[string]bool{}
	all, err := lib.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	for _, e := range all {
		if _, err := os.Stat(lib.Path(e)); errors.Is(err, os.ErrNotExist) {
			if _, err := lib.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, e.ID); err != nil {
				return 0, err
			}
			continue
		}
		known[e.File] = true
	}
	ents, err := os.ReadDir(lib.Root)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, de := range ents {
		name := de.Name()
		if de.IsDir() || known[name] || !strings.HasPrefix(name, "thumb_") {
			continue
		}
		f, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(lib.Root, name))
		if err != nil {
			continue
		}
		w, h := dimensions(f, data)
		if _, err := lib.db.ExecContext(ctx, insertExportSQL, uuid.NewString(), name, string(f), info.Size(), w, h,
			info.ModTime().UTC().Format(createdLayout)); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		lib.log.Info("indexed export files", slog.Int("added", added))
	}
	return added, nil
}
