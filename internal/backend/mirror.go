/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend mirrors saved drawings into Postgres and serves them over a
// small read API.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	ilog "inkdraw/internal/log"
	"inkdraw/internal/pagefile"
	"inkdraw/internal/storage"
)

// ErrNotFound is returned when a drawing has not been mirrored.
var ErrNotFound = errors.New("backend: drawing not found")

// Mirror writes every persisted drawing into Postgres.
type Mirror struct {
	db  *sql.DB
	log *slog.Logger
}

// Drawing is the listing projection of a mirrored file.
type Drawing struct {
	ID              int64     `json:"id"`
	Path            string    `json:"path"`
	Version         int64     `json:"version"`
	PreviewOutdated bool      `json:"preview_outdated"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Revision is one stored payload of a drawing.
type Revision struct {
	Path      string    `json:"path"`
	Version   int64     `json:"version"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenMirror connects to dsn, checks the connection and applies migrations.
func OpenMirror(ctx context.Context, dsn string) (*Mirror, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("backend: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewMirror(db), nil
}

// NewMirror wraps an already migrated database.
func NewMirror(db *sql.DB) *Mirror {
	return &Mirror{db: db, log: ilog.WithComponent("backend")}
}

// DB exposes the underlying database.
func (m *Mirror) DB() *sql.DB { return m.db }

// Close releases the database.
func (m *Mirror) Close() error { return m.db.Close() }

// Put upserts the drawing at path, appends a revision and refreshes its
// searchable text shapes. It returns the new version.
func (m *Mirror) Put(ctx context.Context, path, kind string, data pagefile.InkFileData) (int64, error) {
	payload, err := pagefile.Marshal(data)
	if err != nil {
		return 0, err
	}
	if kind == "" {
		kind = storage.SnapshotComplete
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id, version int64
	err = tx.QueryRowContext(ctx, `INSERT INTO drawings(path, payload, preview_outdated)
		VALUES($1, $2, $3)
		ON CONFLICT(path) DO UPDATE SET payload = EXCLUDED.payload, preview_outdated = EXCLUDED.preview_outdated,
			version = drawings.version + 1, updated_at = now()
		RETURNING id, version`, path, string(payload), data.PreviewOutdated()).Scan(&id, &version)
	if err != nil {
		return 0, fmt.Errorf("upsert drawing: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO drawing_revisions(drawing_id, version, kind, payload) VALUES($1, $2, $3, $4)`,
		id, version, kind, string(payload)); err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE drawing_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	for _, st := range storage.ShapeTexts(data.Tldraw) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(drawing_id, shape_id, raw_text) VALUES($1, $2, $3)`, id, st.ShapeID, st.Text); err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	m.log.Debug("mirrored", slog.String("file", path), slog.Int64("version", version), slog.String("kind", kind))
	return version, nil
}

// List returns every mirrored drawing, most recently updated first.
func (m *Mirror) List(ctx context.Context) ([]Drawing, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, path, version, preview_outdated, updated_at FROM drawings ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Drawing
	for rows.Next() {
		var d Drawing
		if err := rows.Scan(&d.ID, &d.Path, &d.Version, &d.PreviewOutdated, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Latest returns the newest revision of path.
func (m *Mirror) Latest(ctx context.Context, path string) (*Revision, error) {
	r := Revision{Path: path}
	var payload string
	err := m.db.QueryRowContext(ctx, `SELECT r.version, r.kind, r.payload::text, r.created_at
		FROM drawing_revisions r JOIN drawings d ON d.id = r.drawing_id
		WHERE d.path = $1 ORDER BY r.version DESC, r.id DESC LIMIT 1`, path).Scan(&r.Version, &r.Kind, &payload, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest revision: %w", err)
	}
	r.Payload = []byte(payload)
	return &r, nil
}

// PruneRevisions keeps the newest keep revisions of path.
func (m *Mirror) PruneRevisions(ctx context.Context, path string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := m.db.ExecContext(ctx, `DELETE FROM drawing_revisions WHERE drawing_id = (SELECT id FROM drawings WHERE path = $1)
		AND id NOT IN (
			SELECT r.id FROM drawing_revisions r JOIN drawings d ON d.id = r.drawing_id
			WHERE d.path = $1 ORDER BY r.version DESC, r.id DESC LIMIT $2)`, path, keep)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}

// Rename moves a mirrored drawing to a new path.
func (m *Mirror) Rename(ctx context.Context, oldPath, newPath string) error {
	res, err := m.db.ExecContext(ctx, `UPDATE drawings SET path = $1, updated_at = now() WHERE path = $2`, newPath, oldPath)
	if err != nil {
		return fmt.Errorf("rename drawing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
