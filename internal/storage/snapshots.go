/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Save kinds recorded in the history.
const (
	SnapshotIncremental = "incremental"
	SnapshotComplete    = "complete"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(path, ts, kind, blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT id, path, ts, kind, blob FROM snapshots WHERE path = ? ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT id, path, ts, kind, blob FROM snapshots WHERE path = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE path = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE path = ? ORDER BY id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const renameSnapshotsSQL = `UPDATE snapshots SET path = ? WHERE path = ?`

// Snapshot is one entry of a file's save history.
type Snapshot struct {
	ID   int64
	Path string
	TS   time.Time
	Kind string
	Blob []byte
}

// SaveSnapshot appends a saved file body to the history of path.
func (ix *Index) SaveSnapshot(ctx context.Context, path, kind string, blob []byte, ts time.Time) error {
	if path == "" {
		return errors.New("snapshot path is required")
	}
	if kind == "" {
		kind = SnapshotComplete
	}
	_, err := ix.db.ExecContext(ctx, insertSnapshotSQL, path, formatTS(ts), kind, blob)
	return err
}

// LatestSnapshot returns the newest history entry for path, or nil if none.
func (ix *Index) LatestSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	s, err := scanSnapshot(ix.db.QueryRowContext(ctx, selectLatestSnapshotSQL, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnapshots returns up to limit most recent history entries for path, newest first.
func (ix *Index) ListSnapshots(ctx context.Context, path string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, listSnapshotsSQL, path, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast entries for path and deletes older ones.
func (ix *Index) PruneSnapshots(ctx context.Context, path string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := ix.db.ExecContext(ctx, pruneOldSnapshotsSQL, path, path, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (Snapshot, error) {
	var s Snapshot
	var ts string
	if err := r.Scan(&s.ID, &s.Path, &ts, &s.Kind, &s.Blob); err != nil {
		return Snapshot{}, err
	}
	s.TS = parseTS(ts)
	return s, nil
}
