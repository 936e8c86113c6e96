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
	"fmt"
	"sort"
	"strings"

	"inkdraw/internal/canvas"
)

// SearchQuery describes a text search over the text shapes of indexed files.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Path restricts results to a folder prefix. Limit/Offset implement pagination.
type SearchQuery struct {
	Text   string
	Path   string
	Limit  int
	Offset int
}

// SearchResult is one matching text shape.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	DocID   int64
	Path    string
	ShapeID string
	Snippet string
}

// ShapeText is the text content of one shape.
type ShapeText struct {
	ShapeID string
	Text    string
}

// ShapeTexts returns the non-empty text shapes of snap ordered by shape id.
func ShapeTexts(snap canvas.Snapshot) []ShapeText {
	var rows []ShapeText
	for id, r := range snap.Store {
		if r.TypeName != canvas.TypeShape || r.Props == nil {
			continue
		}
		if s := strings.TrimSpace(r.Props.Text); s != "" {
			rows = append(rows, ShapeText{ShapeID: id, Text: s})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ShapeID < rows[j].ShapeID })
	return rows
}

// IndexDrawing replaces the indexed text shapes of path with those found in snap.
func (ix *Index) IndexDrawing(ctx context.Context, path string, snap canvas.Snapshot) error {
	rows := ShapeTexts(snap)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path=?`, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents(path, shape_id, text) VALUES(?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, path, r.ShapeID, r.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search performs full-text search over indexed text shapes.
// When q.Text is empty, it lists indexed shapes with the path filter applied.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT d.doc_id, d.path, d.shape_id, snippet(fts_documents, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.path, d.shape_id, ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if p := strings.TrimSpace(q.Path); p != "" {
		sb.WriteString(` AND d.path LIKE ? ESCAPE '\'` + "\n")
		args = append(args, likePrefix(p))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.path, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Path, &r.ShapeID, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RenamePath moves every index entry of oldPath to newPath.
func (ix *Index) RenamePath(ctx context.Context, oldPath, newPath string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET path=? WHERE path=?`, newPath, oldPath); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rename documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, renameSnapshotsSQL, newPath, oldPath); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rename snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE previews SET path=? WHERE path=?`, newPath, oldPath); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rename previews: %w", err)
	}
	return tx.Commit()
}

// Reindex rebuilds the text index from every file in the vault. Unreadable
// files are skipped and returned in skipped.
func (ix *Index) Reindex(ctx context.Context, v *Vault) (indexed int, skipped []string, err error) {
	files, err := v.List()
	if err != nil {
		return 0, nil, err
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return 0, nil, fmt.Errorf("clear documents: %w", err)
	}
	for _, rel := range files {
		d, rerr := v.ReadDrawing(rel)
		if rerr != nil {
			skipped = append(skipped, rel)
			continue
		}
		if err := ix.IndexDrawing(ctx, rel, d.Tldraw); err != nil {
			return indexed, skipped, err
		}
		indexed++
	}
	return indexed, skipped, nil
}

func likePrefix(s string) string {
	s = strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
	return s + "%"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
