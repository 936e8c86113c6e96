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
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestIndex(t *testing.T, root string) *Index {
	t.Helper()
	ix, err := OpenIndex(root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestIndexInitCreatesWALAndTables(t *testing.T) {
	root := t.TempDir()
	ix := openTestIndex(t, root)
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := ix.DB().QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := ix.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','documents','fts_documents','snapshots','previews')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 6 {
		t.Fatalf("expected 6 tables, got %d", cnt)
	}
	var schema int
	if err := ix.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil || schema != schemaVersion {
		t.Fatalf("schema = %d, err = %v", schema, err)
	}
}

// An index created before save kinds were recorded gains the kind column.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	root := t.TempDir()
	idx := IndexPath(root)
	if err := os.MkdirAll(filepath.Dir(idx), 0o755); err != nil {
		t.Fatalf("mk .ink: %v", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(idx))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE snapshots (id INTEGER PRIMARY KEY, path TEXT NOT NULL, ts TEXT NOT NULL, blob BLOB NOT NULL);`,
		`INSERT INTO snapshots(path, ts, blob) VALUES('Ink/old.drawing', '2020-01-01T00:00:00.000000000Z', x'7b7d');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	ix := openTestIndex(t, root)
	var schema int
	if err := ix.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != 2 {
		t.Fatalf("expected schema 2 after migration, got %d", schema)
	}
	s, err := ix.LatestSnapshot(ctx, "Ink/old.drawing")
	if err != nil || s == nil {
		t.Fatalf("LatestSnapshot: %v %v", s, err)
	}
	if s.Kind != SnapshotComplete {
		t.Fatalf("migrated kind = %q", s.Kind)
	}
}

func TestCheckIndex_RecreatesCorrupt(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rebuilt, err := CheckIndex(ctx, root)
	if err != nil || rebuilt {
		t.Fatalf("healthy index: rebuilt=%v err=%v", rebuilt, err)
	}
	if err := os.WriteFile(IndexPath(root), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	_ = os.Remove(IndexPath(root) + "-wal")
	_ = os.Remove(IndexPath(root) + "-shm")
	rebuilt, err = CheckIndex(ctx, root)
	if err != nil {
		t.Fatalf("CheckIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	entries, _ := os.ReadDir(filepath.Join(root, IndexDirName, "backups"))
	if len(entries) == 0 {
		t.Fatalf("expected backup of the broken index")
	}
}

func TestSnapshotsSaveListPrune(t *testing.T) {
	ix := openTestIndex(t, t.TempDir())
	ctx := context.Background()
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		kind := SnapshotIncremental
		if i%2 == 1 {
			kind = SnapshotComplete
		}
		if err := ix.SaveSnapshot(ctx, "Ink/a.drawing", kind, []byte(fmt.Sprintf("v%d", i)), base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	_ = ix.SaveSnapshot(ctx, "Ink/b.drawing", "", []byte("other"), base)

	latest, err := ix.LatestSnapshot(ctx, "Ink/a.drawing")
	if err != nil || latest == nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(latest.Blob) != "v4" || !latest.TS.Equal(base.Add(4*time.Second)) {
		t.Fatalf("latest = %s at %v", latest.Blob, latest.TS)
	}
	list, err := ix.ListSnapshots(ctx, "Ink/a.drawing", 3)
	if err != nil || len(list) != 3 || string(list[2].Blob) != "v2" {
		t.Fatalf("ListSnapshots = %+v, %v", list, err)
	}
	n, err := ix.PruneSnapshots(ctx, "Ink/a.drawing", 2)
	if err != nil || n != 3 {
		t.Fatalf("PruneSnapshots = %d, %v", n, err)
	}
	other, _ := ix.LatestSnapshot(ctx, "Ink/b.drawing")
	if other == nil || other.Kind != SnapshotComplete {
		t.Fatalf("other file history touched: %+v", other)
	}
	none, err := ix.LatestSnapshot(ctx, "Ink/none.drawing")
	if err != nil || none != nil {
		t.Fatalf("missing history = %+v, %v", none, err)
	}
}

func TestPreviewsPutGetAndEvict(t *testing.T) {
	ix := openTestIndex(t, t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.Setenv("INK_PREVIEWS_MAX_BYTES", "64")

	for i, w := range []int{100, 200, 300} {
		if err := ix.PutPreview(ctx, "Ink/a.drawing", PreviewKindPNG, w, w, make([]byte, 40)); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	total, err := ix.TotalPreviewBytes(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total > 64 {
		t.Fatalf("expected eviction to <=64 bytes, got %d", total)
	}
	b, err := ix.GetPreview(ctx, "Ink/a.drawing", PreviewKindPNG, 300, 300)
	if err != nil || len(b) != 40 {
		t.Fatalf("newest preview evicted: %d bytes, %v", len(b), err)
	}
	if err := ix.PutPreview(ctx, "Ink/a.drawing", "gif", 1, 1, []byte("x")); err == nil {
		t.Fatalf("expected invalid kind error")
	}
	if err := ix.DeletePreviews(ctx, "Ink/a.drawing"); err != nil {
		t.Fatalf("DeletePreviews: %v", err)
	}
	if total, _ := ix.TotalPreviewBytes(ctx); total != 0 {
		t.Fatalf("total after delete = %d", total)
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	ix := openTestIndex(t, t.TempDir())
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("<svg/>"), nil }
	for i := 0; i < 2; i++ {
		b, err := ix.GetOrCreatePreview(ctx, "Ink/a.drawing", PreviewKindSVG, 0, 0, gen)
		if err != nil || string(b) != "<svg/>" {
			t.Fatalf("getOrCreate %d: %q %v", i, b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator should be called once, got %d", calls)
	}
}

func TestMaxPreviewsBytesFromEnv(t *testing.T) {
	t.Setenv("INK_PREVIEWS_MAX_BYTES", "nope")
	if MaxPreviewsBytesFromEnv() != 64*1024*1024 {
		t.Fatalf("invalid value should fall back to default")
	}
	t.Setenv("INK_PREVIEWS_MAX_BYTES", "1024")
	if MaxPreviewsBytesFromEnv() != 1024 {
		t.Fatalf("env value ignored")
	}
}
