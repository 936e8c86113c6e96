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
	"strings"
	"testing"
)

func TestIndexDrawingAndSearch(t *testing.T) {
	v := newTestVault(t)
	ix := openTestIndex(t, v.Root)
	ctx := context.Background()

	if err := ix.IndexDrawing(ctx, "Ink/a.drawing", sampleDrawing("shopping list milk").Tldraw); err != nil {
		t.Fatalf("IndexDrawing a: %v", err)
	}
	if err := ix.IndexDrawing(ctx, "Ink/sub/b.drawing", sampleDrawing("milk and honey").Tldraw); err != nil {
		t.Fatalf("IndexDrawing b: %v", err)
	}

	res, err := ix.Search(ctx, SearchQuery{Text: "milk"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("results = %d, want 2", len(res))
	}
	if !strings.Contains(res[0].Snippet, "[milk]") {
		t.Fatalf("snippet = %q", res[0].Snippet)
	}
	res, _ = ix.Search(ctx, SearchQuery{Text: "milk", Path: "Ink/sub/"})
	if len(res) != 1 || res[0].Path != "Ink/sub/b.drawing" {
		t.Fatalf("path filtered = %+v", res)
	}

	// reindexing replaces the previous rows
	if err := ix.IndexDrawing(ctx, "Ink/a.drawing", sampleDrawing("groceries").Tldraw); err != nil {
		t.Fatalf("IndexDrawing again: %v", err)
	}
	res, _ = ix.Search(ctx, SearchQuery{Text: "shopping"})
	if len(res) != 0 {
		t.Fatalf("stale rows: %+v", res)
	}
	all, _ := ix.Search(ctx, SearchQuery{})
	if len(all) != 2 {
		t.Fatalf("listing = %d rows", len(all))
	}
}

func TestRenamePathMovesEntries(t *testing.T) {
	v := newTestVault(t)
	ix := openTestIndex(t, v.Root)
	ctx := context.Background()
	_ = ix.IndexDrawing(ctx, "Ink/a.writing", sampleDrawing("hello").Tldraw)
	_ = ix.SaveSnapshot(ctx, "Ink/a.writing", SnapshotComplete, []byte("{}"), v.Now())
	_ = ix.PutPreview(ctx, "Ink/a.writing", PreviewKindSVG, 0, 0, []byte("<svg/>"))

	if err := ix.RenamePath(ctx, "Ink/a.writing", "Ink/a.drawing"); err != nil {
		t.Fatalf("RenamePath: %v", err)
	}
	if s, _ := ix.LatestSnapshot(ctx, "Ink/a.drawing"); s == nil {
		t.Fatalf("history not moved")
	}
	if b, _ := ix.GetPreview(ctx, "Ink/a.drawing", PreviewKindSVG, 0, 0); b == nil {
		t.Fatalf("preview not moved")
	}
	res, _ := ix.Search(ctx, SearchQuery{Text: "hello"})
	if len(res) != 1 || res[0].Path != "Ink/a.drawing" {
		t.Fatalf("documents not moved: %+v", res)
	}
}

func TestReindexFromVault(t *testing.T) {
	v := newTestVault(t)
	ix := openTestIndex(t, v.Root)
	ctx := context.Background()
	_ = v.WriteDrawing("Ink/a.drawing", sampleDrawing("alpha"), false)
	_ = v.WriteDrawing("Ink/b.drawing", sampleDrawing("beta"), false)
	_ = v.WriteFile("Ink/broken.drawing", []byte("nope"), false)

	n, skipped, err := ix.Reindex(ctx, v)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 2 || len(skipped) != 1 || skipped[0] != "Ink/broken.drawing" {
		t.Fatalf("indexed=%d skipped=%v", n, skipped)
	}
	res, _ := ix.Search(ctx, SearchQuery{Text: "beta"})
	if len(res) != 1 {
		t.Fatalf("beta results = %d", len(res))
	}
}
