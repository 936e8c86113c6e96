/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"context"
	"strings"
	"testing"
)

func collect(s *Store, opts ListenOptions) (*[]ChangeEvent, func()) {
	var evs []ChangeEvent
	unsub := s.Listen(func(ev ChangeEvent) { evs = append(evs, ev) }, opts)
	return &evs, unsub
}

func TestStore_DefaultsAndSnapshotScope(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	snap := s.Snapshot()
	if _, ok := snap.Store[DocumentID]; !ok {
		t.Fatalf("document record missing from snapshot")
	}
	if _, ok := snap.Store[PageID]; !ok {
		t.Fatalf("page record missing from snapshot")
	}
	if _, ok := snap.Store[CameraID]; ok {
		t.Fatalf("session record leaked into snapshot")
	}
	if snap.Schema.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("schema version = %d", snap.Schema.SchemaVersion)
	}
	if _, ok := s.Get(PointerID); !ok {
		t.Fatalf("pointer record missing")
	}
}

func TestStore_StrokeLifecycleEvents(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	evs, unsub := collect(s, ListenOptions{Source: "user", Scope: "all"})
	defer unsub()

	id := s.BeginStroke(10, 10, StrokeStyle{Color: "black", Size: "m"})
	if len(*evs) != 1 {
		t.Fatalf("events after begin = %d", len(*evs))
	}
	r, ok := (*evs)[0].Changes.Added[id]
	if !ok || !r.IsDraw() || r.IsComplete() {
		t.Fatalf("unexpected added record: %+v ok=%v", r, ok)
	}

	if !s.ExtendStroke(id, 20, 30) {
		t.Fatalf("extend failed")
	}
	ev := (*evs)[1]
	u, ok := ev.Changes.Updated[id]
	if !ok {
		t.Fatalf("stroke update missing: %+v", ev.Changes)
	}
	if got := len(u.To.Props.Segments[0].Points); got != 2 {
		t.Fatalf("points = %d, want 2", got)
	}
	if got := len(u.From.Props.Segments[0].Points); got != 1 {
		t.Fatalf("from points = %d, want 1", got)
	}
	if _, ok := ev.Changes.Updated[PointerID]; !ok {
		t.Fatalf("pointer update missing")
	}

	s.CompleteStroke(id)
	u = (*evs)[2].Changes.Updated[id]
	if !u.To.IsComplete() || u.From.IsComplete() {
		t.Fatalf("completion transition wrong: from=%v to=%v", u.From.IsComplete(), u.To.IsComplete())
	}

	if got := s.CurrentPageShapeIDs(); len(got) != 1 || got[0] != id {
		t.Fatalf("shape ids = %v", got)
	}
	if s.ExtendStroke("shape:missing", 1, 1) {
		t.Fatalf("extend on missing shape succeeded")
	}
}

func TestStore_ListenFilters(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	docOnly, u1 := collect(s, ListenOptions{Source: "user", Scope: "document"})
	defer u1()
	remote, u2 := collect(s, ListenOptions{Source: "remote"})
	defer u2()

	s.MovePointer(5, 5)
	if len(*docOnly) != 0 {
		t.Fatalf("document listener saw session change")
	}
	s.AddShape(Record{Type: KindGeo, Props: &Props{Geo: "rectangle", W: 10, H: 10}})
	if len(*docOnly) != 1 {
		t.Fatalf("document listener events = %d", len(*docOnly))
	}
	if len(*remote) != 0 {
		t.Fatalf("remote listener saw user change")
	}
	s.Load(Snapshot{}, SourceRemote)
	if len(*remote) != 1 {
		t.Fatalf("remote listener events = %d", len(*remote))
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	evs, unsub := collect(s, ListenOptions{})
	unsub()
	unsub()
	s.MovePointer(1, 2)
	if len(*evs) != 0 {
		t.Fatalf("listener called after unsubscribe")
	}
}

func TestStore_TxCollapsesAddThenRemove(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	evs, unsub := collect(s, ListenOptions{})
	defer unsub()
	s.Mutate(SourceUser, func(tx *Tx) {
		tx.Put(Record{ID: "shape:tmp", TypeName: TypeShape, Type: KindGeo})
		tx.Remove("shape:tmp")
	})
	if len(*evs) != 0 {
		t.Fatalf("no-op transaction emitted %d events", len(*evs))
	}
}

func TestStore_UndoRedo(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	if s.CanUndo() {
		t.Fatalf("fresh store can undo")
	}
	id := s.BeginStroke(0, 0, StrokeStyle{})
	s.ExtendStroke(id, 4, 4)
	s.CompleteStroke(id)

	evs, unsub := collect(s, ListenOptions{Source: "user", Scope: "document"})
	defer unsub()
	s.Undo()
	if len(s.CurrentPageShapeIDs()) != 0 {
		t.Fatalf("undo did not remove stroke")
	}
	if len(*evs) != 1 {
		t.Fatalf("undo events = %d", len(*evs))
	}
	if _, ok := (*evs)[0].Changes.Removed[id]; !ok {
		t.Fatalf("undo diff missing removal: %+v", (*evs)[0].Changes)
	}
	if !s.CanRedo() {
		t.Fatalf("redo unavailable after undo")
	}
	s.Redo()
	r, ok := s.Get(id)
	if !ok || !r.IsComplete() {
		t.Fatalf("redo did not restore completed stroke")
	}
}

func TestStore_RemoteLoadClearsHistory(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	s.AddShape(Record{Type: KindGeo, Props: &Props{W: 1, H: 1}})
	if !s.CanUndo() {
		t.Fatalf("expected undo point")
	}
	s.Load(Snapshot{Store: map[string]Record{
		"shape:a": {TypeName: TypeShape, Type: KindGeo, ParentID: PageID, Props: &Props{W: 2, H: 2}},
	}}, SourceRemote)
	if s.CanUndo() {
		t.Fatalf("remote load kept undo history")
	}
	if got := s.CurrentPageShapeIDs(); len(got) != 1 || got[0] != "shape:a" {
		t.Fatalf("shape ids after load = %v", got)
	}
	r, _ := s.Get("shape:a")
	if r.ID != "shape:a" {
		t.Fatalf("record ID not filled from key: %q", r.ID)
	}
}

func TestStore_EraseMissingIsNoop(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	if n := s.Erase("shape:nope"); n != 0 {
		t.Fatalf("erase = %d", n)
	}
	if s.CanUndo() {
		t.Fatalf("no-op erase pushed undo point")
	}
}

func TestStore_SvgString(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	ctx := context.Background()
	svg, err := s.SvgString(ctx, s.CurrentPageShapeIDs())
	if err != nil || svg != nil {
		t.Fatalf("empty page: svg=%v err=%v", svg, err)
	}
	id := s.BeginStroke(100, 100, StrokeStyle{Color: "red", Size: "m"})
	s.ExtendStroke(id, 150, 120)
	svg, err = s.SvgString(ctx, []string{id})
	if err != nil || svg == nil {
		t.Fatalf("svg=%v err=%v", svg, err)
	}
	if !strings.HasPrefix(svg.SVG, "<svg") || !strings.Contains(svg.SVG, "<path") {
		t.Fatalf("unexpected svg: %s", svg.SVG)
	}
	if svg.Width < 50+2*SVGPadding || svg.Height < 20+2*SVGPadding {
		t.Fatalf("svg size %gx%g too small", svg.Width, svg.Height)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.SvgString(cctx, []string{id}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestStore_ToolCameraInstance(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	if s.CurrentTool() != ToolSelect {
		t.Fatalf("default tool = %s", s.CurrentTool())
	}
	s.SetCurrentTool(ToolEraser)
	if s.CurrentTool() != ToolEraser {
		t.Fatalf("tool not set")
	}
	s.UpdateInstanceState(InstanceState{IsDebugMode: true})
	if !s.InstanceState().IsDebugMode {
		t.Fatalf("instance state not stored")
	}
	evs, unsub := collect(s, ListenOptions{Scope: "session"})
	defer unsub()
	s.SetCamera(Camera{X: 3, Y: 4, Z: 2})
	if len(*evs) != 1 {
		t.Fatalf("camera events = %d", len(*evs))
	}
	if u := (*evs)[0].Changes.Updated[CameraID]; u.To.Z != 2 {
		t.Fatalf("camera update = %+v", u)
	}
}

func TestStore_MoveShapes(t *testing.T) {
	s := NewStore(Snapshot{}, StoreOptions{})
	id := s.AddShape(Record{Type: KindGeo, X: 1, Y: 2, Props: &Props{Geo: "rectangle", W: 10, H: 10}})
	evs, unsub := collect(s, ListenOptions{Source: "user", Scope: "all"})
	defer unsub()

	if n := s.MoveShapes(3, 4, 9, 9, id, "shape:missing"); n != 1 {
		t.Fatalf("moved = %d, want 1", n)
	}
	if len(*evs) != 1 {
		t.Fatalf("events = %d, want one change", len(*evs))
	}
	ev := (*evs)[0]
	u, ok := ev.Changes.Updated[id]
	if !ok || u.To.X != 4 || u.To.Y != 6 || u.From.X != 1 {
		t.Fatalf("shape update = %+v ok=%v", u, ok)
	}
	if _, ok := ev.Changes.Updated[PointerID]; !ok {
		t.Fatalf("pointer update missing from the move change")
	}
	if n := s.MoveShapes(1, 1, 0, 0, "shape:missing"); n != 0 || len(*evs) != 1 {
		t.Fatalf("moving nothing emitted a change: n=%d events=%d", n, len(*evs))
	}
}
