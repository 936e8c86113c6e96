/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func entry(s string, ts time.Time) Entry { return Entry{Blob: []byte(s), TS: ts} }

func TestUndoRedoBasic(t *testing.T) {
	h := New(Config{MaxBytes: 1024 * 1024, MaxDepth: 10})
	t0 := time.Now()
	h.Push(entry("a", t0))
	h.Push(entry("b", t0.Add(20*time.Millisecond)))
	if _, undos, redos := h.Stats(); undos != 2 || redos != 0 {
		t.Fatalf("expected 2 undo entries, got undo=%d redo=%d", undos, redos)
	}
	e, ok := h.Undo(entry("c", t0.Add(time.Second)))
	if !ok || string(e.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(e.Blob))
	}
	if !h.CanRedo() {
		t.Fatalf("redo should be available after undo")
	}
	e, ok = h.Redo(entry("b", t0.Add(2*time.Second)))
	if !ok || string(e.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(e.Blob))
	}
	if h.CanRedo() {
		t.Fatalf("redo stack should be empty")
	}
}

func TestPushClearsRedo(t *testing.T) {
	h := New(Config{})
	t0 := time.Now()
	h.Push(entry("a", t0))
	if _, ok := h.Undo(entry("b", t0)); !ok {
		t.Fatalf("undo failed")
	}
	h.Push(entry("c", t0.Add(time.Second)))
	if h.CanRedo() {
		t.Fatalf("push must invalidate redo")
	}
	if tb, _, _ := h.Stats(); tb != 1 {
		t.Fatalf("byte accounting off after redo drop: %d", tb)
	}
}

func TestMarksCloseInTimeStaySeparate(t *testing.T) {
	h := New(Config{})
	t0 := time.Now()
	h.Push(entry("1", t0))
	h.Push(entry("2", t0.Add(time.Millisecond)))
	if _, undos, _ := h.Stats(); undos != 2 {
		t.Fatalf("undo entries = %d, want 2", undos)
	}
	e, ok := h.Undo(entry("3", t0.Add(time.Second)))
	if !ok || string(e.Blob) != "2" {
		t.Fatalf("first undo = ok=%v blob=%q, want 2", ok, string(e.Blob))
	}
}

func TestCaps(t *testing.T) {
	h := New(Config{MaxBytes: 20, MaxDepth: 2})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		h.Push(entry("xxxxx", t0.Add(time.Duration(i)*time.Millisecond)))
	}
	if _, undos, _ := h.Stats(); undos > 2 {
		t.Fatalf("expected MaxDepth cap to limit to 2, got %d", undos)
	}

	small := New(Config{MaxBytes: 8})
	small.Push(entry("xxxx", t0))
	small.Push(entry("yyyy", t0.Add(time.Second)))
	small.Push(entry("zzzz", t0.Add(2*time.Second)))
	tb, undos, _ := small.Stats()
	if tb > 8 || undos != 2 {
		t.Fatalf("expected byte cap to prune oldest, got bytes=%d depth=%d", tb, undos)
	}
	e, _ := small.Undo(Entry{})
	if string(e.Blob) != "zzzz" {
		t.Fatalf("newest entry must survive pruning, got %q", string(e.Blob))
	}
}

func TestClear(t *testing.T) {
	h := New(Config{})
	h.Push(entry("abcdef", time.Now()))
	h.Clear()
	if tb, undos, redos := h.Stats(); tb != 0 || undos != 0 || redos != 0 || h.CanUndo() {
		t.Fatalf("expected cleared history, got bytes=%d undo=%d redo=%d", tb, undos, redos)
	}
}
