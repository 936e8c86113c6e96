/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps the undo/redo history of a canvas document as a pair of
// snapshot stacks with memory and depth caps.
package undo

import (
	"sync"
	"time"
)

// Entry is a reversible document state. Blob content is opaque to the history;
// its size is estimated as len(Blob). TS is when the state was captured.
type Entry struct {
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps. Every pushed entry is its own undo step.
type Config struct {
	// MaxBytes is a soft cap over both stacks; the oldest undo entries are pruned when exceeded.
	MaxBytes int
	// MaxDepth limits the number of undo entries (0 means unlimited).
	MaxDepth int
}

// History is an undo/redo stack pair. It is safe for concurrent use.
type History struct {
	cfg        Config
	mu         sync.Mutex
	undo       []Entry
	redo       []Entry
	totalBytes int
}

func New(cfg Config) *History {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &History{cfg: cfg}
}

// Push records the state captured before a change. Any new change invalidates redo.
func (h *History) Push(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropRedoLocked()
	h.undo = append(h.undo, e)
	h.totalBytes += len(e.Blob)
	h.enforceCapsLocked()
}

// Undo pops the newest undo entry and parks current on the redo stack.
func (h *History) Undo(current Entry) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.undo)
	if n == 0 {
		return Entry{}, false
	}
	e := h.undo[n-1]
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, current)
	h.totalBytes += len(current.Blob) - len(e.Blob)
	h.enforceCapsLocked()
	return e, true
}

// Redo pops the newest redo entry and parks current on the undo stack.
func (h *History) Redo(current Entry) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.redo)
	if n == 0 {
		return Entry{}, false
	}
	e := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, current)
	h.totalBytes += len(current.Blob) - len(e.Blob)
	h.enforceCapsLocked()
	return e, true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
	h.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, undoDepth int, redoDepth int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.undo), len(h.redo)
}

func (h *History) dropRedoLocked() {
	for _, e := range h.redo {
		h.totalBytes -= len(e.Blob)
	}
	h.redo = nil
}

func (h *History) enforceCapsLocked() {
	if h.cfg.MaxDepth > 0 && len(h.undo) > h.cfg.MaxDepth {
		toDrop := len(h.undo) - h.cfg.MaxDepth
		for i := 0; i < toDrop; i++ {
			h.totalBytes -= len(h.undo[i].Blob)
		}
		h.undo = append([]Entry{}, h.undo[toDrop:]...)
	}
	// the newest undo entry is never pruned
	for h.totalBytes > h.cfg.MaxBytes && len(h.undo) > 1 {
		h.totalBytes -= len(h.undo[0].Blob)
		h.undo = h.undo[1:]
	}
	if h.totalBytes < 0 {
		h.totalBytes = 0
	}
}
