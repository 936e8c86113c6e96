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
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"inkdraw/internal/undo"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	History undo.Config
	// Now is the clock used to timestamp undo points; defaults to time.Now.
	Now func() time.Time
}

// Store is an in-memory Document. It is safe for concurrent use; listeners are
// invoked on the goroutine that made the change, after the store lock is released.
type Store struct {
	mu       sync.RWMutex
	records  map[string]Record
	schema   Schema
	tool     Tool
	instance InstanceState
	history  *undo.History
	now      func() time.Time

	lmu       sync.Mutex
	listeners map[int]listenerEntry
	nextLID   int
}

type listenerEntry struct {
	fn   func(ChangeEvent)
	opts ListenOptions
}

var _ Document = (*Store)(nil)

// NewStore builds a store seeded with snap. Missing document, page and session
// records are created.
func NewStore(snap Snapshot, opts StoreOptions) *Store {
	s := &Store{
		records:   make(map[string]Record, len(snap.Store)+5),
		schema:    snap.Schema,
		tool:      ToolSelect,
		instance:  InstanceState{CanMoveCamera: true},
		history:   undo.New(opts.History),
		now:       opts.Now,
		listeners: map[int]listenerEntry{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.schema.SchemaVersion == 0 {
		s.schema.SchemaVersion = CurrentSchemaVersion
	}
	for id, r := range snap.Store {
		if r.ID == "" {
			r.ID = id
		}
		s.records[id] = r.Clone()
	}
	s.ensureDefaultsLocked()
	return s
}

func (s *Store) ensureDefaultsLocked() {
	defaults := []Record{
		{ID: DocumentID, TypeName: TypeDocument},
		{ID: PageID, TypeName: TypePage},
		{ID: CameraID, TypeName: TypeCamera, Z: 1},
		{ID: PointerID, TypeName: TypePointer},
		{ID: InstanceID, TypeName: TypeInstance},
	}
	for _, r := range defaults {
		if _, ok := s.records[r.ID]; !ok {
			s.records[r.ID] = r
		}
	}
}

// Listen implements Document.
func (s *Store) Listen(fn func(ChangeEvent), opts ListenOptions) func() {
	s.lmu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = listenerEntry{fn: fn, opts: opts}
	s.lmu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) emit(ev ChangeEvent) {
	if ev.Changes.IsEmpty() {
		return
	}
	s.lmu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]listenerEntry, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.lmu.Unlock()
	for _, l := range ls {
		if fev, ok := l.opts.filter(ev); ok {
			l.fn(fev)
		}
	}
}

// Tx is a store transaction. It is only valid inside the Mutate callback.
type Tx struct {
	s    *Store
	diff Diff
}

// Get returns the current value of a record.
func (tx *Tx) Get(id string) (Record, bool) {
	r, ok := tx.s.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Put adds or replaces a record.
func (tx *Tx) Put(r Record) {
	r = r.Clone()
	id := r.ID
	old, exists := tx.s.records[id]
	tx.s.records[id] = r
	d := tx.diff
	if _, ok := d.Added[id]; ok {
		d.Added[id] = r.Clone()
		return
	}
	if u, ok := d.Updated[id]; ok {
		u.To = r.Clone()
		d.Updated[id] = u
		return
	}
	if rem, ok := d.Removed[id]; ok {
		delete(d.Removed, id)
		d.Updated[id] = Update{From: rem, To: r.Clone()}
		return
	}
	if !exists {
		d.Added[id] = r.Clone()
		return
	}
	if reflect.DeepEqual(old, r) {
		return
	}
	d.Updated[id] = Update{From: old.Clone(), To: r.Clone()}
}

// Remove deletes a record if present.
func (tx *Tx) Remove(id string) {
	old, exists := tx.s.records[id]
	if !exists {
		return
	}
	delete(tx.s.records, id)
	d := tx.diff
	if _, ok := d.Added[id]; ok {
		delete(d.Added, id)
		return
	}
	if u, ok := d.Updated[id]; ok {
		delete(d.Updated, id)
		d.Removed[id] = u.From
		return
	}
	d.Removed[id] = old.Clone()
}

// Mutate runs fn as one transaction and emits the resulting change with src.
func (s *Store) Mutate(src Source, fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{s: s, diff: NewDiff()}
	fn(tx)
	s.mu.Unlock()
	s.emit(ChangeEvent{Changes: tx.diff, Source: src})
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Snapshot implements Document.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{Store: make(map[string]Record, len(s.records)), Schema: s.schema}
	for id, r := range s.records {
		if r.Scope() == ScopeDocument {
			out.Store[id] = r.Clone()
		}
	}
	return out
}

// Load replaces the document-scope records with snap. Remote loads reset the undo history.
func (s *Store) Load(snap Snapshot, src Source) {
	s.mu.Lock()
	if snap.Schema.SchemaVersion != 0 {
		s.schema = snap.Schema
	}
	tx := &Tx{s: s, diff: NewDiff()}
	s.replaceDocumentLocked(tx, snap.Store)
	s.ensureDefaultsLocked()
	s.mu.Unlock()
	if src == SourceRemote {
		s.history.Clear()
	}
	s.emit(ChangeEvent{Changes: tx.diff, Source: src})
}

func (s *Store) replaceDocumentLocked(tx *Tx, recs map[string]Record) {
	for id, r := range s.records {
		if r.Scope() != ScopeDocument {
			continue
		}
		if _, keep := recs[id]; !keep {
			tx.Remove(id)
		}
	}
	ids := make([]string, 0, len(recs))
	for id := range recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := recs[id]
		if r.ID == "" {
			r.ID = id
		}
		tx.Put(r)
	}
}

// CurrentPageShapeIDs implements Document.
func (s *Store) CurrentPageShapeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, r := range s.records {
		if r.TypeName == TypeShape && (r.ParentID == "" || r.ParentID == PageID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SvgString implements Document.
func (s *Store) SvgString(ctx context.Context, ids []string) (*SVG, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			recs = append(recs, r.Clone())
		}
	}
	s.mu.RUnlock()
	svg, ok, err := RenderSVG(recs)
	if err != nil || !ok {
		return nil, err
	}
	return svg, nil
}

// SetCurrentTool implements Document.
func (s *Store) SetCurrentTool(t Tool) {
	s.mu.Lock()
	s.tool = t
	s.mu.Unlock()
}

// CurrentTool implements Document.
func (s *Store) CurrentTool() Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

// UpdateInstanceState implements Document.
func (s *Store) UpdateInstanceState(st InstanceState) {
	s.mu.Lock()
	s.instance = st
	s.mu.Unlock()
}

// InstanceState returns the current editor flags.
func (s *Store) InstanceState() InstanceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instance
}

// SetCamera implements Document.
func (s *Store) SetCamera(c Camera) {
	s.Mutate(SourceUser, func(tx *Tx) {
		tx.Put(Record{ID: CameraID, TypeName: TypeCamera, X: c.X, Y: c.Y, Z: c.Z})
	})
}

// MovePointer records a pointer move made by the user.
func (s *Store) MovePointer(x, y float64) {
	s.Mutate(SourceUser, func(tx *Tx) {
		tx.Put(Record{ID: PointerID, TypeName: TypePointer, X: x, Y: y})
	})
}

// Mark records the current document state as an undo point.
func (s *Store) Mark() {
	s.mu.RLock()
	blob, err := s.encodeDocumentLocked()
	s.mu.RUnlock()
	if err != nil {
		return
	}
	s.history.Push(undo.Entry{Blob: blob, TS: s.now()})
}

// Undo implements Document.
func (s *Store) Undo() { s.travel(s.history.Undo) }

// Redo implements Document.
func (s *Store) Redo() { s.travel(s.history.Redo) }

// CanUndo implements Document.
func (s *Store) CanUndo() bool { return s.history.CanUndo() }

// CanRedo implements Document.
func (s *Store) CanRedo() bool { return s.history.CanRedo() }

func (s *Store) travel(step func(undo.Entry) (undo.Entry, bool)) {
	s.mu.Lock()
	cur, err := s.encodeDocumentLocked()
	if err != nil {
		s.mu.Unlock()
		return
	}
	target, ok := step(undo.Entry{Blob: cur, TS: s.now()})
	if !ok {
		s.mu.Unlock()
		return
	}
	var recs map[string]Record
	if err := json.Unmarshal(target.Blob, &recs); err != nil {
		s.mu.Unlock()
		return
	}
	tx := &Tx{s: s, diff: NewDiff()}
	s.replaceDocumentLocked(tx, recs)
	s.mu.Unlock()
	s.emit(ChangeEvent{Changes: tx.diff, Source: SourceUser})
}

func (s *Store) encodeDocumentLocked() ([]byte, error) {
	doc := make(map[string]Record, len(s.records))
	for id, r := range s.records {
		if r.Scope() == ScopeDocument {
			doc[id] = r
		}
	}
	return json.Marshal(doc)
}
