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

import "github.com/google/uuid"

// StrokeStyle is the color and size token applied to new shapes.
type StrokeStyle struct {
	Color string
	Size  string
}

// NewShapeID returns a fresh shape record ID.
func NewShapeID() string { return "shape:" + uuid.NewString() }

// BeginStroke marks an undo point and adds an in-progress draw shape starting at x,y.
func (s *Store) BeginStroke(x, y float64, style StrokeStyle) string {
	s.Mark()
	id := NewShapeID()
	s.Mutate(SourceUser, func(tx *Tx) {
		tx.Put(Record{
			ID:       id,
			TypeName: TypeShape,
			Type:     KindDraw,
			ParentID: PageID,
			X:        x,
			Y:        y,
			Props: &Props{
				IsComplete: Bool(false),
				Segments:   []Segment{{Type: "free", Points: []Point{{X: 0, Y: 0, Z: 0.5}}}},
				Color:      style.Color,
				Size:       style.Size,
			},
		})
	})
	return id
}

// ExtendStroke appends a sample at page position x,y to an in-progress stroke.
func (s *Store) ExtendStroke(id string, x, y float64) bool {
	found := false
	s.Mutate(SourceUser, func(tx *Tx) {
		r, ok := tx.Get(id)
		if !ok || !r.IsDraw() || r.Props == nil || len(r.Props.Segments) == 0 {
			return
		}
		found = true
		last := &r.Props.Segments[len(r.Props.Segments)-1]
		last.Points = append(last.Points, Point{X: x - r.X, Y: y - r.Y, Z: 0.5})
		tx.Put(r)
		tx.Put(Record{ID: PointerID, TypeName: TypePointer, X: x, Y: y})
	})
	return found
}

// CompleteStroke finalizes a stroke.
func (s *Store) CompleteStroke(id string) bool {
	found := false
	s.Mutate(SourceUser, func(tx *Tx) {
		r, ok := tx.Get(id)
		if !ok || !r.IsDraw() || r.Props == nil {
			return
		}
		found = true
		r.Props.IsComplete = Bool(true)
		tx.Put(r)
	})
	return found
}

// AddShape marks an undo point and inserts a finished shape. An empty ID is generated.
func (s *Store) AddShape(r Record) string {
	if r.ID == "" {
		r.ID = NewShapeID()
	}
	if r.TypeName == "" {
		r.TypeName = TypeShape
	}
	if r.ParentID == "" {
		r.ParentID = PageID
	}
	s.Mark()
	s.Mutate(SourceUser, func(tx *Tx) { tx.Put(r) })
	return r.ID
}

// MoveShapes shifts the given shapes by dx,dy and records the pointer at px,py
// in the same change. It returns how many shapes moved. Callers mark the undo
// point once per drag.
func (s *Store) MoveShapes(dx, dy, px, py float64, ids ...string) int {
	n := 0
	s.Mutate(SourceUser, func(tx *Tx) {
		for _, id := range ids {
			r, ok := tx.Get(id)
			if !ok || r.TypeName != TypeShape {
				continue
			}
			r.X += dx
			r.Y += dy
			tx.Put(r)
			n++
		}
		if n > 0 {
			tx.Put(Record{ID: PointerID, TypeName: TypePointer, X: px, Y: py})
		}
	})
	return n
}

// Erase marks an undo point and removes the given shapes. It returns how many existed.
func (s *Store) Erase(ids ...string) int {
	n := 0
	s.mu.RLock()
	for _, id := range ids {
		if r, ok := s.records[id]; ok && r.TypeName == TypeShape {
			n++
		}
	}
	s.mu.RUnlock()
	if n == 0 {
		return 0
	}
	s.Mark()
	s.Mutate(SourceUser, func(tx *Tx) {
		for _, id := range ids {
			if r, ok := tx.Get(id); ok && r.TypeName == TypeShape {
				tx.Remove(id)
			}
		}
	})
	return n
}
