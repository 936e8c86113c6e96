/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package canvas defines the contract between the drawing editor and the canvas
// document it edits, plus an in-memory reference document (Store).
//
// The document is a keyed set of records. Every mutation produces a ChangeEvent
// carrying a Diff of added, updated and removed records, tagged with the Source
// that caused it. Records are JSON compatible with the tldraw store format for
// the subset of fields the editor needs.
package canvas

import "slices"

// Record type names.
const (
	TypeShape    = "shape"
	TypePage     = "page"
	TypeDocument = "document"
	TypeAsset    = "asset"
	TypeCamera   = "camera"
	TypePointer  = "pointer"
	TypeInstance = "instance"
)

// Shape kinds.
const (
	KindDraw = "draw"
	KindGeo  = "geo"
	KindText = "text"
)

// Well-known record IDs.
const (
	DocumentID = "document:document"
	PageID     = "page:page"
	CameraID   = "camera:page:page"
	PointerID  = "pointer:pointer"
	InstanceID = "instance:instance"
)

// Scope tells whether a record belongs to the persisted document or to the editing session.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeSession  Scope = "session"
)

// Point is a stroke sample relative to its shape origin. Z carries pen pressure.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Segment is a run of stroke samples.
type Segment struct {
	Type   string  `json:"type"` // free | straight
	Points []Point `json:"points"`
}

// Props is the typed subset of shape properties the editor reads.
type Props struct {
	IsComplete *bool     `json:"isComplete,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	Color      string    `json:"color,omitempty"`
	Size       string    `json:"size,omitempty"`
	Geo        string    `json:"geo,omitempty"`
	W          float64   `json:"w,omitempty"`
	H          float64   `json:"h,omitempty"`
	Text       string    `json:"text,omitempty"`
}

// Record is one entry of the document store.
type Record struct {
	ID       string  `json:"id"`
	TypeName string  `json:"typeName"`
	Type     string  `json:"type,omitempty"`
	ParentID string  `json:"parentId,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Props    *Props  `json:"props,omitempty"`
}

// Scope reports the persistence scope of the record.
func (r Record) Scope() Scope {
	switch r.TypeName {
	case TypeShape, TypePage, TypeDocument, TypeAsset:
		return ScopeDocument
	default:
		return ScopeSession
	}
}

// IsDraw reports whether the record is a freehand drawing shape.
func (r Record) IsDraw() bool { return r.TypeName == TypeShape && r.Type == KindDraw }

// IsComplete reports whether a drawing shape has been finalized.
// Missing isComplete is treated as complete, matching shapes created by paste or import.
func (r Record) IsComplete() bool {
	if r.Props == nil || r.Props.IsComplete == nil {
		return true
	}
	return *r.Props.IsComplete
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (r Record) Clone() Record {
	if r.Props == nil {
		return r
	}
	p := *r.Props
	if r.Props.IsComplete != nil {
		v := *r.Props.IsComplete
		p.IsComplete = &v
	}
	if r.Props.Segments != nil {
		p.Segments = make([]Segment, len(r.Props.Segments))
		for i, s := range r.Props.Segments {
			p.Segments[i] = Segment{Type: s.Type, Points: slices.Clone(s.Points)}
		}
	}
	r.Props = &p
	return r
}

// Bool returns a pointer to v, for Props.IsComplete literals.
func Bool(v bool) *bool { return &v }
