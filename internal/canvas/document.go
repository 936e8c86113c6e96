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
	"sort"
)

// Tool is an editor tool name.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolDraw   Tool = "draw"
	ToolEraser Tool = "eraser"
)

// Schema describes the record format version of a snapshot.
type Schema struct {
	SchemaVersion int            `json:"schemaVersion"`
	Sequences     map[string]int `json:"sequences,omitempty"`
}

// CurrentSchemaVersion is written into snapshots produced by the Store.
const CurrentSchemaVersion = 2

// Snapshot is the serializable document state: document-scope records only.
type Snapshot struct {
	Store  map[string]Record `json:"store"`
	Schema Schema            `json:"schema"`
}

// ShapeIDs returns the shape record IDs of the snapshot in sorted order.
func (s Snapshot) ShapeIDs() []string {
	var ids []string
	for id, r := range s.Store {
		if r.TypeName == TypeShape {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SVG is a rendered preview of a set of shapes.
type SVG struct {
	SVG    string  `json:"svg"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InstanceState holds per-editor flags.
type InstanceState struct {
	IsDebugMode   bool
	CanMoveCamera bool
}

// Camera is the viewport position and zoom.
type Camera struct {
	X, Y, Z float64
}

// Document is the stateful canvas document the editor drives.
type Document interface {
	// Listen subscribes fn to store changes matching opts and returns the unsubscribe func.
	Listen(fn func(ChangeEvent), opts ListenOptions) (unsubscribe func())
	// Snapshot dumps the serializable document state.
	Snapshot() Snapshot
	// CurrentPageShapeIDs lists the shapes on the current page.
	CurrentPageShapeIDs() []string
	// SvgString renders the given shapes. It returns nil, nil when nothing could be rendered.
	SvgString(ctx context.Context, ids []string) (*SVG, error)

	SetCurrentTool(t Tool)
	CurrentTool() Tool
	Undo()
	Redo()
	CanUndo() bool
	CanRedo() bool
	UpdateInstanceState(s InstanceState)
	SetCamera(c Camera)
}
