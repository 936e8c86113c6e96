/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package pagefile defines the on-disk ink drawing file: the canvas snapshot,
// a little metadata and an optional SVG preview.
package pagefile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"inkdraw/internal/canvas"
	"inkdraw/internal/version"
)

// WritingContainerID is the record that frames writing files and is removed on conversion to a drawing.
const WritingContainerID = "shape:primary_container"

// ErrInvalidFile is returned by Parse for data that is not a valid ink file.
var ErrInvalidFile = errors.New("invalid ink file")

//go:embed drawing.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Meta is the file header.
type Meta struct {
	PluginVersion     string `json:"pluginVersion"`
	TldrawVersion     string `json:"tldrawVersion"`
	PreviewIsOutdated *bool  `json:"previewIsOutdated,omitempty"`
}

// InkFileData is the persisted payload of a drawing. Values are treated as immutable once built.
type InkFileData struct {
	Meta       Meta            `json:"meta"`
	Tldraw     canvas.Snapshot `json:"tldraw"`
	PreviewURI string          `json:"previewUri,omitempty"`
}

// DrawingOptions are the inputs of BuildDrawingFileData.
type DrawingOptions struct {
	Snapshot          canvas.Snapshot
	PreviewURI        string
	PreviewIsOutdated bool
}

// BuildDrawingFileData assembles a payload stamped with the current versions.
func BuildDrawingFileData(o DrawingOptions) InkFileData {
	d := InkFileData{
		Meta: Meta{
			PluginVersion: version.Version,
			TldrawVersion: version.TldrawVersion,
		},
		Tldraw:     o.Snapshot,
		PreviewURI: o.PreviewURI,
	}
	if o.PreviewIsOutdated {
		d.Meta.PreviewIsOutdated = canvas.Bool(true)
	}
	return d
}

// HasPreview reports whether a preview is embedded.
func (d InkFileData) HasPreview() bool { return d.PreviewURI != "" }

// PreviewOutdated reports whether the embedded preview may not match the snapshot.
func (d InkFileData) PreviewOutdated() bool {
	return d.Meta.PreviewIsOutdated != nil && *d.Meta.PreviewIsOutdated
}

// WithPreview returns a copy of d carrying uri as its preview.
func (d InkFileData) WithPreview(uri string, outdated bool) InkFileData {
	d.PreviewURI = uri
	d.Meta.PreviewIsOutdated = nil
	if outdated {
		d.Meta.PreviewIsOutdated = canvas.Bool(true)
	}
	return d
}

// Marshal encodes d as indented JSON.
func Marshal(d InkFileData) ([]byte, error) {
	if d.Tldraw.Store == nil {
		d.Tldraw.Store = map[string]canvas.Record{}
	}
	if d.Tldraw.Schema.SchemaVersion == 0 {
		d.Tldraw.Schema.SchemaVersion = canvas.CurrentSchemaVersion
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ink file: %w", err)
	}
	return b, nil
}

// Parse validates and decodes an ink file.
func Parse(b []byte) (InkFileData, error) {
	s, err := compiledSchema()
	if err != nil {
		return InkFileData{}, fmt.Errorf("load schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return InkFileData{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return InkFileData{}, fmt.Errorf("%w: %s", ErrInvalidFile, strings.Join(msgs, "; "))
	}
	var d InkFileData
	if err := json.Unmarshal(b, &d); err != nil {
		return InkFileData{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	for id, r := range d.Tldraw.Store {
		if r.ID == "" {
			r.ID = id
			d.Tldraw.Store[id] = r
		}
	}
	return d, nil
}

// PrepareDrawingSnapshot returns snap without session records such as camera, pointer and instance state.
func PrepareDrawingSnapshot(snap canvas.Snapshot) canvas.Snapshot {
	out := canvas.Snapshot{Store: make(map[string]canvas.Record, len(snap.Store)), Schema: snap.Schema}
	for id, r := range snap.Store {
		if r.Scope() == canvas.ScopeDocument {
			out.Store[id] = r.Clone()
		}
	}
	return out
}

// StripWritingContainer returns snap without the writing container shape.
func StripWritingContainer(snap canvas.Snapshot) canvas.Snapshot {
	out := canvas.Snapshot{Store: make(map[string]canvas.Record, len(snap.Store)), Schema: snap.Schema}
	for id, r := range snap.Store {
		if id == WritingContainerID {
			continue
		}
		out.Store[id] = r
	}
	return out
}

// Empty returns a new drawing payload with no shapes.
func Empty() InkFileData {
	s := canvas.NewStore(canvas.Snapshot{}, canvas.StoreOptions{})
	return BuildDrawingFileData(DrawingOptions{Snapshot: s.Snapshot()})
}
