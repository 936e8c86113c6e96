/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package pagefile

import (
	"errors"
	"strings"
	"testing"

	"inkdraw/internal/canvas"
	"inkdraw/internal/version"
)

func TestBuildAndParse(t *testing.T) {
	s := canvas.NewStore(canvas.Snapshot{}, canvas.StoreOptions{})
	id := s.BeginStroke(1, 2, canvas.StrokeStyle{Color: "blue"})
	s.CompleteStroke(id)

	d := BuildDrawingFileData(DrawingOptions{Snapshot: s.Snapshot(), PreviewURI: "<svg/>"})
	if d.Meta.PluginVersion != version.Version || d.Meta.TldrawVersion != version.TldrawVersion {
		t.Fatalf("meta = %+v", d.Meta)
	}
	if d.PreviewOutdated() {
		t.Fatalf("fresh preview marked outdated")
	}
	b, err := Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "previewIsOutdated") {
		t.Fatalf("unset flag was serialized: %s", b)
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, ok := got.Tldraw.Store[id]
	if !ok || !r.IsDraw() || !r.IsComplete() {
		t.Fatalf("stroke not round-tripped: %+v", r)
	}
	if got.PreviewURI != "<svg/>" {
		t.Fatalf("preview = %q", got.PreviewURI)
	}
}

func TestOutdatedFlag(t *testing.T) {
	d := BuildDrawingFileData(DrawingOptions{PreviewIsOutdated: true})
	if !d.PreviewOutdated() || d.HasPreview() {
		t.Fatalf("flags: outdated=%v preview=%v", d.PreviewOutdated(), d.HasPreview())
	}
	b, err := Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"previewIsOutdated": true`) {
		t.Fatalf("flag missing: %s", b)
	}
	fresh := d.WithPreview("<svg/>", false)
	if fresh.PreviewOutdated() || d.HasPreview() {
		t.Fatalf("WithPreview mutated the original or kept the flag")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":       "{",
		"missing meta":   `{"tldraw":{"store":{},"schema":{"schemaVersion":2}}}`,
		"bad store item": `{"meta":{"pluginVersion":"1","tldrawVersion":"2"},"tldraw":{"store":{"a":{"id":"a"}},"schema":{"schemaVersion":2}}}`,
		"bad version":    `{"meta":{"pluginVersion":1,"tldrawVersion":"2"},"tldraw":{"store":{},"schema":{"schemaVersion":2}}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			if !errors.Is(err, ErrInvalidFile) {
				t.Fatalf("err = %v, want ErrInvalidFile", err)
			}
		})
	}
}

func TestPrepareAndStrip(t *testing.T) {
	snap := canvas.Snapshot{Store: map[string]canvas.Record{
		canvas.CameraID:    {ID: canvas.CameraID, TypeName: canvas.TypeCamera},
		canvas.PageID:      {ID: canvas.PageID, TypeName: canvas.TypePage},
		WritingContainerID: {ID: WritingContainerID, TypeName: canvas.TypeShape, Type: "writing-container"},
		"shape:a":          {ID: "shape:a", TypeName: canvas.TypeShape, Type: canvas.KindDraw},
	}}
	p := PrepareDrawingSnapshot(snap)
	if _, ok := p.Store[canvas.CameraID]; ok {
		t.Fatalf("camera kept")
	}
	if len(p.Store) != 3 {
		t.Fatalf("prepared store = %d records", len(p.Store))
	}
	st := StripWritingContainer(p)
	if _, ok := st.Store[WritingContainerID]; ok {
		t.Fatalf("container kept")
	}
	if _, ok := p.Store[WritingContainerID]; !ok {
		t.Fatalf("strip mutated its input")
	}
}

func TestEmpty(t *testing.T) {
	d := Empty()
	if len(d.Tldraw.ShapeIDs()) != 0 {
		t.Fatalf("empty file has shapes")
	}
	b, err := Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Parse(b); err != nil {
		t.Fatalf("parse empty: %v", err)
	}
}
