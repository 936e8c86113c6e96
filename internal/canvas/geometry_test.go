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
	"strings"
	"testing"
)

func TestShapeBounds_Draw(t *testing.T) {
	r := Record{
		TypeName: TypeShape, Type: KindDraw, X: 10, Y: 20,
		Props: &Props{Size: "s", Segments: []Segment{{Points: []Point{{X: 0, Y: 0}, {X: 10, Y: 5}}}}},
	}
	b, ok := ShapeBounds(r)
	if !ok {
		t.Fatalf("bounds not found")
	}
	if b.X != 9 || b.Y != 19 || b.W != 12 || b.H != 7 {
		t.Fatalf("bounds = %+v", b)
	}
}

func TestShapeBounds_EmptyAndNonShape(t *testing.T) {
	if _, ok := ShapeBounds(Record{TypeName: TypeShape, Type: KindDraw, Props: &Props{}}); ok {
		t.Fatalf("empty stroke has bounds")
	}
	if _, ok := ShapeBounds(Record{TypeName: TypeCamera}); ok {
		t.Fatalf("camera has bounds")
	}
}

func TestPageBounds_Union(t *testing.T) {
	recs := []Record{
		{TypeName: TypeShape, Type: KindGeo, X: 0, Y: 0, Props: &Props{Size: "s", W: 10, H: 10}},
		{TypeName: TypeShape, Type: KindGeo, X: 20, Y: 30, Props: &Props{Size: "s", W: 10, H: 10}},
	}
	b, ok := PageBounds(recs)
	if !ok || b.X != -1 || b.Y != -1 || b.MaxX() != 31 || b.MaxY() != 41 {
		t.Fatalf("page bounds = %+v ok=%v", b, ok)
	}
}

func TestStrokeWidthAndColorFallbacks(t *testing.T) {
	if StrokeWidth("xl") != 10 {
		t.Fatalf("xl width = %g", StrokeWidth("xl"))
	}
	if StrokeWidth("bogus") != StrokeWidth("m") {
		t.Fatalf("unknown size should fall back to m")
	}
	if ColorRGBA("bogus") != ColorRGBA("black") {
		t.Fatalf("unknown color should fall back to black")
	}
}

func TestRenderSVG_ShapesAndEscaping(t *testing.T) {
	recs := []Record{
		{TypeName: TypeShape, Type: KindGeo, Props: &Props{Geo: "ellipse", W: 40, H: 20}},
		{TypeName: TypeShape, Type: KindText, X: 5, Y: 5, Props: &Props{Text: "a<b & c", W: 50, H: 20}},
		{TypeName: TypeShape, Type: KindDraw, Props: &Props{Segments: []Segment{{Points: []Point{{X: 1, Y: 1}}}}}},
	}
	svg, ok, err := RenderSVG(recs)
	if err != nil || !ok {
		t.Fatalf("render: ok=%v err=%v", ok, err)
	}
	for _, want := range []string{"<ellipse", "<circle", "a&lt;b &amp; c"} {
		if !strings.Contains(svg.SVG, want) {
			t.Fatalf("svg missing %q:\n%s", want, svg.SVG)
		}
	}
	if _, ok, _ := RenderSVG(nil); ok {
		t.Fatalf("empty render reported ok")
	}
}
