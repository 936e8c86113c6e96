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
	"image/color"
	"math"
)

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Inset returns a rectangle inset by d on all sides (negative grows).
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.MaxX(), o.MaxX())
	maxY := math.Max(r.MaxY(), o.MaxY())
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// ShapeBounds returns the page-space bounds of a shape including half its stroke width.
func ShapeBounds(r Record) (Rect, bool) {
	if r.TypeName != TypeShape || r.Props == nil {
		return Rect{}, false
	}
	half := StrokeWidth(r.Props.Size) / 2
	switch r.Type {
	case KindDraw:
		first := true
		var minX, minY, maxX, maxY float64
		for _, seg := range r.Props.Segments {
			for _, p := range seg.Points {
				x, y := r.X+p.X, r.Y+p.Y
				if first {
					minX, minY, maxX, maxY = x, y, x, y
					first = false
					continue
				}
				minX, minY = math.Min(minX, x), math.Min(minY, y)
				maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
			}
		}
		if first {
			return Rect{}, false
		}
		return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}.Inset(-half), true
	case KindGeo, KindText:
		if r.Props.W <= 0 && r.Props.H <= 0 {
			return Rect{}, false
		}
		return Rect{X: r.X, Y: r.Y, W: r.Props.W, H: r.Props.H}.Inset(-half), true
	}
	return Rect{}, false
}

// PageBounds returns the union of the bounds of all renderable records.
func PageBounds(records []Record) (Rect, bool) {
	var out Rect
	found := false
	for _, r := range records {
		b, ok := ShapeBounds(r)
		if !ok {
			continue
		}
		if !found {
			out, found = b, true
			continue
		}
		out = out.Union(b)
	}
	return out, found
}

// Stroke widths per size token, in page units.
var strokeWidths = map[string]float64{"s": 2, "m": 3.5, "l": 5, "xl": 10}

// StrokeWidth maps a size token to a stroke width; unknown sizes use "m".
func StrokeWidth(size string) float64 {
	if w, ok := strokeWidths[size]; ok {
		return w
	}
	return strokeWidths["m"]
}

var palette = map[string]color.RGBA{
	"black":        {R: 0x1d, G: 0x1d, B: 0x1d, A: 0xff},
	"grey":         {R: 0x9f, G: 0xa8, B: 0xb2, A: 0xff},
	"light-violet": {R: 0xe0, G: 0x85, B: 0xf4, A: 0xff},
	"violet":       {R: 0xae, G: 0x3e, B: 0xc9, A: 0xff},
	"blue":         {R: 0x44, G: 0x65, B: 0xe9, A: 0xff},
	"light-blue":   {R: 0x4b, G: 0xa1, B: 0xf1, A: 0xff},
	"yellow":       {R: 0xf1, G: 0xac, B: 0x4b, A: 0xff},
	"orange":       {R: 0xe1, G: 0x69, B: 0x19, A: 0xff},
	"green":        {R: 0x09, G: 0x92, B: 0x68, A: 0xff},
	"light-green":  {R: 0x4c, G: 0xb0, B: 0x5e, A: 0xff},
	"light-red":    {R: 0xf8, G: 0x77, B: 0x77, A: 0xff},
	"red":          {R: 0xe0, G: 0x31, B: 0x31, A: 0xff},
	"white":        {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

// ColorRGBA maps a color token to RGBA; unknown colors fall back to black.
func ColorRGBA(name string) color.RGBA {
	if c, ok := palette[name]; ok {
		return c
	}
	return palette["black"]
}
