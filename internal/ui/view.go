/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image/color"
	"math"
	"sort"

	"inkdraw/internal/canvas"
)

const (
	minZoom = 0.1
	maxZoom = 8
)

// viewport maps page coordinates to widget coordinates.
type viewport struct {
	zoom       float64
	offX, offY float64
}

func newViewport() viewport { return viewport{zoom: 1} }

func (v viewport) toPage(sx, sy float64) (float64, float64) {
	return (sx - v.offX) / v.zoom, (sy - v.offY) / v.zoom
}

func (v viewport) toScreen(px, py float64) (float64, float64) {
	return px*v.zoom + v.offX, py*v.zoom + v.offY
}

func (v *viewport) pan(dx, dy float64) {
	v.offX += dx
	v.offY += dy
}

// zoomAt scales by factor keeping the page point under sx,sy in place.
func (v *viewport) zoomAt(sx, sy, factor float64) {
	z := math.Max(minZoom, math.Min(maxZoom, v.zoom*factor))
	px, py := v.toPage(sx, sy)
	v.zoom = z
	v.offX = sx - px*z
	v.offY = sy - py*z
}

// strokeLine is one polyline in widget coordinates.
type strokeLine struct {
	pts   [][2]float64
	width float64
	color color.RGBA
}

// textItem is a text shape in widget coordinates.
type textItem struct {
	x, y float64
	size float64
	text string
}

// sortedShapes returns the shapes of snap in paint order.
func sortedShapes(snap canvas.Snapshot) []canvas.Record {
	out := make([]canvas.Record, 0, len(snap.Store))
	for _, r := range snap.Store {
		if r.TypeName == canvas.TypeShape && r.Props != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sceneOf converts the shapes of snap to drawable lines and texts.
func sceneOf(snap canvas.Snapshot, v viewport) ([]strokeLine, []textItem) {
	var lines []strokeLine
	var texts []textItem
	for _, r := range sortedShapes(snap) {
		p := r.Props
		w := math.Max(1, canvas.StrokeWidth(p.Size)*v.zoom)
		col := canvas.ColorRGBA(p.Color)
		switch r.Type {
		case canvas.KindDraw:
			for _, seg := range p.Segments {
				if len(seg.Points) == 0 {
					continue
				}
				l := strokeLine{width: w, color: col}
				for _, pt := range seg.Points {
					x, y := v.toScreen(r.X+pt.X, r.Y+pt.Y)
					l.pts = append(l.pts, [2]float64{x, y})
				}
				lines = append(lines, l)
			}
		case canvas.KindGeo:
			l := strokeLine{width: w, color: col}
			if p.Geo == "ellipse" {
				const steps = 32
				cx, cy := r.X+p.W/2, r.Y+p.H/2
				for i := 0; i <= steps; i++ {
					a := 2 * math.Pi * float64(i) / steps
					x, y := v.toScreen(cx+math.Cos(a)*p.W/2, cy+math.Sin(a)*p.H/2)
					l.pts = append(l.pts, [2]float64{x, y})
				}
			} else {
				for _, c := range [][2]float64{{0, 0}, {p.W, 0}, {p.W, p.H}, {0, p.H}, {0, 0}} {
					x, y := v.toScreen(r.X+c[0], r.Y+c[1])
					l.pts = append(l.pts, [2]float64{x, y})
				}
			}
			lines = append(lines, l)
		case canvas.KindText:
			if p.Text == "" {
				continue
			}
			x, y := v.toScreen(r.X, r.Y)
			texts = append(texts, textItem{x: x, y: y, size: math.Max(6, 14*v.zoom), text: p.Text})
		}
	}
	return lines, texts
}

// hitShapes returns the IDs of shapes within tol page units of px,py, topmost first.
func hitShapes(snap canvas.Snapshot, px, py, tol float64) []string {
	shapes := sortedShapes(snap)
	var out []string
	for i := len(shapes) - 1; i >= 0; i-- {
		r := shapes[i]
		b, ok := canvas.ShapeBounds(r)
		if !ok {
			continue
		}
		if px < b.X-tol || px > b.MaxX()+tol || py < b.Y-tol || py > b.MaxY()+tol {
			continue
		}
		if r.Type == canvas.KindDraw && !nearStroke(r, px, py, tol+canvas.StrokeWidth(r.Props.Size)/2) {
			continue
		}
		out = append(out, r.ID)
	}
	return out
}

func nearStroke(r canvas.Record, px, py, d float64) bool {
	for _, seg := range r.Props.Segments {
		pts := seg.Points
		for i := range pts {
			ax, ay := r.X+pts[i].X, r.Y+pts[i].Y
			bx, by := ax, ay
			if i+1 < len(pts) {
				bx, by = r.X+pts[i+1].X, r.Y+pts[i+1].Y
			}
			if distToSegment(px, py, ax, ay, bx, by) <= d {
				return true
			}
		}
	}
	return false
}

func distToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
