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
	"bytes"
	"fmt"
	"html"
	"image/color"
	"math"
)

// SVGPadding is the margin added around the rendered shapes, in page units.
const SVGPadding = 32

// RenderSVG renders draw, geo and text shapes to a standalone SVG document.
// ok is false when none of the records produced any geometry.
func RenderSVG(records []Record) (*SVG, bool, error) {
	bounds, ok := PageBounds(records)
	if !ok {
		return nil, false, nil
	}
	box := bounds.Inset(-SVGPadding)
	w := math.Ceil(box.W)
	h := math.Ceil(box.H)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%g\" height=\"%g\" viewBox=\"%g %g %g %g\" stroke-linecap=\"round\" stroke-linejoin=\"round\">\n",
		w, h, round2(box.X), round2(box.Y), w, h)
	for _, r := range records {
		if r.TypeName != TypeShape || r.Props == nil {
			continue
		}
		col := svgColor(ColorRGBA(r.Props.Color))
		sw := StrokeWidth(r.Props.Size)
		switch r.Type {
		case KindDraw:
			for _, seg := range r.Props.Segments {
				if len(seg.Points) == 0 {
					continue
				}
				if len(seg.Points) == 1 {
					p := seg.Points[0]
					wf("  <circle cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\"/>\n", round2(r.X+p.X), round2(r.Y+p.Y), sw/2, col)
					continue
				}
				wf("  <path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n", pathData(r, seg.Points), col, sw)
			}
		case KindGeo:
			if r.Props.Geo == "ellipse" {
				rx, ry := r.Props.W/2, r.Props.H/2
				wf("  <ellipse cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
					round2(r.X+rx), round2(r.Y+ry), rx, ry, col, sw)
				continue
			}
			wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				round2(r.X), round2(r.Y), r.Props.W, r.Props.H, col, sw)
		case KindText:
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"sans-serif\" font-size=\"%g\" fill=\"%s\">%s</text>\n",
				round2(r.X), round2(r.Y+r.Props.H*0.8), math.Max(r.Props.H*0.8, 12), col, html.EscapeString(r.Props.Text))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, false, fmt.Errorf("build svg: %w", werr)
	}
	return &SVG{SVG: buf.String(), Width: w, Height: h}, true, nil
}

func pathData(r Record, pts []Point) string {
	var b bytes.Buffer
	for i, p := range pts {
		cmd := 'L'
		if i == 0 {
			cmd = 'M'
		}
		fmt.Fprintf(&b, "%c%g %g", cmd, round2(r.X+p.X), round2(r.Y+p.Y))
		if i < len(pts)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
