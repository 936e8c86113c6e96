/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"inkdraw/internal/canvas"
)

// PNGOptions controls raster export behavior.
// - Scale: output pixels per page unit (default 1)
// - MaxSide: when > 0 the longest image side is clamped to it (thumbnails)
// - Background: zero value means white; set A=0 explicitly via Transparent
//
//nolint:revive // clarity is preferred
type PNGOptions struct {
	Scale       float64
	MaxSide     int
	Padding     float64
	Background  color.RGBA
	Transparent bool
}

// ThumbnailOptions are used for cached preview thumbnails.
var ThumbnailOptions = PNGOptions{MaxSide: 256, Padding: DefaultPadding}

// circleSteps is the polygon resolution for round caps and dots.
const circleSteps = 12

// Rasterize draws the shapes of snap into a new RGBA image.
func Rasterize(snap canvas.Snapshot, opt PNGOptions) (*image.RGBA, error) {
	records := shapes(snap)
	pad := opt.Padding
	if pad == 0 {
		pad = DefaultPadding
	}
	f, err := newFrame(records, pad, opt.Scale, opt.MaxSide)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, f.w, f.h))
	if !opt.Transparent {
		bg := opt.Background
		if bg == (color.RGBA{}) {
			bg = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	}
	for _, r := range records {
		drawShape(img, f, r)
	}
	return img, nil
}

// RasterizePNG renders snap and returns the PNG bytes with the image size.
func RasterizePNG(snap canvas.Snapshot, opt PNGOptions) ([]byte, int, int, error) {
	img, err := Rasterize(snap, opt)
	if err != nil {
		return nil, 0, 0, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, 0, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// WritePNG renders snap to a PNG file at outPath.
func WritePNG(snap canvas.Snapshot, outPath string, opt PNGOptions) error {
	data, _, _, err := RasterizePNG(snap, opt)
	if err != nil {
		return err
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func drawShape(img *image.RGBA, f frame, r canvas.Record) {
	col := canvas.ColorRGBA(r.Props.Color)
	hw := canvas.StrokeWidth(r.Props.Size) * f.scale / 2
	if hw < 0.5 {
		hw = 0.5
	}
	switch r.Type {
	case canvas.KindDraw:
		for _, seg := range r.Props.Segments {
			pts := make([][2]float64, len(seg.Points))
			for i, p := range seg.Points {
				x, y := f.pt(r.X+p.X, r.Y+p.Y)
				pts[i] = [2]float64{x, y}
			}
			strokePolyline(img, pts, hw, col, false)
		}
	case canvas.KindGeo:
		x0, y0 := f.pt(r.X, r.Y)
		x1, y1 := f.pt(r.X+r.Props.W, r.Y+r.Props.H)
		if r.Props.Geo == "ellipse" {
			cx, cy := (x0+x1)/2, (y0+y1)/2
			rx, ry := (x1-x0)/2, (y1-y0)/2
			n := 48
			pts := make([][2]float64, n)
			for i := range pts {
				a := 2 * math.Pi * float64(i) / float64(n)
				pts[i] = [2]float64{cx + rx*math.Cos(a), cy + ry*math.Sin(a)}
			}
			strokePolyline(img, pts, hw, col, true)
			return
		}
		strokePolyline(img, [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}, hw, col, true)
	case canvas.KindText:
		x, y := f.pt(r.X, r.Y+r.Props.H*0.8)
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(col),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(int(math.Round(x)), int(math.Round(y))),
		}
		d.DrawString(r.Props.Text)
	}
}

// strokePolyline fills a thick line with round joins. Every polygon is wound
// the same way so overlaps saturate instead of cancelling.
func strokePolyline(img *image.RGBA, pts [][2]float64, hw float64, col color.RGBA, closed bool) {
	if len(pts) == 0 {
		return
	}
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	for _, p := range pts {
		addDot(z, p[0], p[1], hw)
	}
	n := len(pts)
	last := n - 1
	if closed {
		last = n
	}
	for i := 0; i < last; i++ {
		a, c := pts[i], pts[(i+1)%n]
		dx, dy := c[0]-a[0], c[1]-a[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		z.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
		z.LineTo(float32(c[0]+nx), float32(c[1]+ny))
		z.LineTo(float32(c[0]-nx), float32(c[1]-ny))
		z.LineTo(float32(a[0]-nx), float32(a[1]-ny))
		z.ClosePath()
	}
	z.Draw(img, b, image.NewUniform(col), image.Point{})
}

func addDot(z *vector.Rasterizer, x, y, r float64) {
	// same winding as the segment quads
	z.MoveTo(float32(x+r), float32(y))
	for i := 1; i < circleSteps; i++ {
		a := -2 * math.Pi * float64(i) / circleSteps
		z.LineTo(float32(x+r*math.Cos(a)), float32(y+r*math.Sin(a)))
	}
	z.ClosePath()
}
