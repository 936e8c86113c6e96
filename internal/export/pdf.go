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
	"fmt"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"inkdraw/internal/canvas"
	"inkdraw/internal/version"
)

// PDFOptions controls PDF export behavior.
// Units are points; one page unit maps to one point unless Scale is set.
// Text uses the built-in Helvetica so nothing needs embedding.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	Title   string
	Scale   float64
	Padding float64
}

// RenderPDF writes a single page vector PDF of snap to w.
func RenderPDF(snap canvas.Snapshot, w io.Writer, opt PDFOptions) error {
	records := shapes(snap)
	pad := opt.Padding
	if pad == 0 {
		pad = DefaultPadding
	}
	f, err := newFrame(records, pad, opt.Scale, 0)
	if err != nil {
		return err
	}
	pw, ph := f.box.W*f.scale, f.box.H*f.scale

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator(version.String(), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: pw, Ht: ph})
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, r := range records {
		col := canvas.ColorRGBA(r.Props.Color)
		pdf.SetDrawColor(int(col.R), int(col.G), int(col.B))
		pdf.SetFillColor(int(col.R), int(col.G), int(col.B))
		pdf.SetTextColor(int(col.R), int(col.G), int(col.B))
		lw := canvas.StrokeWidth(r.Props.Size) * f.scale
		pdf.SetLineWidth(lw)
		switch r.Type {
		case canvas.KindDraw:
			for _, seg := range r.Props.Segments {
				switch len(seg.Points) {
				case 0:
					continue
				case 1:
					x, y := f.pt(r.X+seg.Points[0].X, r.Y+seg.Points[0].Y)
					pdf.Circle(x, y, lw/2, "F")
					continue
				}
				for i, p := range seg.Points {
					x, y := f.pt(r.X+p.X, r.Y+p.Y)
					if i == 0 {
						pdf.MoveTo(x, y)
					} else {
						pdf.LineTo(x, y)
					}
				}
				pdf.DrawPath("D")
			}
		case canvas.KindGeo:
			x, y := f.pt(r.X, r.Y)
			w, h := r.Props.W*f.scale, r.Props.H*f.scale
			if r.Props.Geo == "ellipse" {
				pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, "D")
				continue
			}
			pdf.Rect(x, y, w, h, "D")
		case canvas.KindText:
			size := math.Max(r.Props.H*0.8, 12) * f.scale
			pdf.SetFont("Helvetica", "", size)
			x, y := f.pt(r.X, r.Y+r.Props.H*0.8)
			pdf.Text(x, y, tr(r.Props.Text))
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WritePDF renders snap to a PDF file at outPath.
func WritePDF(snap canvas.Snapshot, outPath string, opt PDFOptions) error {
	if len(shapes(snap)) == 0 {
		return ErrEmpty
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	pdf, err := createFile(outPath)
	if err != nil {
		return err
	}
	if err := RenderPDF(snap, pdf, opt); err != nil {
		_ = pdf.Close()
		return err
	}
	if err := pdf.Close(); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
