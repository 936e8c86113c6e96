//go:build fyne && cgo

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
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	ink "inkdraw/internal/canvas"
	"inkdraw/internal/drawing"
)

// eraseTolerance is the eraser reach in widget pixels.
const eraseTolerance = 6

// DrawingCanvas shows a drawing and turns pointer input into store changes:
// drags draw or erase depending on the active tool, the select tool pans and
// the wheel zooms.
type DrawingCanvas struct {
	widget.BaseWidget

	mu       sync.Mutex
	view     viewport
	store    *ink.Store
	ctrl     *drawing.Controller
	style    ink.StrokeStyle
	stroke   string
	moving   []string
	panning  bool
	unlisten func()
}

// NewDrawingCanvas returns an empty canvas.
func NewDrawingCanvas() *DrawingCanvas {
	d := &DrawingCanvas{view: newViewport(), style: ink.StrokeStyle{Color: "black", Size: "m"}}
	d.view.pan(40, 40)
	d.ExtendBaseWidget(d)
	return d
}

// Attach shows store and routes tool input through ctrl. A previous document is released.
func (d *DrawingCanvas) Attach(store *ink.Store, ctrl *drawing.Controller) {
	d.mu.Lock()
	if d.unlisten != nil {
		d.unlisten()
	}
	d.store, d.ctrl, d.stroke = store, ctrl, ""
	d.unlisten = store.Listen(func(ink.ChangeEvent) { fyne.Do(d.Refresh) }, ink.ListenOptions{})
	d.mu.Unlock()
	d.Refresh()
}

// SetStyle changes the style of the next strokes.
func (d *DrawingCanvas) SetStyle(s ink.StrokeStyle) {
	d.mu.Lock()
	d.style = s
	d.mu.Unlock()
}

func (d *DrawingCanvas) snapshot() (ink.Snapshot, viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store == nil {
		return ink.Snapshot{}, d.view
	}
	return d.store.Snapshot(), d.view
}

func (d *DrawingCanvas) tool() ink.Tool {
	if d.ctrl == nil {
		return ink.ToolSelect
	}
	return d.ctrl.State().Tool
}

// Tapped places a dot with the draw tool or erases under the pointer.
func (d *DrawingCanvas) Tapped(e *fyne.PointEvent) {
	if d.store == nil {
		return
	}
	x, y := d.view.toPage(float64(e.Position.X), float64(e.Position.Y))
	switch d.tool() {
	case ink.ToolDraw:
		id := d.store.BeginStroke(x, y, d.style)
		d.store.CompleteStroke(id)
	case ink.ToolEraser:
		d.eraseAt(x, y)
	}
}

// Dragged implements fyne.Draggable.
func (d *DrawingCanvas) Dragged(e *fyne.DragEvent) {
	if d.store == nil {
		return
	}
	x, y := d.view.toPage(float64(e.Position.X), float64(e.Position.Y))
	switch d.tool() {
	case ink.ToolDraw:
		if d.stroke == "" {
			sx, sy := d.view.toPage(float64(e.Position.X-e.Dragged.DX), float64(e.Position.Y-e.Dragged.DY))
			d.stroke = d.store.BeginStroke(sx, sy, d.style)
		}
		d.store.ExtendStroke(d.stroke, x, y)
	case ink.ToolEraser:
		d.eraseAt(x, y)
	default:
		d.dragSelect(e, x, y)
	}
}

// dragSelect moves the shape under the drag start, or pans when there is none.
func (d *DrawingCanvas) dragSelect(e *fyne.DragEvent, x, y float64) {
	snap, v := d.snapshot()
	if d.moving == nil && !d.panning {
		sx, sy := v.toPage(float64(e.Position.X-e.Dragged.DX), float64(e.Position.Y-e.Dragged.DY))
		if ids := hitShapes(snap, sx, sy, eraseTolerance/v.zoom); len(ids) > 0 {
			d.store.Mark()
			d.moving = ids[:1]
		} else {
			d.panning = true
		}
	}
	if d.moving != nil {
		d.store.MoveShapes(float64(e.Dragged.DX)/v.zoom, float64(e.Dragged.DY)/v.zoom, x, y, d.moving...)
		return
	}
	d.mu.Lock()
	d.view.pan(float64(e.Dragged.DX), float64(e.Dragged.DY))
	d.mu.Unlock()
	d.Refresh()
}

// DragEnd completes an in-progress stroke and ends a move or pan.
func (d *DrawingCanvas) DragEnd() {
	if d.stroke != "" && d.store != nil {
		d.store.CompleteStroke(d.stroke)
	}
	d.stroke = ""
	d.moving = nil
	d.panning = false
}

// Scrolled zooms around the pointer.
func (d *DrawingCanvas) Scrolled(e *fyne.ScrollEvent) {
	f := 1 + float64(e.Scrolled.DY)*0.01
	if f <= 0.1 {
		f = 0.1
	}
	d.mu.Lock()
	d.view.zoomAt(float64(e.Position.X), float64(e.Position.Y), f)
	d.mu.Unlock()
	d.Refresh()
}

func (d *DrawingCanvas) eraseAt(x, y float64) {
	snap, v := d.snapshot()
	if ids := hitShapes(snap, x, y, eraseTolerance/v.zoom); len(ids) > 0 {
		d.store.Erase(ids...)
	}
}

// CreateRenderer implements fyne.Widget.
func (d *DrawingCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.White)
	r := &drawingRenderer{dc: d, bg: bg}
	r.rebuild()
	return r
}

type drawingRenderer struct {
	dc      *DrawingCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *drawingRenderer) Destroy()                     {}
func (r *drawingRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *drawingRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 240) }

func (r *drawingRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
}

func (r *drawingRenderer) Refresh() {
	r.rebuild()
	r.Layout(r.dc.Size())
	canvas.Refresh(r.dc)
}

// rebuild regenerates one line object per stroke sample pair.
func (r *drawingRenderer) rebuild() {
	snap, v := r.dc.snapshot()
	lines, texts := sceneOf(snap, v)
	objs := []fyne.CanvasObject{r.bg}
	for _, l := range lines {
		if len(l.pts) == 1 {
			dot := canvas.NewCircle(l.color)
			half := float32(l.width / 2)
			dot.Move(fyne.NewPos(float32(l.pts[0][0])-half, float32(l.pts[0][1])-half))
			dot.Resize(fyne.NewSize(float32(l.width), float32(l.width)))
			objs = append(objs, dot)
			continue
		}
		for i := 0; i+1 < len(l.pts); i++ {
			seg := canvas.NewLine(l.color)
			seg.StrokeWidth = float32(l.width)
			seg.Position1 = fyne.NewPos(float32(l.pts[i][0]), float32(l.pts[i][1]))
			seg.Position2 = fyne.NewPos(float32(l.pts[i+1][0]), float32(l.pts[i+1][1]))
			objs = append(objs, seg)
		}
	}
	for _, t := range texts {
		txt := canvas.NewText(t.text, color.Black)
		txt.TextSize = float32(t.size)
		txt.Move(fyne.NewPos(float32(t.x), float32(t.y)))
		objs = append(objs, txt)
	}
	r.objects = objs
}
