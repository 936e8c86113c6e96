/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package drawing hosts the drawing editor controller. It classifies user
// changes coming from a canvas document and persists the document through
// debounced incremental and complete saves, bridges tool and undo state to
// the UI, and owns the mount and teardown lifecycle of one editing session.
//
// A session is single use: Mount once, then Unmount or SaveAndHalt. All saves
// go through one gate, so at most one save is in flight and no save runs
// after teardown returns. Unmount and SaveAndHalt must not be called from
// inside the save sink.
package drawing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkdraw/internal/activity"
	"inkdraw/internal/canvas"
	ilog "inkdraw/internal/log"
	"inkdraw/internal/pagefile"
	"inkdraw/internal/schedule"
)

// Default debounce delays.
const (
	DefaultShortDelay = 500 * time.Millisecond
	DefaultLongDelay  = 2 * time.Second
)

var (
	// ErrSessionEnded is returned once the controller was unmounted or halted.
	ErrSessionEnded = errors.New("drawing: session ended")
	// ErrAlreadyMounted is returned by a second Mount on a live controller.
	ErrAlreadyMounted = errors.New("drawing: already mounted")
	// ErrNoDocument is returned when an operation needs a mounted document.
	ErrNoDocument = errors.New("drawing: no document mounted")
)

// SaveFunc persists one payload.
type SaveFunc func(ctx context.Context, data pagefile.InkFileData) error

// Controls are handed to the embedding host after mount.
type Controls struct {
	Save        func(ctx context.Context) error
	SaveAndHalt func(ctx context.Context) error
}

// Options configure a Controller. Zero values select the defaults.
type Options struct {
	ShortDelay time.Duration
	LongDelay  time.Duration
	Scheduler  schedule.Scheduler
	// Save is the persistence sink. A nil sink builds payloads and drops them.
	Save SaveFunc
	// Embedded locks the camera.
	Embedded bool

	OnReady          func()
	RegisterControls func(Controls)
	// InstantPostProcess runs synchronously when a stroke is completed or erased.
	InstantPostProcess func(doc canvas.Document, ev canvas.ChangeEvent)
	// OnState observes tool and undo availability changes.
	OnState func(UIState)

	Logger *slog.Logger
	// Context is passed to timer driven saves. Defaults to context.Background.
	Context context.Context
}

// Stats counts saves since mount.
type Stats struct {
	Incremental    int
	Complete       int
	Failed         int
	RenderFailures int
}

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateMounted
	stateEnded
)

// Controller drives autosave for one drawing session.
type Controller struct {
	opts  Options
	log   *slog.Logger
	short *schedule.Slot
	long  *schedule.Slot

	// saveMu serializes saves and teardown. Lock order: saveMu, mu, document locks.
	saveMu sync.Mutex

	mu      sync.Mutex
	st      lifecycle
	doc     canvas.Document
	unsubs  []func()
	tool    canvas.Tool
	canUndo bool
	canRedo bool
	stats   Stats
}

// New returns an unmounted controller.
func New(opts Options) *Controller {
	if opts.ShortDelay <= 0 {
		opts.ShortDelay = DefaultShortDelay
	}
	if opts.LongDelay <= 0 {
		opts.LongDelay = DefaultLongDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Real{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	l := opts.Logger
	if l == nil {
		l = ilog.WithComponent("drawing")
	}
	return &Controller{
		opts:  opts,
		log:   l,
		short: schedule.NewSlot(opts.Scheduler),
		long:  schedule.NewSlot(opts.Scheduler),
		tool:  canvas.ToolDraw,
	}
}

// Mount attaches the controller to doc, applies the editor defaults, registers
// the controls and signals readiness.
func (c *Controller) Mount(doc canvas.Document) error {
	if doc == nil {
		return ErrNoDocument
	}
	c.mu.Lock()
	switch c.st {
	case stateMounted:
		c.mu.Unlock()
		return ErrAlreadyMounted
	case stateEnded:
		c.mu.Unlock()
		return ErrSessionEnded
	}
	c.st = stateMounted
	c.doc = doc
	c.tool = canvas.ToolDraw
	c.mu.Unlock()

	doc.UpdateInstanceState(canvas.InstanceState{IsDebugMode: false, CanMoveCamera: !c.opts.Embedded})
	doc.SetCamera(canvas.Camera{X: 0, Y: 0, Z: 1})
	doc.SetCurrentTool(canvas.ToolDraw)

	unsubUser := doc.Listen(c.onUserChange, canvas.ListenOptions{Source: "user", Scope: "all"})
	unsubAll := doc.Listen(c.onAnyChange, canvas.ListenOptions{})

	c.mu.Lock()
	if c.st != stateMounted {
		c.mu.Unlock()
		unsubUser()
		unsubAll()
		return ErrSessionEnded
	}
	c.unsubs = []func(){unsubUser, unsubAll}
	c.canUndo, c.canRedo = doc.CanUndo(), doc.CanRedo()
	c.mu.Unlock()

	c.log.Debug("mounted", slog.Bool("embedded", c.opts.Embedded))
	c.notifyState()
	if c.opts.RegisterControls != nil {
		c.opts.RegisterControls(Controls{Save: c.Save, SaveAndHalt: c.SaveAndHalt})
	}
	if c.opts.OnReady != nil {
		c.opts.OnReady()
	}
	return nil
}

// Unmount cancels pending saves, then detaches the listeners. It waits for an
// in-flight save and is idempotent.
func (c *Controller) Unmount() {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	c.teardownLocked()
}

// teardownLocked requires saveMu.
func (c *Controller) teardownLocked() {
	c.mu.Lock()
	if c.st == stateEnded {
		c.mu.Unlock()
		return
	}
	c.short.Cancel()
	c.long.Cancel()
	unsubs := c.unsubs
	c.unsubs = nil
	c.st = stateEnded
	c.doc = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	c.log.Debug("unmounted")
}

// Save performs a complete save now.
func (c *Controller) Save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	doc, err := c.mountedDoc()
	if err != nil {
		return err
	}
	return c.saveLocked(ctx, doc, Complete)
}

// SaveAndHalt performs exactly one complete save and then unmounts. The
// session is ended even when the save fails; the save error is returned.
func (c *Controller) SaveAndHalt(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	doc, err := c.mountedDoc()
	if err != nil {
		return err
	}
	err = c.saveLocked(ctx, doc, Complete)
	c.teardownLocked()
	if err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}

// Stats returns the save counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Mounted reports whether the controller is attached to a document.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st == stateMounted
}

func (c *Controller) mountedDoc() (canvas.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.st {
	case stateIdle:
		return nil, ErrNoDocument
	case stateEnded:
		return nil, ErrSessionEnded
	}
	return c.doc, nil
}

func (c *Controller) onUserChange(ev canvas.ChangeEvent) {
	act := activity.Classify(ev)
	c.mu.Lock()
	if c.st != stateMounted {
		c.mu.Unlock()
		return
	}
	doc := c.doc
	c.mu.Unlock()

	c.log.Debug("activity", slog.String("activity", act.String()))
	switch act {
	case activity.PointerMoved, activity.CameraMovedAutomatically, activity.CameraMovedManually:
		return
	case activity.DrawingStarted, activity.DrawingContinued:
		c.mu.Lock()
		c.short.Cancel()
		c.long.Cancel()
		c.mu.Unlock()
		return
	}

	if c.opts.InstantPostProcess != nil {
		c.opts.InstantPostProcess(doc, ev)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateMounted {
		return
	}
	c.short.Schedule(c.opts.ShortDelay, func() { c.timerSave(Incremental) })
	c.long.Schedule(c.opts.LongDelay, func() { c.timerSave(Complete) })
}

func (c *Controller) timerSave(kind SaveKind) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	c.mu.Lock()
	if c.st != stateMounted {
		c.mu.Unlock()
		return
	}
	doc := c.doc
	c.mu.Unlock()
	_ = c.saveLocked(c.opts.Context, doc, kind)
}

// saveLocked requires saveMu.
func (c *Controller) saveLocked(ctx context.Context, doc canvas.Document, kind SaveKind) error {
	start := time.Now()
	snap := doc.Snapshot()
	var data pagefile.InkFileData
	switch kind {
	case Incremental:
		data = pagefile.BuildDrawingFileData(pagefile.DrawingOptions{Snapshot: snap, PreviewIsOutdated: true})
	default:
		data = pagefile.BuildDrawingFileData(pagefile.DrawingOptions{Snapshot: snap, PreviewURI: c.renderPreview(ctx, doc)})
	}

	var err error
	if c.opts.Save != nil {
		err = c.opts.Save(WithSaveKind(ctx, kind), data)
	}

	c.mu.Lock()
	if err != nil {
		c.stats.Failed++
	} else if kind == Incremental {
		c.stats.Incremental++
	} else {
		c.stats.Complete++
	}
	c.mu.Unlock()

	l := c.log.With(slog.String("kind", kind.String()), slog.Duration("took", time.Since(start)))
	if err != nil {
		l.Error("save failed", slog.Any("err", err))
		return err
	}
	if kind == Complete {
		l.Info("saved", slog.Bool("preview", data.HasPreview()), slog.Int("shapes", len(snap.ShapeIDs())))
	} else {
		l.Debug("saved")
	}
	return nil
}

// renderPreview returns the SVG preview of the current page, or "" when
// nothing could be rendered. Render failures are logged and counted only.
func (c *Controller) renderPreview(ctx context.Context, doc canvas.Document) (preview string) {
	defer func() {
		if r := recover(); r != nil {
			c.renderFailed(fmt.Errorf("render panic: %v", r))
			preview = ""
		}
	}()
	svg, err := doc.SvgString(ctx, doc.CurrentPageShapeIDs())
	if err != nil {
		c.renderFailed(err)
		return ""
	}
	if svg == nil {
		return ""
	}
	return svg.SVG
}

func (c *Controller) renderFailed(err error) {
	c.mu.Lock()
	c.stats.RenderFailures++
	c.mu.Unlock()
	c.log.Warn("preview render failed; saving without preview", slog.Any("err", err))
}
