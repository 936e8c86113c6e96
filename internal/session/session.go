/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session hosts one drawing of a vault in an editing session. It
// wires the autosave controller to the vault file, the local index, the
// optional Postgres mirror and telemetry, and reloads the drawing when it is
// changed on disk by someone else.
package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkdraw/internal/canvas"
	"inkdraw/internal/config"
	"inkdraw/internal/drawing"
	"inkdraw/internal/export"
	ilog "inkdraw/internal/log"
	"inkdraw/internal/pagefile"
	"inkdraw/internal/schedule"
	"inkdraw/internal/storage"
	"inkdraw/internal/telemetry"
	"inkdraw/internal/undo"
)

// Mirror receives every successful save. *backend.Mirror implements it.
type Mirror interface {
	Put(ctx context.Context, path, kind string, data pagefile.InkFileData) (int64, error)
}

// EventFunc reports one save attempt.
type EventFunc func(kind string, took time.Duration, preview bool, err error)

// Options configure Open.
type Options struct {
	Vault *storage.Vault
	// Index is optional; without it no history, previews or search entries are kept.
	Index *storage.Index
	// Mirror is optional.
	Mirror   Mirror
	Autosave config.AutosaveConfig

	Scheduler schedule.Scheduler
	OnState   func(drawing.UIState)
	// Events defaults to telemetry.SaveEvent.
	Events EventFunc
	Logger *slog.Logger
	Now    func() time.Time
}

const ownWritesKept = 8

// Session is one open drawing.
type Session struct {
	opts  Options
	rel   string
	log   *slog.Logger
	store *canvas.Store
	ctrl  *drawing.Controller

	mu          sync.Mutex
	lastPreview string
	own         [][sha256.Size]byte
}

// Open reads rel from the vault and mounts an autosaving controller on it.
func Open(ctx context.Context, opts Options, rel string) (*Session, error) {
	if opts.Vault == nil {
		return nil, errors.New("session: vault is required")
	}
	if opts.Events == nil {
		opts.Events = telemetry.SaveEvent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = ilog.WithComponent("session")
	}
	data, err := opts.Vault.ReadDrawing(rel)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	s := &Session{
		opts:        opts,
		rel:         rel,
		log:         opts.Logger.With(slog.String("file", rel)),
		store:       canvas.NewStore(pagefile.PrepareDrawingSnapshot(data.Tldraw), canvas.StoreOptions{History: undo.Config{MaxDepth: opts.Autosave.UndoDepth}}),
		lastPreview: data.PreviewURI,
	}
	s.ctrl = drawing.New(drawing.Options{
		ShortDelay: opts.Autosave.ShortDelay(),
		LongDelay:  opts.Autosave.LongDelay(),
		Scheduler:  opts.Scheduler,
		Save:       s.persist,
		Embedded:   opts.Autosave.Embedded,
		OnState:    opts.OnState,
		Logger:     s.log,
		Context:    context.WithoutCancel(ctx),
	})
	if err := s.ctrl.Mount(s.store); err != nil {
		return nil, err
	}
	s.log.Info("opened", slog.Int("shapes", len(s.store.Snapshot().ShapeIDs())))
	return s, nil
}

// Root returns the vault directory.
func (s *Session) Root() string { return s.opts.Vault.Root }

// Path returns the vault-relative path of the drawing.
func (s *Session) Path() string { return s.rel }

// Store returns the live document.
func (s *Session) Store() *canvas.Store { return s.store }

// Controller returns the autosave controller.
func (s *Session) Controller() *drawing.Controller { return s.ctrl }

// Save performs a complete save now.
func (s *Session) Save(ctx context.Context) error { return s.ctrl.Save(ctx) }

// SaveAndHalt saves once more and ends the session.
func (s *Session) SaveAndHalt(ctx context.Context) error { return s.ctrl.SaveAndHalt(ctx) }

// Close ends the session without saving. Pending saves are dropped.
func (s *Session) Close() { s.ctrl.Unmount() }

// Switch ends s with a final save and opens rel with the same options. When
// the final save fails, rel is not opened.
func (s *Session) Switch(ctx context.Context, rel string) (*Session, error) {
	if err := s.SaveAndHalt(ctx); err != nil && !errors.Is(err, drawing.ErrSessionEnded) {
		return nil, fmt.Errorf("switch from %s: %w", s.rel, err)
	}
	return Open(ctx, s.opts, rel)
}

// persist is the controller's save sink. The file write decides the outcome;
// index, preview and mirror updates are best effort.
func (s *Session) persist(ctx context.Context, data pagefile.InkFileData) (err error) {
	start := time.Now()
	kind, _ := drawing.SaveKindFrom(ctx)
	defer func() { s.opts.Events(kind.String(), time.Since(start), data.HasPreview(), err) }()

	s.mu.Lock()
	if kind == drawing.Incremental {
		if s.lastPreview != "" {
			data = data.WithPreview(s.lastPreview, true)
		}
	} else if data.HasPreview() {
		s.lastPreview = data.PreviewURI
	}
	s.mu.Unlock()

	b, err := pagefile.Marshal(data)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	s.rememberOwn(b)
	if err := s.opts.Vault.WriteFile(s.rel, b, kind == drawing.Complete); err != nil {
		return err
	}

	if ix := s.opts.Index; ix != nil {
		s.updateIndex(ctx, ix, kind, data, b)
	}
	if s.opts.Mirror != nil {
		if _, err := s.opts.Mirror.Put(ctx, s.rel, kind.String(), data); err != nil {
			s.log.Warn("mirror save failed", slog.Any("err", err))
		}
	}
	return nil
}

func (s *Session) updateIndex(ctx context.Context, ix *storage.Index, kind drawing.SaveKind, data pagefile.InkFileData, blob []byte) {
	if err := ix.SaveSnapshot(ctx, s.rel, kind.String(), blob, s.opts.Now()); err != nil {
		s.log.Warn("record history failed", slog.Any("err", err))
	} else if keep := s.opts.Autosave.HistoryKeep; keep > 0 {
		if _, err := ix.PruneSnapshots(ctx, s.rel, keep); err != nil {
			s.log.Warn("prune history failed", slog.Any("err", err))
		}
	}
	if kind != drawing.Complete {
		return
	}
	if data.HasPreview() {
		if err := ix.PutPreview(ctx, s.rel, storage.PreviewKindSVG, 0, 0, []byte(data.PreviewURI)); err != nil {
			s.log.Warn("cache svg preview failed", slog.Any("err", err))
		}
	}
	png, w, h, err := export.RasterizePNG(data.Tldraw, export.ThumbnailOptions)
	switch {
	case errors.Is(err, export.ErrEmpty):
	case err != nil:
		s.log.Warn("render thumbnail failed", slog.Any("err", err))
	default:
		if err := ix.PutPreview(ctx, s.rel, storage.PreviewKindPNG, w, h, png); err != nil {
			s.log.Warn("cache thumbnail failed", slog.Any("err", err))
		}
	}
	if err := ix.IndexDrawing(ctx, s.rel, data.Tldraw); err != nil {
		s.log.Warn("update search index failed", slog.Any("err", err))
	}
}

func (s *Session) rememberOwn(b []byte) {
	sum := sha256.Sum256(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.own = append(s.own, sum)
	if len(s.own) > ownWritesKept {
		s.own = s.own[len(s.own)-ownWritesKept:]
	}
}

func (s *Session) isOwn(b []byte) bool {
	sum := sha256.Sum256(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.own {
		if h == sum {
			return true
		}
	}
	return false
}
