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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"inkdraw/internal/backend"
	"inkdraw/internal/crash"
	"inkdraw/internal/drawing"
	"inkdraw/internal/export"
	applog "inkdraw/internal/log"
	"inkdraw/internal/pagefile"
	"inkdraw/internal/session"
	"inkdraw/internal/storage"
)

// current tracks the open session for crash recovery and menu actions.
type current struct {
	mu    sync.Mutex
	root  string
	s     *session.Session
	watch context.CancelFunc
}

func (c *current) get() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// set replaces the session and restarts the file watcher.
func (c *current) set(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watch != nil {
		c.watch()
	}
	c.s = s
	ctx, cancel := context.WithCancel(context.Background())
	c.watch = cancel
	go func() {
		if err := s.Watch(ctx); err != nil {
			applog.WithComponent("ui").Warn("watch stopped", slog.Any("err", err))
		}
	}()
}

func (c *current) Root() string { return c.root }

func (c *current) Path() string {
	if s := c.get(); s != nil {
		return s.Path()
	}
	return ""
}

func (c *current) SaveAndHalt(ctx context.Context) error {
	s := c.get()
	if s == nil {
		return nil
	}
	return s.SaveAndHalt(ctx)
}

// Run starts the Fyne desktop editor on one drawing of the vault.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	root := opts.Vault
	if root == "" {
		root = opts.Config.Vault.Root
	}
	v, err := storage.OpenVault(root)
	if err != nil {
		return err
	}
	if opts.Config.Autosave.BackupKeep > 0 {
		v.BackupKeep = opts.Config.Autosave.BackupKeep
	}
	cur := &current{root: v.Root}
	defer crash.Recover(cur)

	ix, err := storage.OpenIndex(v.Root)
	if err != nil {
		l.Warn("index unavailable; history and previews disabled", slog.Any("err", err))
		ix = nil
	} else {
		defer func() { _ = ix.Close() }()
	}
	var mirror session.Mirror
	if dsn := opts.Config.Backend.DSN; dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Config.Backend.Timeout())
		m, merr := backend.OpenMirror(ctx, dsn)
		cancel()
		if merr != nil {
			l.Warn("postgres mirror unavailable", slog.Any("err", merr))
		} else {
			mirror = m
			defer func() { _ = m.Close() }()
		}
	}

	rel := opts.File
	if rel == "" {
		if rel, err = v.CreateDrawing(pagefile.Empty()); err != nil {
			return err
		}
	}

	fyneApp := app.NewWithID("inkdraw")
	w := fyneApp.NewWindow("inkdraw")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1100), 640)
	winH := max(prefs.IntWithFallback("window.height", 760), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	dc := NewDrawingCanvas()

	sessOpts := session.Options{
		Vault:    v,
		Index:    ix,
		Mirror:   mirror,
		Autosave: opts.Config.Autosave,
		OnState: func(st drawing.UIState) {
			fyne.Do(func() { status.SetText(stateText(st)) })
		},
	}
	show := func(s *session.Session) {
		cur.set(s)
		dc.Attach(s.Store(), s.Controller())
		w.SetTitle("inkdraw: " + s.Path())
		addRecentFile(prefs, filepath.Join(v.Root, filepath.FromSlash(s.Path())))
	}
	s, err := session.Open(context.Background(), sessOpts, rel)
	if err != nil {
		return err
	}
	show(s)

	switchTo := func(next string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ns, serr := cur.get().Switch(ctx, next)
		if serr != nil {
			l.Error("switch failed", slog.Any("err", serr), slog.String("to", next))
			dialog.ShowError(serr, w)
			return
		}
		show(ns)
	}
	withSession := func(fn func(*session.Session)) func() {
		return func() {
			if s := cur.get(); s != nil {
				fn(s)
			}
		}
	}
	saveNow := withSession(func(s *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Save(ctx); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + s.Path())
	})

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.ViewFullScreenIcon(), withSession(func(s *session.Session) { s.Controller().ActivateSelectTool() })),
		widget.NewToolbarAction(theme.DocumentCreateIcon(), withSession(func(s *session.Session) { s.Controller().ActivateDrawTool() })),
		widget.NewToolbarAction(theme.DeleteIcon(), withSession(func(s *session.Session) { s.Controller().ActivateEraseTool() })),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), withSession(func(s *session.Session) { s.Controller().Undo() })),
		widget.NewToolbarAction(theme.ContentRedoIcon(), withSession(func(s *session.Session) { s.Controller().Redo() })),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), saveNow),
	)

	newItem := fyne.NewMenuItem("New Drawing", func() {
		next, err := v.CreateDrawing(pagefile.Empty())
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		switchTo(next)
	})
	openItem := fyne.NewMenuItem("Open…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			_ = rc.Close()
			next, rerr := v.Rel(rc.URI().Path())
			if rerr != nil {
				dialog.ShowError(rerr, w)
				return
			}
			switchTo(next)
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{"." + storage.DrawingExt}))
		if lister, lerr := fstorage.ListerForURI(fstorage.NewFileURI(filepath.Join(v.Root, storage.FolderName))); lerr == nil {
			fd.SetLocation(lister)
		}
		fd.Show()
	})
	dupItem := fyne.NewMenuItem("Duplicate", withSession(func(s *session.Session) {
		if err := s.Save(context.Background()); err != nil {
			dialog.ShowError(err, w)
			return
		}
		next, err := v.DuplicateDrawing(s.Path())
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		switchTo(next)
	}))
	saveItem := fyne.NewMenuItem("Save", saveNow)
	exportPNG := fyne.NewMenuItem("Export PNG", withSession(func(s *session.Session) {
		out := exportPath(v, s.Path(), "png")
		if err := export.WritePNG(s.Store().Snapshot(), out, export.PNGOptions{Scale: 2, Padding: export.DefaultPadding}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		dialog.ShowInformation("Export PNG", "Exported to "+out, w)
	}))
	exportPDF := fyne.NewMenuItem("Export PDF", withSession(func(s *session.Session) {
		out := exportPath(v, s.Path(), "pdf")
		if err := export.WritePDF(s.Store().Snapshot(), out, export.PDFOptions{Title: s.Path()}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		dialog.ShowInformation("Export PDF", "Exported to "+out, w)
	}))
	var recentItems []*fyne.MenuItem
	for _, p := range loadRecentFiles(prefs) {
		abs := p
		recentItems = append(recentItems, fyne.NewMenuItem(filepath.Base(abs), func() {
			next, err := v.Rel(abs)
			if err != nil {
				dialog.ShowError(fmt.Errorf("%s is not in this vault", abs), w)
				return
			}
			switchTo(next)
		}))
	}
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = fyne.NewMenu("", recentItems...)
	recentItem.Disabled = len(recentItems) == 0

	newItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierControl}
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		withSession(func(s *session.Session) { s.Controller().Undo() })()
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		withSession(func(s *session.Session) { s.Controller().Redo() })()
	})
	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File", newItem, openItem, recentItem, dupItem, fyne.NewMenuItemSeparator(), saveItem, exportPNG, exportPDF),
	))

	w.SetContent(container.NewBorder(toolbar, status, nil, nil, dc))
	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cur.SaveAndHalt(ctx); err != nil && !errors.Is(err, drawing.ErrSessionEnded) {
			l.Error("final save failed", slog.Any("err", err))
		}
		w.Close()
	})

	w.ShowAndRun()
	return nil
}

func stateText(st drawing.UIState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s", st.Tool)
	if st.CanUndo {
		b.WriteString("  ·  undo")
	}
	if st.CanRedo {
		b.WriteString("  ·  redo")
	}
	return b.String()
}

// exportPath returns <vault>/exports/<stem>.<ext>.
func exportPath(v *storage.Vault, rel, ext string) string {
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	return filepath.Join(v.Root, "exports", stem+"."+ext)
}

// Recent file persistence.
const recentPrefsKey = "recent.files"
const recentMax = 10

func loadRecentFiles(p fyne.Preferences) []string {
	var items []string
	if raw := p.StringWithFallback(recentPrefsKey, ""); strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func addRecentFile(p fyne.Preferences, abs string) {
	out := []string{abs}
	for _, s := range loadRecentFiles(p) {
		// case-insensitive on Windows
		if !strings.EqualFold(s, abs) {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	b, _ := json.Marshal(out)
	p.SetString(recentPrefsKey, string(b))
}
