/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inkdraw/internal/backend"
	"inkdraw/internal/canvas"
	"inkdraw/internal/crash"
	"inkdraw/internal/export"
	"inkdraw/internal/pagefile"
	"inkdraw/internal/session"
	"inkdraw/internal/storage"
	"inkdraw/internal/ui"
)

// positional returns the first n args and the rest, or a usage error.
func positional(args []string, n int, what string) ([]string, []string, error) {
	if len(args) < n {
		return nil, nil, usageError(what)
	}
	for _, a := range args[:n] {
		if strings.HasPrefix(a, "-") {
			return nil, nil, usageError(what)
		}
	}
	return args[:n], args[n:], nil
}

func (a *app) openVault(root string) (*storage.Vault, error) {
	v, err := storage.OpenVault(root)
	if err != nil {
		return nil, err
	}
	if a.cfg.Autosave.BackupKeep > 0 {
		v.BackupKeep = a.cfg.Autosave.BackupKeep
	}
	return v, nil
}

func (a *app) cmdNew(args []string) error {
	pos, _, err := positional(args, 1, "new requires <vault>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	rel, err := v.CreateDrawing(pagefile.Empty())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created", rel)
	return nil
}

func (a *app) cmdOpen(args []string) error {
	pos, _, err := positional(args, 2, "open requires <vault> and <file>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	d, err := v.ReadDrawing(pos[1])
	if err != nil {
		return err
	}
	backups, _ := v.Backups(pos[1])
	fmt.Fprintf(a.out, "File: %s\n", pos[1])
	fmt.Fprintf(a.out, "Shapes: %d\n", len(d.Tldraw.ShapeIDs()))
	fmt.Fprintf(a.out, "Plugin version: %s\n", d.Meta.PluginVersion)
	fmt.Fprintf(a.out, "Preview: %v (outdated: %v)\n", d.HasPreview(), d.PreviewOutdated())
	fmt.Fprintf(a.out, "Backups: %d\n", len(backups))
	return nil
}

func (a *app) cmdDuplicate(args []string) error {
	pos, _, err := positional(args, 2, "duplicate requires <vault> and <file>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	var rel string
	if path.Ext(pos[1]) == "."+storage.WritingExt {
		rel, err = v.DuplicateWriting(pos[1])
	} else {
		rel, err = v.DuplicateDrawing(pos[1])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created", rel)
	return nil
}

func (a *app) cmdConvert(args []string) error {
	pos, _, err := positional(args, 2, "convert requires <vault> and <file.writing>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	rel, err := v.ConvertWritingToDrawing(pos[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Converted to", rel)
	return nil
}

func (a *app) cmdHistory(args []string) error {
	pos, rest, err := positional(args, 2, "history requires <vault> and <file>")
	if err != nil {
		return err
	}
	limit := 20
	if len(rest) > 0 {
		if limit, err = strconv.Atoi(rest[0]); err != nil || limit <= 0 {
			return usageError("history limit must be a positive number")
		}
	}
	ix, err := storage.OpenIndex(pos[0])
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()
	snaps, err := ix.ListSnapshots(context.Background(), pos[1], limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(a.out, "No saves recorded for", pos[1])
		return nil
	}
	for _, s := range snaps {
		fmt.Fprintf(a.out, "%s  %-11s  %d bytes\n", s.TS.Local().Format(time.DateTime), s.Kind, len(s.Blob))
	}
	return nil
}

func (a *app) cmdExport(args []string) error {
	pos, rest, err := positional(args, 1, "export requires <vault>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		return a.exportOne(v, rest[0], rest[1:])
	}

	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.out)
	preset := fs.String("preset", "", "web or print")
	formats := fs.String("format", "", "comma separated formats")
	outDir := fs.String("out", "", "output directory")
	scale := fs.Float64("scale", 0, "raster scale")
	if err := fs.Parse(rest); err != nil {
		return usageError(err.Error())
	}
	if *preset == "" {
		return usageError("export requires <file> or --preset")
	}
	opt := export.BatchOptions{Preset: export.PresetName(*preset), Scale: *scale, OutDir: *outDir, Files: fs.Args()}
	if *formats != "" {
		opt.Formats = strings.Split(*formats, ",")
	}
	res, err := export.BatchExport(v, opt)
	if err != nil {
		return err
	}
	for _, w := range res.Written {
		fmt.Fprintln(a.out, "Wrote", w)
	}
	for _, s := range res.Skipped {
		fmt.Fprintln(a.out, "Skipped", s)
	}
	return nil
}

func (a *app) exportOne(v *storage.Vault, rel string, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.out)
	asPNG := fs.Bool("png", false, "export PNG")
	asPDF := fs.Bool("pdf", false, "export PDF")
	asSVG := fs.Bool("svg", false, "export SVG")
	out := fs.String("out", "", "output path")
	scale := fs.Float64("scale", 2, "raster scale")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	d, err := v.ReadDrawing(rel)
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	target := func(ext string) string {
		if *out != "" {
			return *out
		}
		return filepath.Join(v.Root, "exports", stem+"."+ext)
	}
	var written string
	switch {
	case *asPDF:
		written = target("pdf")
		err = export.WritePDF(d.Tldraw, written, export.PDFOptions{Title: stem})
	case *asSVG:
		written = target("svg")
		err = export.WriteSVG(d.Tldraw, written)
	case *asPNG:
		written = target("png")
		err = export.WritePNG(d.Tldraw, written, export.PNGOptions{Scale: *scale, Padding: export.DefaultPadding})
	default:
		return usageError("export requires --png, --pdf or --svg")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Wrote", written)
	return nil
}

func (a *app) cmdSearch(args []string) error {
	pos, rest, err := positional(args, 2, "search requires <vault> and <query>")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(a.out)
	prefix := fs.String("path", "", "folder prefix")
	limit := fs.Int("limit", 50, "max results")
	if err := fs.Parse(rest); err != nil {
		return usageError(err.Error())
	}
	ix, err := storage.OpenIndex(pos[0])
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()
	res, err := ix.Search(context.Background(), storage.SearchQuery{Text: pos[1], Path: *prefix, Limit: *limit})
	if err != nil {
		return err
	}
	for _, r := range res {
		fmt.Fprintf(a.out, "%s  %s\n", r.Path, r.Snippet)
	}
	fmt.Fprintf(a.out, "%d result(s)\n", len(res))
	return nil
}

func (a *app) cmdReindex(args []string) error {
	pos, _, err := positional(args, 1, "reindex requires <vault>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	ix, err := storage.OpenIndex(v.Root)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()
	n, skipped, err := ix.Reindex(context.Background(), v)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Indexed %d file(s)\n", n)
	for _, s := range skipped {
		fmt.Fprintln(a.out, "Skipped", s)
	}
	return nil
}

// cmdDemo draws a few strokes through a live session and reports the saves.
func (a *app) cmdDemo(args []string) error {
	pos, _, err := positional(args, 1, "demo requires <vault>")
	if err != nil {
		return err
	}
	v, err := a.openVault(pos[0])
	if err != nil {
		return err
	}
	ix, err := storage.OpenIndex(v.Root)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()
	rel, err := v.CreateDrawing(pagefile.Empty())
	if err != nil {
		return err
	}
	s, err := session.Open(context.Background(), session.Options{Vault: v, Index: ix, Autosave: a.cfg.Autosave}, rel)
	if err != nil {
		return err
	}
	defer crash.Recover(s)

	fmt.Fprintf(a.out, "Drawing into %s\n", rel)
	store := s.Store()
	for i := 0; i < 3; i++ {
		id := store.BeginStroke(float64(i*60), 0, canvasStyle(i))
		for step := 1; step <= 10; step++ {
			store.ExtendStroke(id, float64(i*60+step*4), float64(step*step))
			time.Sleep(15 * time.Millisecond)
		}
		store.CompleteStroke(id)
		fmt.Fprintf(a.out, "stroke %d done\n", i+1)
	}
	time.Sleep(a.cfg.Autosave.ShortDelay() + 100*time.Millisecond)
	st := s.Controller().Stats()
	fmt.Fprintf(a.out, "after short delay: %d incremental, %d complete\n", st.Incremental, st.Complete)
	time.Sleep(a.cfg.Autosave.LongDelay())
	st = s.Controller().Stats()
	fmt.Fprintf(a.out, "after long delay: %d incremental, %d complete\n", st.Incremental, st.Complete)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.SaveAndHalt(ctx); err != nil {
		return err
	}
	hist, _ := ix.ListSnapshots(ctx, rel, 100)
	fmt.Fprintf(a.out, "halted; %d saves recorded in history\n", len(hist))
	return nil
}

var demoColors = []string{"black", "blue", "red"}

func canvasStyle(i int) canvas.StrokeStyle {
	return canvas.StrokeStyle{Color: demoColors[i%len(demoColors)], Size: "m"}
}

func (a *app) cmdServe(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := backend.ServerConfigFromEnv(backend.ServerConfig{DSN: a.cfg.Backend.DSN, Addr: a.cfg.Backend.Addr})
	if cfg.DSN == "" {
		return errors.New("serve requires a Postgres DSN (backend.dsn or INK_PG_DSN)")
	}
	fmt.Fprintln(a.out, "Listening on", cfg.Addr)
	return backend.Serve(ctx, cfg)
}

func (a *app) cmdRemote(args []string) error {
	if len(args) == 0 {
		return usageError("remote requires list, latest or search")
	}
	if a.cfg.Backend.BaseURL == "" {
		return errors.New("remote requires backend.base_url or INK_BACKEND_URL")
	}
	c := backend.NewClient(a.cfg.Backend.BaseURL, a.token, a.cfg.Backend.Timeout())
	ctx := context.Background()
	if c.Token == "" {
		if _, err := c.Authenticate(ctx, "cli"); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	switch args[0] {
	case "list":
		list, err := c.ListDrawings(ctx)
		if err != nil {
			return err
		}
		for _, d := range list {
			fmt.Fprintf(a.out, "%s  v%d  %s\n", d.Path, d.Version, d.UpdatedAt.Local().Format(time.DateTime))
		}
	case "latest":
		if len(args) < 2 {
			return usageError("remote latest requires <file>")
		}
		rev, err := c.LatestRevision(ctx, args[1])
		if err != nil {
			return err
		}
		d, err := pagefile.Parse(rev.Payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s  v%d  %s  %d shapes\n", rev.Path, rev.Version, rev.Kind, len(d.Tldraw.ShapeIDs()))
	case "search":
		if len(args) < 2 {
			return usageError("remote search requires <query>")
		}
		res, err := c.Search(ctx, storage.SearchQuery{Text: args[1]})
		if err != nil {
			return err
		}
		for _, r := range res {
			fmt.Fprintf(a.out, "%s  %s\n", r.Path, r.Snippet)
		}
	default:
		return usageError("unknown remote command " + args[0])
	}
	return nil
}

func (a *app) cmdUI(args []string) error {
	opts := ui.Options{Config: a.cfg}
	if len(args) > 0 {
		opts.Vault = args[0]
	}
	if len(args) > 1 {
		opts.File = args[1]
	}
	if opts.Vault == "" && a.cfg.Vault.Root == "" {
		return usageError("ui requires <vault> or vault.root in the config")
	}
	return ui.Run(opts)
}
