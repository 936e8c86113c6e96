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
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	ilog "inkdraw/internal/log"
	"inkdraw/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of several vault files.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <vault>/exports/<preset>/.
//   - Per-file outputs are <format>/<file stem>.<ext> inside OutDir.
//   - The cbz format writes one archive, <preset>.cbz, holding every file in order.
//
// Files that fail to load or have nothing to render are skipped and reported.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, png, svg, cbz; empty means preset defaults
	Files   []string // vault relative; empty means every file in the vault
	Scale   float64  // when > 0 overrides the preset raster scale
	OutDir  string
}

// BatchResult lists what a batch produced.
type BatchResult struct {
	Written []string
	Skipped []string
}

// BatchExport runs exports according to the given preset.
func BatchExport(v *storage.Vault, opt BatchOptions) (BatchResult, error) {
	var res BatchResult
	if v == nil {
		return res, fmt.Errorf("vault is nil")
	}
	l := ilog.WithOperation(ilog.WithComponent("export"), "batch").With(slog.String("preset", string(opt.Preset)))

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
		switch formats[i] {
		case "pdf", "png", "svg", "cbz":
		default:
			return res, fmt.Errorf("unknown format: %s", formats[i])
		}
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "default"
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(v.Root, "exports", baseOut)
	}

	files := opt.Files
	if len(files) == 0 {
		all, err := v.List()
		if err != nil {
			return res, err
		}
		files = all
	}
	scale := presetScale(opt.Preset)
	if opt.Scale > 0 {
		scale = opt.Scale
	}

	var pages []Page
	for _, rel := range files {
		d, err := v.ReadDrawing(rel)
		if err != nil {
			l.Warn("skipping unreadable file", slog.String("file", rel), slog.Any("err", err))
			res.Skipped = append(res.Skipped, rel)
			continue
		}
		stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
		pages = append(pages, Page{Name: stem, Snapshot: d.Tldraw})
		for _, f := range formats {
			var out string
			var err error
			switch f {
			case "pdf":
				out = filepath.Join(baseOut, "pdf", stem+".pdf")
				err = WritePDF(d.Tldraw, out, PDFOptions{Title: stem})
			case "png":
				out = filepath.Join(baseOut, "png", stem+".png")
				err = WritePNG(d.Tldraw, out, PNGOptions{Scale: scale})
			case "svg":
				out = filepath.Join(baseOut, "svg", stem+".svg")
				err = WriteSVG(d.Tldraw, out)
			default:
				continue
			}
			if errors.Is(err, ErrEmpty) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("%s %s: %w", f, rel, err)
			}
			res.Written = append(res.Written, out)
		}
	}
	for _, f := range formats {
		if f != "cbz" {
			continue
		}
		out := filepath.Join(baseOut, "cbz", filepath.Base(baseOut)+".cbz")
		err := WriteCBZ(pages, out, CBZOptions{Title: filepath.Base(baseOut), PNG: PNGOptions{Scale: scale}})
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("cbz: %w", err)
		}
		res.Written = append(res.Written, out)
	}
	l.Info("batch export done", slog.Int("written", len(res.Written)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetPrint {
		return 3
	}
	return 1
}
