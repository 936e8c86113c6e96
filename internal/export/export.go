/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders drawings to files outside the vault: PNG through a
// scanline rasterizer, vector PDF, standalone SVG, CBZ archives of several
// drawings, and preset driven batches.
package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"inkdraw/internal/canvas"
)

// ErrEmpty is returned when a drawing has nothing to render.
var ErrEmpty = errors.New("export: drawing has no renderable shapes")

// DefaultPadding is the margin around the shapes, in page units.
const DefaultPadding = canvas.SVGPadding

// shapes returns the renderable shapes of snap in paint order.
func shapes(snap canvas.Snapshot) []canvas.Record {
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

// frame maps page coordinates onto an output surface.
type frame struct {
	box   canvas.Rect
	scale float64
	w, h  int
}

func (f frame) pt(x, y float64) (float64, float64) {
	return (x - f.box.X) * f.scale, (y - f.box.Y) * f.scale
}

// newFrame fits the shapes plus padding. maxSide > 0 caps the longest output side.
func newFrame(records []canvas.Record, padding, scale float64, maxSide int) (frame, error) {
	b, ok := canvas.PageBounds(records)
	if !ok {
		return frame{}, ErrEmpty
	}
	if padding < 0 {
		padding = 0
	}
	if scale <= 0 {
		scale = 1
	}
	box := b.Inset(-padding)
	if maxSide > 0 {
		if longest := math.Max(box.W, box.H) * scale; longest > float64(maxSide) {
			scale = float64(maxSide) / math.Max(box.W, box.H)
		}
	}
	w := int(math.Max(1, math.Ceil(box.W*scale)))
	h := int(math.Max(1, math.Ceil(box.H*scale)))
	return frame{box: box, scale: scale, w: w, h: h}, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}
