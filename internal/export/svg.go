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
	"os"

	"inkdraw/internal/canvas"
)

const xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"

// SVG renders the shapes of snap to a standalone SVG document.
func SVG(snap canvas.Snapshot) ([]byte, error) {
	svg, ok, err := canvas.RenderSVG(shapes(snap))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmpty
	}
	return []byte(xmlHeader + svg.SVG), nil
}

// WriteSVG renders snap to an SVG file at outPath.
func WriteSVG(snap canvas.Snapshot, outPath string) error {
	data, err := SVG(snap)
	if err != nil {
		return err
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
