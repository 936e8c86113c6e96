/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"inkdraw/internal/pagefile"
)

// timestampLayout renders names like "2025.3.4 - 3.07pm".
const timestampLayout = "2006.1.2 - 3.04pm"

// NewTimestampedDrawingPath returns a free path for a new drawing in the vault folder.
func (v *Vault) NewTimestampedDrawingPath() string { return v.newTimestampedPath(DrawingExt) }

// NewTimestampedWritingPath returns a free path for a new writing file in the vault folder.
func (v *Vault) NewTimestampedWritingPath() string { return v.newTimestampedPath(WritingExt) }

func (v *Vault) newTimestampedPath(ext string) string {
	return freePath(v, FolderName+"/"+TimestampName(v.now()), ext)
}

// TimestampName formats t as a file base name.
func TimestampName(t time.Time) string {
	return t.Format(timestampLayout)
}

// freePath appends " (n)" to base until base.ext is free.
func freePath(v *Vault, base, ext string) string {
	candidate := base
	for n := 2; v.Exists(candidate + "." + ext); n++ {
		candidate = fmt.Sprintf("%s (%d)", base, n)
	}
	return candidate + "." + ext
}

// CreateDrawing writes d to a new timestamped drawing path and returns it.
func (v *Vault) CreateDrawing(d pagefile.InkFileData) (string, error) {
	rel := v.NewTimestampedDrawingPath()
	if err := v.WriteDrawing(rel, d, false); err != nil {
		return "", err
	}
	return rel, nil
}

// DuplicateDrawing copies rel to a new timestamped drawing path.
func (v *Vault) DuplicateDrawing(rel string) (string, error) {
	return v.duplicate(rel, DrawingExt)
}

// DuplicateWriting copies rel to a new timestamped writing path.
func (v *Vault) DuplicateWriting(rel string) (string, error) {
	return v.duplicate(rel, WritingExt)
}

func (v *Vault) duplicate(rel, ext string) (string, error) {
	if !v.Exists(rel) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	dst := v.newTimestampedPath(ext)
	if err := v.Copy(rel, dst); err != nil {
		return "", fmt.Errorf("duplicate %s: %w", rel, err)
	}
	return dst, nil
}

// ConvertWritingToDrawing removes the writing container from a writing file and
// renames it to the drawing extension in the same folder. Files that are not
// writing files are returned unchanged.
func (v *Vault) ConvertWritingToDrawing(rel string) (string, error) {
	if strings.TrimPrefix(path.Ext(rel), ".") != WritingExt {
		return rel, nil
	}
	d, err := v.ReadDrawing(rel)
	if err != nil {
		return "", err
	}
	if _, ok := d.Tldraw.Store[pagefile.WritingContainerID]; ok {
		d.Tldraw = pagefile.StripWritingContainer(d.Tldraw)
		if err := v.WriteDrawing(rel, d, true); err != nil {
			return "", fmt.Errorf("strip container: %w", err)
		}
	}
	dst := strings.TrimSuffix(rel, path.Ext(rel)) + "." + DrawingExt
	if err := v.Rename(rel, dst); err != nil {
		return "", err
	}
	return dst, nil
}
