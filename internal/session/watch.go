/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"inkdraw/internal/canvas"
	"inkdraw/internal/pagefile"
)

// Watch reloads the drawing whenever its file is replaced by another writer.
// Reloads reach the document as remote changes, so they do not trigger saves.
// It blocks until ctx is done or the session ends.
func (s *Session) Watch(ctx context.Context) error {
	abs, err := s.opts.Vault.Abs(s.rel)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// vault writes replace the file by rename, so watch the folder
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !s.ctrl.Mounted() {
				return nil
			}
			s.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", slog.Any("err", err))
		}
	}
}

// reload applies the file content unless this session wrote it.
func (s *Session) reload() {
	b, err := s.opts.Vault.ReadFile(s.rel)
	if err != nil {
		s.log.Debug("reload skipped", slog.Any("err", err))
		return
	}
	if s.isOwn(b) {
		return
	}
	d, err := pagefile.Parse(b)
	if err != nil {
		// partial writes of other tools show up here; the next event retries
		s.log.Debug("reload skipped", slog.Any("err", err))
		return
	}
	s.mu.Lock()
	s.lastPreview = d.PreviewURI
	s.mu.Unlock()
	s.store.Load(pagefile.PrepareDrawingSnapshot(d.Tldraw), canvas.SourceRemote)
	s.log.Info("reloaded external change")
}
