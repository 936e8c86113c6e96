/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"inkdraw/internal/storage"
	"inkdraw/internal/telemetry"
)

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestRecover_SavesAndExits(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	target := &fakeTarget{root: t.TempDir()}

	func() {
		defer Recover(target)
		panic("boom")
	}()

	if target.halted != 1 {
		t.Fatalf("SaveAndHalt calls = %d", target.halted)
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	bdir := filepath.Join(target.root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var found string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = filepath.Join(bdir, f.Name())
		}
	}
	if found == "" {
		t.Fatalf("expected crash report file under backups dir")
	}
	b, _ := os.ReadFile(found)
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", b)
	}
}

func TestRecover_ExitsWhenFinalSaveFails(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	target := &fakeTarget{root: t.TempDir(), err: errors.New("disk full")}

	func() {
		defer Recover(target)
		panic("boom")
	}()
	if target.halted != 1 || *code != 2 {
		t.Fatalf("halted=%d code=%d", target.halted, *code)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := stubExit(t)
	target := &fakeTarget{root: t.TempDir()}
	func() {
		defer Recover(target)
	}()
	if target.halted != 0 || *code != -1 {
		t.Fatalf("unexpected side effects: halted=%d code=%d", target.halted, *code)
	}
}

// savingTarget reports its final save the way a session does.
type savingTarget struct{ fakeTarget }

func (s *savingTarget) SaveAndHalt(ctx context.Context) error {
	s.halted++
	telemetry.SaveEvent("complete", time.Millisecond, true, nil)
	return nil
}

func TestRecover_FlushesFinalSaveEventAndUploadsReport(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)

	var mu sync.Mutex
	var events []telemetry.Event
	var crashes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.URL.Path == "/crash" {
			crashes++
			return
		}
		var batch []telemetry.Event
		_ = json.NewDecoder(r.Body).Decode(&batch)
		events = append(events, batch...)
	}))
	defer srv.Close()
	telemetry.NewDefault(telemetry.Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	t.Cleanup(func() { telemetry.NewDefault(telemetry.Config{}) })

	target := &savingTarget{fakeTarget{root: t.TempDir()}}
	func() {
		defer Recover(target)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d", *code)
	}
	mu.Lock()
	defer mu.Unlock()
	if crashes != 1 {
		t.Fatalf("crash uploads = %d, want 1 before exit", crashes)
	}
	if len(events) != 1 || events[0].Name != "save" || events[0].Kind != "complete" {
		t.Fatalf("events before exit = %+v", events)
	}
}
