/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC)

func TestVirtual_RunsInDueOrder(t *testing.T) {
	v := NewVirtual(epoch)
	var order []int
	v.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	v.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	v.AfterFunc(10*time.Millisecond, func() { order = append(order, 2) })

	v.Advance(20 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order after 20ms = %v", order)
	}
	if v.Pending() != 1 {
		t.Fatalf("pending = %d", v.Pending())
	}
	v.Advance(10 * time.Millisecond)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("order after 30ms = %v", order)
	}
	if !v.Now().Equal(epoch.Add(30 * time.Millisecond)) {
		t.Fatalf("now = %v", v.Now())
	}
}

func TestVirtual_StopAndNested(t *testing.T) {
	v := NewVirtual(epoch)
	ran := false
	task := v.AfterFunc(time.Second, func() { ran = true })
	if !task.Stop() {
		t.Fatalf("stop of pending task returned false")
	}
	if task.Stop() {
		t.Fatalf("second stop returned true")
	}
	nested := false
	v.AfterFunc(time.Millisecond, func() {
		v.AfterFunc(time.Millisecond, func() { nested = true })
	})
	v.Advance(2 * time.Second)
	if ran {
		t.Fatalf("stopped task ran")
	}
	if !nested {
		t.Fatalf("task scheduled inside window did not run")
	}
}

func TestSlot_LastWriteWins(t *testing.T) {
	v := NewVirtual(epoch)
	s := NewSlot(v)
	var first, second int32
	s.Schedule(500*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	v.Advance(300 * time.Millisecond)
	s.Schedule(500*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	v.Advance(300 * time.Millisecond)
	if first != 0 || second != 0 {
		t.Fatalf("ran early: first=%d second=%d", first, second)
	}
	if !s.Pending() {
		t.Fatalf("slot not pending")
	}
	v.Advance(200 * time.Millisecond)
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d", first, second)
	}
	if s.Pending() {
		t.Fatalf("slot still pending after fire")
	}
}

func TestSlot_Cancel(t *testing.T) {
	v := NewVirtual(epoch)
	s := NewSlot(v)
	if s.Cancel() {
		t.Fatalf("cancel on empty slot returned true")
	}
	ran := false
	s.Schedule(time.Second, func() { ran = true })
	if !s.Cancel() {
		t.Fatalf("cancel returned false")
	}
	v.Advance(2 * time.Second)
	if ran {
		t.Fatalf("cancelled task ran")
	}
}

// A task whose timer fired but was cancelled before taking the slot lock must not run.
func TestSlot_StaleFireIgnored(t *testing.T) {
	fs := &fakeScheduler{}
	s := NewSlot(fs)
	ran := false
	s.Schedule(time.Second, func() { ran = true })
	s.Cancel()
	fs.fns[0]()
	if ran {
		t.Fatalf("stale fire ran")
	}
}

type fakeScheduler struct{ fns []func() }

type noopTask struct{}

func (noopTask) Stop() bool { return false }

func (f *fakeScheduler) AfterFunc(_ time.Duration, fn func()) Task {
	f.fns = append(f.fns, fn)
	return noopTask{}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("real task did not run")
	}
}
