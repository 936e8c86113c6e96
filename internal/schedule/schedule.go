/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package schedule provides cancellable delayed tasks with a real and a
// virtual clock, and Slot, a last-write-wins holder for one pending task.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Task is a pending delayed call.
type Task interface {
	// Stop prevents the call from running. It reports whether the call was still pending.
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Task
}

// Real schedules on the wall clock using time.AfterFunc.
type Real struct{}

func (Real) AfterFunc(d time.Duration, fn func()) Task { return time.AfterFunc(d, fn) }

// Virtual is a manual clock. Tasks only run inside Advance, on the caller's goroutine.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*vtask
}

type vtask struct {
	v    *Virtual
	due  time.Time
	seq  int
	fn   func()
	done bool
}

// NewVirtual returns a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d < 0 {
		d = 0
	}
	v.seq++
	t := &vtask{v: v, due: v.now.Add(d), seq: v.seq, fn: fn}
	v.tasks = append(v.tasks, t)
	return t
}

func (t *vtask) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.v.removeLocked(t)
	return true
}

func (v *Virtual) removeLocked(t *vtask) {
	for i, x := range v.tasks {
		if x == t {
			v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
			return
		}
	}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Pending returns the number of scheduled tasks that have not run or been stopped.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tasks)
}

// Advance moves the clock forward by d, running every task that falls due in
// due-time order. Tasks scheduled by a running task are honoured if they fall
// inside the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()
	for {
		v.mu.Lock()
		sort.SliceStable(v.tasks, func(i, j int) bool {
			if v.tasks[i].due.Equal(v.tasks[j].due) {
				return v.tasks[i].seq < v.tasks[j].seq
			}
			return v.tasks[i].due.Before(v.tasks[j].due)
		})
		if len(v.tasks) == 0 || v.tasks[0].due.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		t := v.tasks[0]
		v.tasks = v.tasks[1:]
		t.done = true
		v.now = t.due
		v.mu.Unlock()
		t.fn()
	}
}

// Slot holds at most one pending task. Scheduling replaces the pending task.
// A task that was replaced or cancelled never runs its function, even when the
// underlying timer already fired.
type Slot struct {
	mu    sync.Mutex
	sched Scheduler
	task  Task
	gen   uint64
}

// NewSlot returns a slot scheduling on s; nil means Real.
func NewSlot(s Scheduler) *Slot {
	if s == nil {
		s = Real{}
	}
	return &Slot{sched: s}
}

// Schedule stops the pending task, if any, and schedules fn after d.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.Stop()
	}
	s.gen++
	gen := s.gen
	s.task = s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.task = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending task. It reports whether one was pending.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.task == nil {
		return false
	}
	s.task.Stop()
	s.task = nil
	return true
}

// Pending reports whether a task is scheduled and has not yet run.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil
}
