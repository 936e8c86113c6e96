/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package activity classifies canvas change events into the kind of user
// activity that produced them. The editor uses the classification to decide
// whether to postpone, schedule or skip persistence.
package activity

import "inkdraw/internal/canvas"

// Activity is the closed set of classifications.
type Activity int

const (
	Other Activity = iota
	PointerMoved
	CameraMovedAutomatically
	CameraMovedManually
	DrawingStarted
	DrawingContinued
	DrawingCompleted
	DrawingErased
)

var names = [...]string{
	Other:                    "other",
	PointerMoved:             "pointer_moved",
	CameraMovedAutomatically: "camera_moved_automatically",
	CameraMovedManually:      "camera_moved_manually",
	DrawingStarted:           "drawing_started",
	DrawingContinued:         "drawing_continued",
	DrawingCompleted:         "drawing_completed",
	DrawingErased:            "drawing_erased",
}

func (a Activity) String() string {
	if a < 0 || int(a) >= len(names) {
		return "unknown"
	}
	return names[a]
}

// Summary counts the signals found in one change event.
type Summary struct {
	DrawShapesStarted   int
	DrawShapesContinued int
	DrawShapesCompleted int
	ShapesErased        int
	// ShapesChanged counts shape additions and updates that are not stroke
	// progress: geo and text edits, moves of finished strokes, pastes.
	ShapesChanged int
	PointerUsed   bool
	CameraMoved   bool
}

// Summarize extracts the classification signals from ev.
func Summarize(ev canvas.ChangeEvent) Summary {
	var s Summary
	for _, r := range ev.Changes.Added {
		switch {
		case r.IsDraw() && !r.IsComplete():
			s.DrawShapesStarted++
		case r.TypeName == canvas.TypeShape:
			s.ShapesChanged++
		}
	}
	for _, u := range ev.Changes.Updated {
		switch {
		case u.To.IsDraw() && !u.To.IsComplete():
			s.DrawShapesContinued++
		case u.To.IsDraw() && !(u.From.IsDraw() && u.From.IsComplete()):
			s.DrawShapesCompleted++
		case u.To.TypeName == canvas.TypeShape:
			s.ShapesChanged++
		case u.To.TypeName == canvas.TypePointer:
			s.PointerUsed = true
		case u.To.TypeName == canvas.TypeCamera:
			s.CameraMoved = true
		}
	}
	for _, r := range ev.Changes.Removed {
		if r.TypeName == canvas.TypeShape {
			s.ShapesErased++
		}
	}
	return s
}

// Activity maps the summary to a single activity.
// Drawing signals win over erasing. Camera and pointer moves count only when
// no shape changed; otherwise the event is Other.
func (s Summary) Activity() Activity {
	switch {
	case s.DrawShapesCompleted > 0:
		return DrawingCompleted
	case s.DrawShapesStarted > 0:
		return DrawingStarted
	case s.DrawShapesContinued > 0:
		return DrawingContinued
	case s.ShapesErased > 0:
		return DrawingErased
	case s.ShapesChanged > 0:
		return Other
	case s.CameraMoved && s.PointerUsed:
		return CameraMovedManually
	case s.CameraMoved:
		return CameraMovedAutomatically
	case s.PointerUsed:
		return PointerMoved
	}
	return Other
}

// Classify returns the activity for ev. It is pure and total.
func Classify(ev canvas.ChangeEvent) Activity {
	return Summarize(ev).Activity()
}
