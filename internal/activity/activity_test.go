/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package activity

import (
	"testing"

	"inkdraw/internal/canvas"
)

func draw(id string, complete bool) canvas.Record {
	return canvas.Record{
		ID: id, TypeName: canvas.TypeShape, Type: canvas.KindDraw,
		Props: &canvas.Props{IsComplete: canvas.Bool(complete)},
	}
}

func pointer(x float64) canvas.Record {
	return canvas.Record{ID: canvas.PointerID, TypeName: canvas.TypePointer, X: x}
}

func camera(x float64) canvas.Record {
	return canvas.Record{ID: canvas.CameraID, TypeName: canvas.TypeCamera, X: x}
}

func geo(id string, w float64) canvas.Record {
	return canvas.Record{ID: id, TypeName: canvas.TypeShape, Type: canvas.KindGeo, Props: &canvas.Props{W: w, H: 10}}
}

func text(id, s string) canvas.Record {
	return canvas.Record{ID: id, TypeName: canvas.TypeShape, Type: canvas.KindText, Props: &canvas.Props{Text: s}}
}

func ev(fn func(d *canvas.Diff)) canvas.ChangeEvent {
	d := canvas.NewDiff()
	fn(&d)
	return canvas.ChangeEvent{Changes: d, Source: canvas.SourceUser}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		ev   canvas.ChangeEvent
		want Activity
	}{
		{"empty", ev(func(d *canvas.Diff) {}), Other},
		{"started", ev(func(d *canvas.Diff) { d.Added["a"] = draw("a", false) }), DrawingStarted},
		{"added complete draw", ev(func(d *canvas.Diff) { d.Added["a"] = draw("a", true) }), Other},
		{"continued", ev(func(d *canvas.Diff) {
			d.Updated["a"] = canvas.Update{From: draw("a", false), To: draw("a", false)}
		}), DrawingContinued},
		{"completed", ev(func(d *canvas.Diff) {
			d.Updated["a"] = canvas.Update{From: draw("a", false), To: draw("a", true)}
		}), DrawingCompleted},
		{"erased", ev(func(d *canvas.Diff) { d.Removed["a"] = draw("a", true) }), DrawingErased},
		{"pointer", ev(func(d *canvas.Diff) {
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), PointerMoved},
		{"camera auto", ev(func(d *canvas.Diff) {
			d.Updated[canvas.CameraID] = canvas.Update{From: camera(0), To: camera(1)}
		}), CameraMovedAutomatically},
		{"camera manual", ev(func(d *canvas.Diff) {
			d.Updated[canvas.CameraID] = canvas.Update{From: camera(0), To: camera(1)}
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), CameraMovedManually},
		{"continued with pointer", ev(func(d *canvas.Diff) {
			d.Updated["a"] = canvas.Update{From: draw("a", false), To: draw("a", false)}
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), DrawingContinued},
		{"completed beats started", ev(func(d *canvas.Diff) {
			d.Added["b"] = draw("b", false)
			d.Updated["a"] = canvas.Update{From: draw("a", false), To: draw("a", true)}
		}), DrawingCompleted},
		{"started beats erased", ev(func(d *canvas.Diff) {
			d.Added["b"] = draw("b", false)
			d.Removed["a"] = draw("a", true)
		}), DrawingStarted},
		{"geo added", ev(func(d *canvas.Diff) {
			d.Added["g"] = canvas.Record{ID: "g", TypeName: canvas.TypeShape, Type: canvas.KindGeo}
		}), Other},
		{"geo resize with pointer", ev(func(d *canvas.Diff) {
			d.Updated["g"] = canvas.Update{From: geo("g", 10), To: geo("g", 40)}
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), Other},
		{"geo added with camera", ev(func(d *canvas.Diff) {
			d.Added["g"] = geo("g", 10)
			d.Updated[canvas.CameraID] = canvas.Update{From: camera(0), To: camera(1)}
		}), Other},
		{"text edit with camera and pointer", ev(func(d *canvas.Diff) {
			d.Updated["t"] = canvas.Update{From: text("t", "a"), To: text("t", "ab")}
			d.Updated[canvas.CameraID] = canvas.Update{From: camera(0), To: camera(1)}
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), Other},
		{"finished stroke moved", ev(func(d *canvas.Diff) {
			from, to := draw("a", true), draw("a", true)
			to.X = 25
			d.Updated["a"] = canvas.Update{From: from, To: to}
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), Other},
		{"pasted complete stroke with pointer", ev(func(d *canvas.Diff) {
			d.Added["a"] = draw("a", true)
			d.Updated[canvas.PointerID] = canvas.Update{From: pointer(0), To: pointer(1)}
		}), Other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.ev); got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassify_StoreStroke(t *testing.T) {
	s := canvas.NewStore(canvas.Snapshot{}, canvas.StoreOptions{})
	var got []Activity
	unsub := s.Listen(func(e canvas.ChangeEvent) { got = append(got, Classify(e)) }, canvas.ListenOptions{Source: "user"})
	defer unsub()

	id := s.BeginStroke(0, 0, canvas.StrokeStyle{})
	s.ExtendStroke(id, 5, 5)
	s.CompleteStroke(id)
	s.MovePointer(9, 9)
	s.Erase(id)

	want := []Activity{DrawingStarted, DrawingContinued, DrawingCompleted, PointerMoved, DrawingErased}
	if len(got) != len(want) {
		t.Fatalf("activities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activity[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestClassify_StoreMoveIsNotPointerOnly(t *testing.T) {
	s := canvas.NewStore(canvas.Snapshot{}, canvas.StoreOptions{})
	geoID := s.AddShape(geo("", 10))
	stroke := s.BeginStroke(0, 0, canvas.StrokeStyle{})
	s.CompleteStroke(stroke)

	var got []Activity
	unsub := s.Listen(func(e canvas.ChangeEvent) { got = append(got, Classify(e)) }, canvas.ListenOptions{Source: "user"})
	defer unsub()

	s.MoveShapes(5, 5, 50, 50, geoID)
	s.MoveShapes(5, 5, 60, 60, stroke)
	s.MovePointer(70, 70)

	want := []Activity{Other, Other, PointerMoved}
	if len(got) != len(want) {
		t.Fatalf("activities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activity[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestActivityString(t *testing.T) {
	if DrawingCompleted.String() != "drawing_completed" {
		t.Fatalf("String = %q", DrawingCompleted.String())
	}
	if Activity(99).String() != "unknown" {
		t.Fatalf("out of range String = %q", Activity(99).String())
	}
}
