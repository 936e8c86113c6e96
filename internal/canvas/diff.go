/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

// Source identifies who caused a change.
type Source string

const (
	// SourceUser marks changes made locally through the editor, including undo and redo.
	SourceUser Source = "user"
	// SourceRemote marks changes applied from outside the editor, such as a file reload.
	SourceRemote Source = "remote"
)

// Update is the before/after pair of an updated record.
type Update struct {
	From Record `json:"from"`
	To   Record `json:"to"`
}

// Diff is the set of record changes produced by one store transaction.
type Diff struct {
	Added   map[string]Record `json:"added"`
	Updated map[string]Update `json:"updated"`
	Removed map[string]Record `json:"removed"`
}

// NewDiff returns an empty diff with allocated maps.
func NewDiff() Diff {
	return Diff{
		Added:   map[string]Record{},
		Updated: map[string]Update{},
		Removed: map[string]Record{},
	}
}

// IsEmpty reports whether the diff carries no change.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// ChangeEvent is one history entry emitted by the document store.
type ChangeEvent struct {
	Changes Diff   `json:"changes"`
	Source  Source `json:"source"`
}

// ListenOptions filters which changes a listener receives.
type ListenOptions struct {
	// Source is "user", "remote" or "all" (empty means all).
	Source string
	// Scope is "document", "session" or "all" (empty means all).
	Scope string
}

func (o ListenOptions) accepts(src Source) bool {
	return o.Source == "" || o.Source == "all" || o.Source == string(src)
}

func (o ListenOptions) keeps(r Record) bool {
	return o.Scope == "" || o.Scope == "all" || o.Scope == string(r.Scope())
}

// filter narrows ev to what the options accept. ok is false when nothing remains.
func (o ListenOptions) filter(ev ChangeEvent) (ChangeEvent, bool) {
	if !o.accepts(ev.Source) {
		return ChangeEvent{}, false
	}
	if o.Scope == "" || o.Scope == "all" {
		return ev, !ev.Changes.IsEmpty()
	}
	out := ChangeEvent{Source: ev.Source, Changes: NewDiff()}
	for id, r := range ev.Changes.Added {
		if o.keeps(r) {
			out.Changes.Added[id] = r
		}
	}
	for id, u := range ev.Changes.Updated {
		if o.keeps(u.To) {
			out.Changes.Updated[id] = u
		}
	}
	for id, r := range ev.Changes.Removed {
		if o.keeps(r) {
			out.Changes.Removed[id] = r
		}
	}
	return out, !out.Changes.IsEmpty()
}
