/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package drawing

import "context"

// SaveKind tells incremental saves from complete ones.
type SaveKind int

const (
	// Incremental saves persist the snapshot only and mark the preview outdated.
	Incremental SaveKind = iota
	// Complete saves also render a fresh preview.
	Complete
)

func (k SaveKind) String() string {
	switch k {
	case Incremental:
		return "incremental"
	case Complete:
		return "complete"
	}
	return "unknown"
}

type kindKey struct{}

// WithSaveKind annotates ctx with the kind of save being performed.
func WithSaveKind(ctx context.Context, k SaveKind) context.Context {
	return context.WithValue(ctx, kindKey{}, k)
}

// SaveKindFrom returns the save kind carried by ctx. Sinks use it to decide
// on backups and preview handling.
func SaveKindFrom(ctx context.Context) (SaveKind, bool) {
	k, ok := ctx.Value(kindKey{}).(SaveKind)
	return k, ok
}
