/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage implements vault persistence and indexing.
// It reads and writes ink files with transactional writes and timestamped backups,
// and provides the file helpers used to create, duplicate and convert drawings.
// It also manages the per-vault embedded SQLite index at <vault>/.ink/index.sqlite
// holding the save history, the preview cache and a full-text index of text shapes.
// Except for the save history the index is derived from the files and can be rebuilt.
package storage
