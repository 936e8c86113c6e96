/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkdraw/internal/storage"
)

func TestClientAgainstFakeServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok-1"})
	})
	mux.HandleFunc("GET /api/drawings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, []Drawing{{ID: 1, Path: "Ink/a.drawing", Version: 3}})
	})
	mux.HandleFunc("GET /api/drawings/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("path") != "Ink/a b.drawing" {
			writeError(w, http.StatusNotFound, ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, RevisionEnvelope{Path: "Ink/a b.drawing", Version: 3, Kind: "complete", Payload: []byte(`{"meta":{}}`)})
	})
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []storage.SearchResult{{DocID: 7, Path: "Ink/a.drawing", Snippet: "[milk]"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL+"/", "", time.Second)
	if _, err := c.ListDrawings(ctx); err == nil {
		t.Fatalf("expected unauthorized error")
	}
	if tok, err := c.Authenticate(ctx, "me"); err != nil || tok != "tok-1" {
		t.Fatalf("Authenticate = %q, %v", tok, err)
	}
	list, err := c.ListDrawings(ctx)
	if err != nil || len(list) != 1 || list[0].Version != 3 {
		t.Fatalf("ListDrawings = %+v, %v", list, err)
	}
	rev, err := c.LatestRevision(ctx, "Ink/a b.drawing")
	if err != nil || rev.Kind != "complete" || string(rev.Payload) != `{"meta":{}}` {
		t.Fatalf("LatestRevision = %+v, %v", rev, err)
	}
	if _, err := c.LatestRevision(ctx, "Ink/missing.drawing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing revision err = %v", err)
	}
	res, err := c.Search(ctx, storage.SearchQuery{Text: "milk"})
	if err != nil || len(res) != 1 || res[0].DocID != 7 {
		t.Fatalf("Search = %+v, %v", res, err)
	}
}
