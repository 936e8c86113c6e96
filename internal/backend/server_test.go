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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := signToken("s", "alice", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := verifyToken("s", tok)
	if err != nil || sub != "alice" {
		t.Fatalf("verify = %q, %v", sub, err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatalf("expected bad signature")
	}
	old, _ := signToken("s", "alice", time.Now().Add(-time.Minute))
	if _, err := verifyToken("s", old); err == nil {
		t.Fatalf("expected expired token error")
	}
	if _, err := verifyToken("s", "garbage"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestHandlerHealthAndAuth(t *testing.T) {
	srv := httptest.NewServer(Handler(nil, "secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	_ = resp.Body.Close()
	resp, _ = http.Get(srv.URL + "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/api/drawings")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/auth/token", "application/json", strings.NewReader(`{"subject":"bob","ttl_seconds":60}`))
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	var tok struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&tok)
	_ = resp.Body.Close()
	if sub, err := verifyToken("secret", tok.Token); err != nil || sub != "bob" {
		t.Fatalf("issued token: %q %v", sub, err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/drawings", nil)
	req.Header.Set("Authorization", "bearer "+tok.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	_ = resp.Body.Close()
	// authenticated, but no mirror behind the handler
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("list without mirror = %d", resp.StatusCode)
	}

	resp, _ = http.Post(srv.URL+"/api/drawings", "application/json", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST list = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_documents.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("nounderscore.sql"); err == nil {
		t.Fatalf("expected error")
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) < 2 {
		t.Fatalf("embedded migrations: %v %d", err, len(entries))
	}
}
