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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ilog "inkdraw/internal/log"
	"inkdraw/internal/storage"
	"inkdraw/internal/version"
)

// ServerConfig holds the read API configuration.
type ServerConfig struct {
	DSN    string
	Addr   string // http bind address, e.g., ":8080"
	Secret string
}

// ServerConfigFromEnv fills unset fields from INK_PG_DSN, INK_BACKEND_ADDR and INK_AUTH_SECRET.
func ServerConfigFromEnv(cfg ServerConfig) ServerConfig {
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("INK_PG_DSN")
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("INK_BACKEND_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("INK_AUTH_SECRET")
	}
	return cfg
}

// Serve runs the read API until ctx is cancelled.
func Serve(ctx context.Context, cfg ServerConfig) error {
	l := ilog.WithComponent("backend")
	cfg = ServerConfigFromEnv(cfg)
	m, err := OpenMirror(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			l.Warn("db close", slog.Any("err", err))
		}
	}()
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret-change-me"
		l.Warn("INK_AUTH_SECRET not set; using insecure dev secret")
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: Handler(m, cfg.Secret), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	l.Info("read api listening", slog.String("addr", cfg.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// Handler returns the read API. m may be nil; data routes then report 503.
func Handler(m *Mirror, secret string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := m.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})

	// POST /api/auth/token → { token, expires_at }
	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
		var req struct {
			Subject    string `json:"subject"`
			TTLSeconds int64  `json:"ttl_seconds"`
		}
		b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		_ = r.Body.Close()
		_ = json.Unmarshal(b, &req)
		if req.Subject == "" {
			req.Subject = "dev"
		}
		if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
			req.TTLSeconds = 3600
		}
		exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		tok, err := signToken(secret, req.Subject, exp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      tok,
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /api/drawings", withAuth(secret, withMirror(m, func(w http.ResponseWriter, r *http.Request, m *Mirror) {
		list, err := m.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []Drawing{}
		}
		writeJSON(w, http.StatusOK, list)
	})))

	// GET /api/drawings/latest?path=Ink/x.drawing
	mux.HandleFunc("GET /api/drawings/latest", withAuth(secret, withMirror(m, func(w http.ResponseWriter, r *http.Request, m *Mirror) {
		p := strings.TrimSpace(r.URL.Query().Get("path"))
		if p == "" {
			writeError(w, http.StatusBadRequest, errors.New("path is required"))
			return
		}
		rev, err := m.Latest(r.Context(), p)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, RevisionEnvelope{
			Path:      rev.Path,
			Version:   rev.Version,
			Kind:      rev.Kind,
			CreatedAt: rev.CreatedAt.UTC(),
			Payload:   json.RawMessage(rev.Payload),
		})
	})))

	// GET /api/search?q=...&path=Ink/
	mux.HandleFunc("GET /api/search", withAuth(secret, withMirror(m, func(w http.ResponseWriter, r *http.Request, m *Mirror) {
		q := storage.SearchQuery{Text: r.URL.Query().Get("q"), Path: r.URL.Query().Get("path")}
		res, err := SearchPG(r.Context(), m.db, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if res == nil {
			res = []storage.SearchResult{}
		}
		writeJSON(w, http.StatusOK, res)
	})))
	return mux
}

// RevisionEnvelope is the wire form of a revision.
type RevisionEnvelope struct {
	Path      string          `json:"path"`
	Version   int64           `json:"version"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// --- Helpers: auth and JSON ---

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	claims := tokenClaims{Sub: subject, Exp: exp.Unix()}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	sig := h.Sum(nil)
	payload := base64.RawURLEncoding.EncodeToString(b)
	signature := base64.RawURLEncoding.EncodeToString(sig)
	return payload + "." + signature, nil
}

func verifyToken(secret, token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", fmt.Errorf("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", fmt.Errorf("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", fmt.Errorf("token expired")
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

func withAuth(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing bearer token"))
			return
		}
		if _, err := verifyToken(secret, strings.TrimSpace(auth[len(prefix):])); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid token"))
			return
		}
		next(w, r)
	}
}

func withMirror(m *Mirror, next func(http.ResponseWriter, *http.Request, *Mirror)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("mirror not configured"))
			return
		}
		next(w, r, m)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
