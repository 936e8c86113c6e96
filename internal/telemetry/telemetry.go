/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry reports opt-in editor events: one per autosave and one per
// CLI command, plus crash reports. Nothing leaves the machine unless the user
// opted in and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "inkdraw/internal/log"
	"inkdraw/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
// - INK_TELEMETRY_OPT_IN: "1", "true", "yes" to enable events
// - INK_TELEMETRY_URL: URL that receives batches of events as a JSON array
// - INK_CRASH_UPLOAD_URL: URL to POST crash reports to
// - INK_TELEMETRY_TIMEOUT_MS: optional request timeout, default 1500ms
// - INK_TELEMETRY_DEBUG: if set, logs send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("INK_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("INK_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("INK_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("INK_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("INK_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

// WithOverrides returns cfg with the opt-in flag and events URL taken from the
// user configuration when they are set there.
func (cfg Config) WithOverrides(optIn bool, eventsURL string) Config {
	cfg.OptIn = cfg.OptIn || optIn
	if cfg.EventsURL == "" {
		cfg.EventsURL = strings.TrimSpace(eventsURL)
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Event is one telemetry record. Fields that do not apply are omitted.
type Event struct {
	Name    string `json:"name"`
	At      string `json:"ts"`
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`

	// save
	Kind    string `json:"kind,omitempty"`
	Preview *bool  `json:"preview,omitempty"`
	// command
	Command string `json:"command,omitempty"`

	Millis int64  `json:"ms"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

const (
	queueSize = 64
	batchMax  = 16
)

// Client queues events and posts them in batches from one goroutine.
// Enqueueing never blocks; a full queue drops the event.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan Event
	pending atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, queueSize),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent at all.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

func (c *Client) enqueue(e Event) {
	if !c.Enabled() {
		return
	}
	e.At = time.Now().UTC().Format(time.RFC3339Nano)
	e.Version = version.String()
	e.OS = runtime.GOOS
	e.Arch = runtime.GOARCH
	c.pending.Add(1)
	select {
	case c.q <- e:
	default:
		c.pending.Add(-1)
	}
}

// SaveEvent reports one autosave: its kind, duration, whether a preview was
// written and the class of its error. File names never leave the machine.
func (c *Client) SaveEvent(kind string, took time.Duration, preview bool, err error) {
	c.enqueue(Event{
		Name:    "save",
		Kind:    kind,
		Preview: &preview,
		Millis:  took.Milliseconds(),
		OK:      err == nil,
		Error:   ErrorClass(err),
	})
}

// CommandEvent reports one CLI command and its outcome.
func (c *Client) CommandEvent(command string, took time.Duration, err error) {
	if command == "" {
		return
	}
	c.enqueue(Event{
		Name:    "command",
		Command: command,
		Millis:  took.Milliseconds(),
		OK:      err == nil,
		Error:   ErrorClass(err),
	})
}

// ErrorClass maps err to a coarse, content-free label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission"
	}
	return "other"
}

// Flush waits until every queued event was sent, ctx ends or the client
// timeout has passed twice over.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	deadline := time.Now().Add(2 * c.cfg.Timeout)
	for c.pending.Load() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the sender. Queued events are dropped.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case e := <-c.q:
			batch := []Event{e}
		fill:
			for len(batch) < batchMax {
				select {
				case e := <-c.q:
					batch = append(batch, e)
				default:
					break fill
				}
			}
			c.post(batch)
			c.pending.Add(-int64(len(batch)))
		}
	}
}

func (c *Client) post(batch []Event) {
	buf, err := json.Marshal(batch)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, c.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Int("events", len(batch)), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry batch sent", slog.Int("events", len(batch)), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report to the crash URL when opted in. It blocks
// for at most the client timeout; the process is about to exit.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(report))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := c.cli.Do(req)
	if err != nil {
		c.log.Warn("crash upload failed", slog.Any("err", err))
		return
	}
	_ = resp.Body.Close()
	c.log.Info("crash report uploaded", slog.Int("status", resp.StatusCode))
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// NewDefault installs the package client used by the functions below.
// It replaces and closes any earlier one.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil {
		old.Close()
	}
}

func def() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SaveEvent reports an autosave through the package client.
func SaveEvent(kind string, took time.Duration, preview bool, err error) {
	def().SaveEvent(kind, took, preview, err)
}

// CommandEvent reports a CLI command through the package client.
func CommandEvent(command string, took time.Duration, err error) {
	def().CommandEvent(command, took, err)
}

// UploadCrash sends a crash report through the package client.
func UploadCrash(report []byte) { def().UploadCrash(report) }

// Flush drains the package client.
func Flush(ctx context.Context) { def().Flush(ctx) }
