/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ilog "inkdraw/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Autosave      AutosaveConfig `yaml:"autosave"`
	Vault         VaultConfig    `yaml:"vault"`
	Backend       BackendConfig  `yaml:"backend"`
	Logging       LoggingConfig  `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	TelemetryURL   string `yaml:"telemetry_url"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

// AutosaveConfig tunes the drawing controller and the save history.
type AutosaveConfig struct {
	ShortDelayMs int  `yaml:"short_delay_ms"`
	LongDelayMs  int  `yaml:"long_delay_ms"`
	HistoryKeep  int  `yaml:"history_keep"`
	BackupKeep   int  `yaml:"backup_keep"`
	UndoDepth    int  `yaml:"undo_depth"`
	Embedded     bool `yaml:"embedded"`
}

type VaultConfig struct {
	Root string `yaml:"root"`
}

// BackendConfig configures the optional Postgres mirror and the read API.
type BackendConfig struct {
	DSN         string `yaml:"dsn"`
	BaseURL     string `yaml:"base_url"`
	Addr        string `yaml:"addr"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Autosave:      AutosaveConfig{ShortDelayMs: 500, LongDelayMs: 2000, HistoryKeep: 50, BackupKeep: 10, UndoDepth: 200},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", Addr: ":8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "INK_CONFIG"
	EnvVaultRoot        = "INK_VAULT"
	EnvShortDelayMs     = "INK_SHORT_DELAY_MS"
	EnvLongDelayMs      = "INK_LONG_DELAY_MS"
	EnvHistoryKeep      = "INK_HISTORY_KEEP"
	EnvBackupKeep       = "INK_BACKUP_KEEP"
	EnvUndoDepth        = "INK_UNDO_DEPTH"
	EnvEmbedded         = "INK_EMBEDDED"
	EnvPGDSN            = "INK_PG_DSN"
	EnvBackendURL       = "INK_BACKEND_URL"
	EnvBackendAddr      = "INK_BACKEND_ADDR"
	EnvBackendTimeoutMs = "INK_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "INK_TLS_INSECURE"
	EnvTelemetryOptIn   = "INK_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "INK_TELEMETRY_URL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "INK_LOG_LEVEL"
	EnvLogFormat = "INK_LOG_FORMAT"
	EnvLogSource = "INK_LOG_SOURCE"
	EnvLogFile   = "INK_LOG_FILE"
)

// ConfigPath returns the per-user config file path. INK_CONFIG replaces it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "inkdraw")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "inkdraw")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "inkdraw")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			ilog.WithComponent("config").Warn("ignoring malformed config file", "path", path, "err", err)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.General.TelemetryURL != "" {
		dst.General.TelemetryURL = src.General.TelemetryURL
	}
	// autosave
	if src.Autosave.ShortDelayMs > 0 {
		dst.Autosave.ShortDelayMs = src.Autosave.ShortDelayMs
	}
	if src.Autosave.LongDelayMs > 0 {
		dst.Autosave.LongDelayMs = src.Autosave.LongDelayMs
	}
	if src.Autosave.HistoryKeep > 0 {
		dst.Autosave.HistoryKeep = src.Autosave.HistoryKeep
	}
	if src.Autosave.BackupKeep > 0 {
		dst.Autosave.BackupKeep = src.Autosave.BackupKeep
	}
	if src.Autosave.UndoDepth > 0 {
		dst.Autosave.UndoDepth = src.Autosave.UndoDepth
	}
	dst.Autosave.Embedded = src.Autosave.Embedded
	if s := strings.TrimSpace(src.Vault.Root); s != "" {
		dst.Vault.Root = s
	}
	// backend
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.Addr != "" {
		dst.Backend.Addr = src.Backend.Addr
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvVaultRoot)); v != "" {
		cfg.Vault.Root = v
	}
	envInt(EnvShortDelayMs, &cfg.Autosave.ShortDelayMs)
	envInt(EnvLongDelayMs, &cfg.Autosave.LongDelayMs)
	envInt(EnvHistoryKeep, &cfg.Autosave.HistoryKeep)
	envInt(EnvBackupKeep, &cfg.Autosave.BackupKeep)
	envInt(EnvUndoDepth, &cfg.Autosave.UndoDepth)
	if v := strings.TrimSpace(os.Getenv(EnvEmbedded)); v != "" {
		cfg.Autosave.Embedded = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendAddr)); v != "" {
		cfg.Backend.Addr = v
	}
	envInt(EnvBackendTimeoutMs, &cfg.Backend.TimeoutMs)
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.General.TelemetryURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"vault.root":               EnvVaultRoot,
	"autosave.short_delay_ms":  EnvShortDelayMs,
	"autosave.long_delay_ms":   EnvLongDelayMs,
	"autosave.history_keep":    EnvHistoryKeep,
	"autosave.backup_keep":     EnvBackupKeep,
	"autosave.undo_depth":      EnvUndoDepth,
	"autosave.embedded":        EnvEmbedded,
	"backend.dsn":              EnvPGDSN,
	"backend.base_url":         EnvBackendURL,
	"backend.addr":             EnvBackendAddr,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.telemetry_url":    EnvTelemetryURL,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := overrideKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// ShortDelay returns the incremental save delay.
func (a AutosaveConfig) ShortDelay() time.Duration {
	return time.Duration(a.ShortDelayMs) * time.Millisecond
}

// LongDelay returns the complete save delay.
func (a AutosaveConfig) LongDelay() time.Duration {
	return time.Duration(a.LongDelayMs) * time.Millisecond
}

// Timeout returns the backend HTTP timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// LogOptions maps the logging section onto logger options.
func (l LoggingConfig) LogOptions() ilog.Options {
	return ilog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
