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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables (optionally seeded from a .env file) are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

// EditorConfig drives the canvas editor: display layout, fonts and interaction.
type EditorConfig struct {
	SidePanel    int    `yaml:"side_panel"`
	Padding      int    `yaml:"padding"`
	MinWidth     int    `yaml:"min_width"`
	MaxWidth     int    `yaml:"max_width"`
	FontsDir     string `yaml:"fonts_dir"`
	Snap         bool   `yaml:"snap"`
	HistoryLimit int    `yaml:"history_limit"`
	Background   string `yaml:"background"`
}

type ExportConfig struct {
	JPEGQuality float64 `yaml:"jpeg_quality"`
	OutDir      string  `yaml:"out_dir"`
	Format      string  `yaml:"format"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	CORSOrigins string `yaml:"cors_origins"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Editor        EditorConfig  `yaml:"editor"`
	Export        ExportConfig  `yaml:"export"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8000", TimeoutMs: 120000, TLSInsecure: false},
		Editor: EditorConfig{
			SidePanel:    260,
			Padding:      24,
			MinWidth:     280,
			MaxWidth:     768,
			Snap:         true,
			HistoryLimit: 100,
			Background:   "#111111",
		},
		Export:  ExportConfig{JPEGQuality: 0.92, OutDir: "", Format: "png"},
		Server:  ServerConfig{Addr: ":8090", CORSOrigins: "*", MaxUploadMB: 20},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "GTH_BACKEND_URL"
	EnvBackendTimeoutMs = "GTH_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "GTH_TLS_INSECURE"
	EnvBackendToken     = "GTH_BACKEND_TOKEN"
	EnvTelemetryOptIn   = "GTH_TELEMETRY_OPT_IN"
	EnvFontsDir         = "GTH_FONTS_DIR"
	EnvSnap             = "GTH_SNAP"
	EnvExportDir        = "GTH_EXPORT_DIR"
	EnvJPEGQuality      = "GTH_JPEG_QUALITY"
	EnvServerAddr       = "GTH_SERVER_ADDR"
	EnvCORSOrigins      = "GTH_CORS_ORIGINS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GTH_LOG_LEVEL"
	EnvLogFormat = "GTH_LOG_FORMAT"
	EnvLogSource = "GTH_LOG_SOURCE"
	EnvLogFile   = "GTH_LOG_FILE"
	// EnvDotenv names an alternative .env file; "off" disables loading.
	EnvDotenv = "GTH_DOTENV"
)

// Service/keys for OS keyring.
const (
	keyringService = "gothumb"
	keyringToken   = "backend_token"
)

// tokenStore abstracts the keyring so tests can stub it.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SetTokenStore swaps the token store and returns a function restoring the previous one.
func SetTokenStore(s TokenStore) (restore func()) {
	old := tokenStore
	tokenStore = s
	return func() { tokenStore = old }
}

// ConfigPath returns the per-user config file path. GTH_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("GTH_CONFIG")); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "gothumb")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "gothumb")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "gothumb")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotenv seeds the process environment from a .env file in the working directory
// (or the file named by GTH_DOTENV). Variables already set are left untouched.
// A missing file is not an error.
func LoadDotenv() error {
	name := strings.TrimSpace(os.Getenv(EnvDotenv))
	if strings.EqualFold(name, "off") {
		return nil
	}
	if name == "" {
		name = ".env"
	}
	if _, err := os.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(name)
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The backend token comes from GTH_BACKEND_TOKEN or, failing that, the OS keyring; it is returned
// separately and never stored in the struct.
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
		}
	}
	applyEnvOverrides(&cfg)
	if tok := strings.TrimSpace(os.Getenv(EnvBackendToken)); tok != "" {
		return cfg, tok, nil
	}
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

// ClearToken removes the stored backend token.
func ClearToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// editor
	if src.Editor.SidePanel > 0 {
		dst.Editor.SidePanel = src.Editor.SidePanel
	}
	if src.Editor.Padding > 0 {
		dst.Editor.Padding = src.Editor.Padding
	}
	if src.Editor.MinWidth > 0 {
		dst.Editor.MinWidth = src.Editor.MinWidth
	}
	if src.Editor.MaxWidth > 0 {
		dst.Editor.MaxWidth = src.Editor.MaxWidth
	}
	if strings.TrimSpace(src.Editor.FontsDir) != "" {
		dst.Editor.FontsDir = strings.TrimSpace(src.Editor.FontsDir)
	}
	dst.Editor.Snap = src.Editor.Snap
	if src.Editor.HistoryLimit > 0 {
		dst.Editor.HistoryLimit = src.Editor.HistoryLimit
	}
	if strings.TrimSpace(src.Editor.Background) != "" {
		dst.Editor.Background = strings.TrimSpace(src.Editor.Background)
	}
	// export
	if src.Export.JPEGQuality > 0 && src.Export.JPEGQuality <= 1 {
		dst.Export.JPEGQuality = src.Export.JPEGQuality
	}
	if strings.TrimSpace(src.Export.OutDir) != "" {
		dst.Export.OutDir = strings.TrimSpace(src.Export.OutDir)
	}
	if strings.TrimSpace(src.Export.Format) != "" {
		dst.Export.Format = strings.ToLower(strings.TrimSpace(src.Export.Format))
	}
	// server
	if strings.TrimSpace(src.Server.Addr) != "" {
		dst.Server.Addr = strings.TrimSpace(src.Server.Addr)
	}
	if strings.TrimSpace(src.Server.CORSOrigins) != "" {
		dst.Server.CORSOrigins = strings.TrimSpace(src.Server.CORSOrigins)
	}
	if src.Server.MaxUploadMB > 0 {
		dst.Server.MaxUploadMB = src.Server.MaxUploadMB
	}
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

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontsDir)); v != "" {
		cfg.Editor.FontsDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnap)); v != "" {
		cfg.Editor.Snap = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportDir)); v != "" {
		cfg.Export.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJPEGQuality)); v != "" {
		if q, err := strconv.ParseFloat(v, 64); err == nil && q > 0 && q <= 1 {
			cfg.Export.JPEGQuality = q
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCORSOrigins)); v != "" {
		cfg.Server.CORSOrigins = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"editor.fonts_dir":         EnvFontsDir,
	"editor.snap":              EnvSnap,
	"export.out_dir":           EnvExportDir,
	"export.jpeg_quality":      EnvJPEGQuality,
	"server.addr":              EnvServerAddr,
	"server.cors_origins":      EnvCORSOrigins,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// EffectiveTimeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) EffectiveTimeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ExportDir resolves the output directory, defaulting to ~/Pictures/gothumb.
func (e ExportConfig) ExportDir() string {
	if e.OutDir != "" {
		return e.OutDir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "exports"
	}
	return filepath.Join(home, "Pictures", "gothumb")
}
