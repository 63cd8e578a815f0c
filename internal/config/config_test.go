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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memStore) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}
func (m memStore) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GTH_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Cleanup(SetTokenStore(memStore{}))
	return dir
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q,%v", name, ok)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesEditor(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Editor: EditorConfig{SidePanel: 300, Padding: 10, FontsDir: " /fonts ", Snap: false}}
	mergeInto(&dst, &src)
	if dst.Editor.SidePanel != 300 || dst.Editor.Padding != 10 || dst.Editor.FontsDir != "/fonts" {
		t.Fatalf("editor fields not merged: %#v", dst.Editor)
	}
	if dst.Editor.Snap {
		t.Fatalf("snap preference should persist from file")
	}
	if dst.Editor.MaxWidth != 768 || dst.Editor.MinWidth != 280 {
		t.Fatalf("unset widths should keep defaults: %#v", dst.Editor)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/gth.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/gth.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeRejectsBadJPEGQuality(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Export: ExportConfig{JPEGQuality: 7}}
	mergeInto(&dst, &src)
	if dst.Export.JPEGQuality != 0.92 {
		t.Fatalf("JPEGQuality = %v, want default 0.92", dst.Export.JPEGQuality)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/tmp/gth.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/tmp/gth.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveLoadRoundTripWithToken(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Editor.SidePanel = 320
	cfg.Server.Addr = ":9999"
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Editor.SidePanel != 320 || got.Server.Addr != ":9999" {
		t.Fatalf("loaded config mismatch: %#v", got)
	}
	if tok != "secret" {
		t.Fatalf("token = %q, want secret", tok)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, tok, _ = Load(); tok != "" {
		t.Fatalf("token after clear = %q", tok)
	}
}

func TestEnvTokenWinsOverKeyring(t *testing.T) {
	isolate(t)
	_ = tokenStore.Set(keyringService, keyringToken, "from-keyring")
	t.Setenv(EnvBackendToken, "from-env")
	if _, tok, _ := Load(); tok != "from-env" {
		t.Fatalf("token = %q, want from-env", tok)
	}
}

func TestOSKeyringWithMockProvider(t *testing.T) {
	keyring.MockInit()
	var k osKeyring
	if v, err := k.Get("svc", "missing"); err != nil || v != "" {
		t.Fatalf("missing entry: %q, %v", v, err)
	}
	if err := k.Set("svc", "tok", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := k.Get("svc", "tok"); v != "abc" {
		t.Fatalf("Get = %q", v)
	}
	if err := k.Delete("svc", "tok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := k.Delete("svc", "tok"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(p, []byte("GTH_TEST_DOTENV_VALUE=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDotenv, p)
	t.Setenv("GTH_TEST_DOTENV_VALUE", "")
	_ = os.Unsetenv("GTH_TEST_DOTENV_VALUE")
	if err := LoadDotenv(); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("GTH_TEST_DOTENV_VALUE"); got != "hello" {
		t.Fatalf("value = %q", got)
	}

	t.Setenv(EnvDotenv, filepath.Join(dir, "absent.env"))
	if err := LoadDotenv(); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (BackendConfig{}).EffectiveTimeout(); got != 120*time.Second {
		t.Fatalf("default timeout = %v", got)
	}
	if got := (BackendConfig{TimeoutMs: 250}).EffectiveTimeout(); got != 250*time.Millisecond {
		t.Fatalf("timeout = %v", got)
	}
}
