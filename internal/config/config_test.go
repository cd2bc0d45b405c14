// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromPathTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
version = "1.0.0"

[server]
url = "http://example.com:9000"

[stream]
reveal_tick_ms = 15

[ui]
theme = "light"
markdown = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://example.com:9000" {
		t.Errorf("server url = %q", cfg.Server.URL)
	}
	if cfg.Stream.RevealTickMS != 15 {
		t.Errorf("reveal tick = %d", cfg.Stream.RevealTickMS)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("theme = %q", cfg.UI.Theme)
	}
	// Unset fields take defaults.
	if cfg.Scroll.DebounceMS != 100 {
		t.Errorf("debounce = %d, want default 100", cfg.Scroll.DebounceMS)
	}
	if cfg.Files.MaxUploadMB != 50 {
		t.Errorf("max upload = %d, want default 50", cfg.Files.MaxUploadMB)
	}
}

func TestLoadFromPathJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"server": {"url": "https://chat.internal"}, "log": {"level": "debug"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "https://chat.internal" {
		t.Errorf("server url = %q", cfg.Server.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Server.URL = "not a url" }},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://x" }},
		{"bad ws path", func(c *Config) { c.Server.WSPath = "ws" }},
		{"zero tick", func(c *Config) { c.Stream.RevealTickMS = 0 }},
		{"negative watchdog", func(c *Config) { c.Stream.WatchdogSecs = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }},
		{"zero upload cap", func(c *Config) { c.Files.MaxUploadMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ALFACHAT_SERVER_URL", "http://10.0.0.5:8130")
	t.Setenv("ALFACHAT_LOG_LEVEL", "warn")
	t.Setenv("ALFACHAT_REVEAL_TICK_MS", "45")
	t.Setenv("ALFACHAT_MARKDOWN", "false")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.URL != "http://10.0.0.5:8130" {
		t.Errorf("server url = %q", cfg.Server.URL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Stream.RevealTickMS != 45 {
		t.Errorf("reveal tick = %d", cfg.Stream.RevealTickMS)
	}
	if cfg.UI.Markdown {
		t.Error("markdown override not applied")
	}
}

func TestWSURL(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "http://localhost:8130"
	if got := cfg.WSURL(); got != "ws://localhost:8130/ws" {
		t.Errorf("ws url = %q", got)
	}
	cfg.Server.URL = "https://chat.example.com"
	if got := cfg.WSURL(); got != "wss://chat.example.com/ws" {
		t.Errorf("wss url = %q", got)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.RevealTick() != 30*time.Millisecond {
		t.Errorf("reveal tick = %v", cfg.RevealTick())
	}
	if cfg.Watchdog() != 60*time.Second {
		t.Errorf("watchdog = %v", cfg.Watchdog())
	}
	if cfg.ScrollDebounce() != 100*time.Millisecond {
		t.Errorf("debounce = %v", cfg.ScrollDebounce())
	}
}

func TestInsecurePermissionsFixed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`version = "1.0.0"`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestSaveWritesAtomically(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.Server.URL = "http://example.com:9000"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	path, err := ConfigPathTOML()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Server.URL != "http://example.com:9000" {
		t.Errorf("server url = %q after round trip", loaded.Server.URL)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	// The temp file used for the atomic replace must not survive.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
