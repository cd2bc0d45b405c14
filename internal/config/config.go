// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete alfachat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server is the backend the TUI connects to.
	Server ServerConfig `toml:"server" json:"server"`

	// Stream tunes the character-reveal behavior.
	Stream StreamConfig `toml:"stream" json:"stream"`

	// Scroll tunes viewport follow behavior.
	Scroll ScrollConfig `toml:"scroll" json:"scroll"`

	// Files configures the workspace the file panel browses.
	Files FilesConfig `toml:"files" json:"files"`

	// Log configures structured logging.
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration.
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig locates the chat backend.
type ServerConfig struct {
	// URL is the backend base URL for the HTTP APIs.
	URL string `toml:"url" json:"url"`
	// WSPath is the path of the WebSocket chat endpoint.
	WSPath string `toml:"ws_path" json:"ws_path"`
	// Listen is the bind address used by the serve subcommand.
	Listen string `toml:"listen" json:"listen"`
	// DBPath is the sqlite database for the serve subcommand; empty
	// means <config dir>/alfachat.db.
	DBPath string `toml:"db_path" json:"db_path"`
	// RateLimitPerMinute caps send_message events per user on the
	// serve side. 0 disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// StreamConfig tunes the streaming reveal loop.
type StreamConfig struct {
	// RevealTickMS is the reveal tick interval in milliseconds.
	RevealTickMS int `toml:"reveal_tick_ms" json:"reveal_tick_ms"`
	// RunesPerTick is how many characters each tick reveals.
	RunesPerTick int `toml:"runes_per_tick" json:"runes_per_tick"`
	// WatchdogSecs aborts a stream with no traffic for this long.
	// 0 disables the watchdog.
	WatchdogSecs int `toml:"watchdog_secs" json:"watchdog_secs"`
}

// ScrollConfig tunes the viewport follow behavior.
type ScrollConfig struct {
	// DebounceMS is the window inside which repeat scroll requests
	// are dropped.
	DebounceMS int `toml:"debounce_ms" json:"debounce_ms"`
	// EpsilonLines is the already-at-bottom threshold.
	EpsilonLines int `toml:"epsilon_lines" json:"epsilon_lines"`
	// DurationMS is the default scroll animation length.
	DurationMS int `toml:"duration_ms" json:"duration_ms"`
}

// FilesConfig configures the upload workspace.
type FilesConfig struct {
	// UploadsDir is the root the file panel and the serve subcommand
	// operate in; empty means <config dir>/uploads.
	UploadsDir string `toml:"uploads_dir" json:"uploads_dir"`
	// MaxUploadMB caps single-file upload size.
	MaxUploadMB int `toml:"max_upload_mb" json:"max_upload_mb"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `toml:"level" json:"level"`
	// File is the log file path; empty means <config dir>/alfachat.log.
	File string `toml:"file" json:"file"`
	// MaxSizeMB rotates the log file past this size.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb"`
	// MaxBackups is how many rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown enables markdown rendering of assistant messages.
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowTimestamps displays message timestamps.
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
	// CompactMode uses a more compact layout.
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
	// WelcomeMessage is shown as the pinned first transcript entry.
	WelcomeMessage string `toml:"welcome_message" json:"welcome_message"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			URL:                "http://127.0.0.1:8130",
			WSPath:             "/ws",
			Listen:             "127.0.0.1:8130",
			RateLimitPerMinute: 30,
		},

		Stream: StreamConfig{
			RevealTickMS: 30,
			RunesPerTick: 1,
			WatchdogSecs: 60,
		},

		Scroll: ScrollConfig{
			DebounceMS:   100,
			EpsilonLines: 5,
			DurationMS:   300,
		},

		Files: FilesConfig{
			MaxUploadMB: 50,
		},

		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},

		UI: UIConfig{
			Theme:          "dark",
			Markdown:       true,
			ShowTimestamps: true,
			CompactMode:    false,
			WelcomeMessage: "Hello! I'm Alfa AI. How can I help you today?",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the alfachat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".alfachat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s). Tries TOML first,
// then JSON, and falls back to defaults. Environment overrides are
// applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. JSON when the file ends in .json, TOML otherwise.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any zero values a partial file left unset.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.WSPath == "" {
		cfg.Server.WSPath = defaults.Server.WSPath
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Stream.RevealTickMS == 0 {
		cfg.Stream.RevealTickMS = defaults.Stream.RevealTickMS
	}
	if cfg.Stream.RunesPerTick == 0 {
		cfg.Stream.RunesPerTick = defaults.Stream.RunesPerTick
	}
	if cfg.Scroll.DebounceMS == 0 {
		cfg.Scroll.DebounceMS = defaults.Scroll.DebounceMS
	}
	if cfg.Scroll.EpsilonLines == 0 {
		cfg.Scroll.EpsilonLines = defaults.Scroll.EpsilonLines
	}
	if cfg.Scroll.DurationMS == 0 {
		cfg.Scroll.DurationMS = defaults.Scroll.DurationMS
	}
	if cfg.Files.MaxUploadMB == 0 {
		cfg.Files.MaxUploadMB = defaults.Files.MaxUploadMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WelcomeMessage == "" {
		cfg.UI.WelcomeMessage = defaults.UI.WelcomeMessage
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies ALFACHAT_* environment variables on top of
// the loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ALFACHAT_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("ALFACHAT_WS_PATH"); v != "" {
		c.Server.WSPath = v
	}
	if v := os.Getenv("ALFACHAT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("ALFACHAT_DB_PATH"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("ALFACHAT_UPLOADS_DIR"); v != "" {
		c.Files.UploadsDir = v
	}
	if v := os.Getenv("ALFACHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ALFACHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("ALFACHAT_REVEAL_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Stream.RevealTickMS = n
		}
	}
	if v := os.Getenv("ALFACHAT_MARKDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UI.Markdown = b
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.url %q is not a valid URL", c.Server.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url scheme must be http or https, got %q", u.Scheme)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path %q must start with /", c.Server.WSPath)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must be >= 0")
	}

	if c.Stream.RevealTickMS <= 0 {
		return fmt.Errorf("stream.reveal_tick_ms must be positive")
	}
	if c.Stream.RunesPerTick <= 0 {
		return fmt.Errorf("stream.runes_per_tick must be positive")
	}
	if c.Stream.WatchdogSecs < 0 {
		return fmt.Errorf("stream.watchdog_secs must be >= 0")
	}

	if c.Scroll.DebounceMS <= 0 || c.Scroll.DurationMS <= 0 {
		return fmt.Errorf("scroll timings must be positive")
	}
	if c.Scroll.EpsilonLines < 0 {
		return fmt.Errorf("scroll.epsilon_lines must be >= 0")
	}

	if c.Files.MaxUploadMB <= 0 {
		return fmt.Errorf("files.max_upload_mb must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme %q is not one of dark, light, auto", c.UI.Theme)
	}

	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// WSURL returns the WebSocket endpoint derived from the server URL.
func (c *Config) WSURL() string {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.Server.WSPath
	return u.String()
}

// RevealTick returns the reveal tick as a duration.
func (c *Config) RevealTick() time.Duration {
	return time.Duration(c.Stream.RevealTickMS) * time.Millisecond
}

// Watchdog returns the stream watchdog timeout, 0 when disabled.
func (c *Config) Watchdog() time.Duration {
	return time.Duration(c.Stream.WatchdogSecs) * time.Second
}

// ScrollDebounce returns the scroll debounce window as a duration.
func (c *Config) ScrollDebounce() time.Duration {
	return time.Duration(c.Scroll.DebounceMS) * time.Millisecond
}

// ScrollDuration returns the default scroll animation length.
func (c *Config) ScrollDuration() time.Duration {
	return time.Duration(c.Scroll.DurationMS) * time.Millisecond
}

// UploadsDir resolves the uploads directory, defaulting under the
// config dir.
func (c *Config) UploadsDir() (string, error) {
	if c.Files.UploadsDir != "" {
		return c.Files.UploadsDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "uploads"), nil
}

// DBPath resolves the sqlite path for the serve subcommand.
func (c *Config) DBPath() (string, error) {
	if c.Server.DBPath != "" {
		return c.Server.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "alfachat.db"), nil
}

// LogFile resolves the log file path.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "alfachat.log"), nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Files.MaxUploadMB) * 1024 * 1024
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the TOML config file with secure
// permissions.
func (c *Config) Save() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// Atomic replace: a crash mid-save must not leave a truncated
	// config behind.
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
