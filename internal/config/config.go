// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/threadchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete threadchat configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Offline OfflineConfig `toml:"offline"`
	Chat    ChatConfig    `toml:"chat"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// APIConfig describes the remote threads service.
type APIConfig struct {
	// BaseURL is the service root, without trailing slash.
	BaseURL string `toml:"base_url"`

	// Timeout bounds a single HTTP request.
	Timeout Duration `toml:"timeout"`

	// RetryAttempts is the total number of tries for health and send.
	RetryAttempts int `toml:"retry_attempts"`

	// RetryDelay is the backoff unit; attempt i waits i*RetryDelay.
	RetryDelay Duration `toml:"retry_delay"`

	// RateLimit caps outgoing requests per second (0 = unlimited).
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// OfflineConfig controls the local fallback store.
type OfflineConfig struct {
	// Enabled skips the remote service entirely.
	Enabled bool `toml:"enabled"`

	// Backend is one of sqlite, file or memory.
	Backend string `toml:"backend"`

	// DataDir holds the store. Empty means ~/.threadchat/data.
	DataDir string `toml:"data_dir"`

	// Watch reloads when another process writes to the store.
	Watch bool `toml:"watch"`
}

// ChatConfig controls composer behavior.
type ChatConfig struct {
	TypingDelay    Duration `toml:"typing_delay"`
	TitleMaxLength int      `toml:"title_max_length"`
	DefaultTitle   string   `toml:"default_title"`
	WelcomeMessage string   `toml:"welcome_message"`
}

// UIConfig contains user interface settings.
type UIConfig struct {
	Theme                string   `toml:"theme"`
	NotificationDuration Duration `toml:"notification_duration"`
}

// LogConfig controls the structured log.
type LogConfig struct {
	Level string `toml:"level"`
	// File is the log destination. Empty means <data_dir>/threadchat.log.
	File string `toml:"file"`
}

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "http://127.0.0.1:8000",
			Timeout:       Duration{10 * time.Second},
			RetryAttempts: 3,
			RetryDelay:    Duration{time.Second},
			RateLimit:     0,
			RateBurst:     1,
		},
		Offline: OfflineConfig{
			Enabled: false,
			Backend: BackendSQLite,
			Watch:   true,
		},
		Chat: ChatConfig{
			TypingDelay:    Duration{600 * time.Millisecond},
			TitleMaxLength: 50,
			DefaultTitle:   "New Chat",
			WelcomeMessage: "Hello 👋\nI'm your AI assistant. Ask me anything!",
		},
		UI: UIConfig{
			Theme:                "auto",
			NotificationDuration: Duration{5 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the threadchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".threadchat"), nil
}

// ConfigPathTOML returns the path of the TOML config file, honoring
// THREADCHAT_CONFIG.
func ConfigPathTOML() (string, error) {
	if p := os.Getenv("THREADCHAT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the resolved directory of the local fallback store.
func (c *Config) DataDir() (string, error) {
	if c.Offline.DataDir != "" {
		return expandHome(c.Offline.DataDir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogPath returns the resolved log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "threadchat.log"), nil
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// DotEnvFile is the .env file consulted by Load, relative to the working
// directory.
const DotEnvFile = ".env"

// Load reads the config file (if any), the .env file (if any) and the
// environment, then fills defaults and validates.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	dotenv, err := ReadDotEnv(DotEnvFile)
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path, dotenv)
}

// LoadFromPath is Load with an explicit config file and .env values. A
// missing file is not an error.
func LoadFromPath(path string, dotenv map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyEnvOverrides(dotenv); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path into cfg. Unknown keys are
// rejected so typos do not pass silently.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ReadDotEnv parses a .env file without touching the process environment.
// A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.RetryAttempts == 0 {
		c.API.RetryAttempts = defaults.API.RetryAttempts
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = defaults.API.RateBurst
	}

	if c.Offline.Backend == "" {
		c.Offline.Backend = defaults.Offline.Backend
	}
	c.Offline.Backend = strings.ToLower(c.Offline.Backend)

	if c.Chat.TitleMaxLength == 0 {
		c.Chat.TitleMaxLength = defaults.Chat.TitleMaxLength
	}
	if strings.TrimSpace(c.Chat.DefaultTitle) == "" {
		c.Chat.DefaultTitle = defaults.Chat.DefaultTitle
	}
	if strings.TrimSpace(c.Chat.WelcomeMessage) == "" {
		c.Chat.WelcomeMessage = defaults.Chat.WelcomeMessage
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	if c.UI.NotificationDuration.Duration == 0 {
		c.UI.NotificationDuration = defaults.UI.NotificationDuration
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) (string, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	return path, SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg as a commented TOML document.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# threadchat configuration file")
	fmt.Fprintln(&buf, "# Environment variables (THREADCHAT_*) and .env override these values.")
	fmt.Fprintln(&buf)

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// String returns the TOML form of the configuration.
func (c *Config) String() string {
	data, err := c.Encode()
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil {
		add("api.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("api.base_url", "missing host")
	}
	if c.API.Timeout.Duration <= 0 {
		add("api.timeout", "must be positive")
	}
	if c.API.RetryAttempts < 1 || c.API.RetryAttempts > 10 {
		add("api.retry_attempts", "must be 1-10, got %d", c.API.RetryAttempts)
	}
	if c.API.RetryDelay.Duration < 0 {
		add("api.retry_delay", "cannot be negative")
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "cannot be negative")
	}
	if c.API.RateBurst < 1 {
		add("api.rate_burst", "must be at least 1, got %d", c.API.RateBurst)
	}

	// Offline
	switch c.Offline.Backend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		add("offline.backend", "invalid backend '%s', must be one of: sqlite, file, memory", c.Offline.Backend)
	}

	// Chat
	if c.Chat.TypingDelay.Duration < 0 {
		add("chat.typing_delay", "cannot be negative")
	}
	if c.Chat.TitleMaxLength < 1 || c.Chat.TitleMaxLength > 200 {
		add("chat.title_max_length", "must be 1-200, got %d", c.Chat.TitleMaxLength)
	}

	// UI
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.NotificationDuration.Duration <= 0 {
		add("ui.notification_duration", "must be positive")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// Process environment wins over dotenv values.
//
// Supported variables:
//   - THREADCHAT_API_BASE_URL: api.base_url
//   - THREADCHAT_API_TIMEOUT: api.timeout ("10s", or plain milliseconds)
//   - THREADCHAT_API_RETRY_ATTEMPTS: api.retry_attempts
//   - THREADCHAT_ENABLE_OFFLINE_MODE: offline.enabled ("1"/"true")
//   - THREADCHAT_STORE_BACKEND: offline.backend
//   - THREADCHAT_DATA_DIR: offline.data_dir
//   - THREADCHAT_THEME: ui.theme
//   - THREADCHAT_LOG_LEVEL: log.level
func (c *Config) ApplyEnvOverrides(dotenv map[string]string) error {
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}

	var errs ValidateErrors

	if v, ok := lookup("THREADCHAT_API_BASE_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := lookup("THREADCHAT_API_TIMEOUT"); ok {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "THREADCHAT_API_TIMEOUT", Message: err.Error()})
		} else {
			c.API.Timeout = Duration{d}
		}
	}
	if v, ok := lookup("THREADCHAT_API_RETRY_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "THREADCHAT_API_RETRY_ATTEMPTS", Message: "must be an integer"})
		} else {
			c.API.RetryAttempts = n
		}
	}
	if v, ok := lookup("THREADCHAT_ENABLE_OFFLINE_MODE"); ok {
		c.Offline.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookup("THREADCHAT_STORE_BACKEND"); ok {
		c.Offline.Backend = v
	}
	if v, ok := lookup("THREADCHAT_DATA_DIR"); ok {
		c.Offline.DataDir = v
	}
	if v, ok := lookup("THREADCHAT_THEME"); ok {
		c.UI.Theme = v
	}
	if v, ok := lookup("THREADCHAT_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
