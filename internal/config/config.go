// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/publicpc/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the host configuration of a publicpc workstation. It is owned by
// whoever installs the machine; the administrator policy lives separately in
// the JSON policy document.
type Config struct {
	Version string `toml:"version" json:"version"`

	Station StationConfig `toml:"station" json:"station"`
	Paths   PathsConfig   `toml:"paths" json:"paths"`
	Monitor MonitorConfig `toml:"monitor" json:"monitor"`
	Session SessionConfig `toml:"session" json:"session"`
	Admin   AdminConfig   `toml:"admin" json:"admin"`
}

// StationConfig identifies the workstation.
type StationConfig struct {
	// Name is stamped on every session row. Empty means the host name.
	Name string `toml:"name" json:"name"`
}

// PathsConfig contains on-disk locations. Empty entries are derived from DataDir.
type PathsConfig struct {
	DataDir    string `toml:"data_dir" json:"data_dir"`
	PolicyFile string `toml:"policy_file" json:"policy_file"`
	Database   string `toml:"database" json:"database"`
	AuditDir   string `toml:"audit_dir" json:"audit_dir"`
	ErrorLog   string `toml:"error_log" json:"error_log"`
}

// MonitorConfig controls the process enforcer and the foreground tracker.
type MonitorConfig struct {
	ProcessIntervalSecs int `toml:"process_interval_secs" json:"process_interval_secs"`
	WindowIntervalSecs  int `toml:"window_interval_secs" json:"window_interval_secs"`

	// ProtectedRoots are extra directory prefixes that are never terminated,
	// in addition to the operating system tree.
	ProtectedRoots []string `toml:"protected_roots" json:"protected_roots"`

	// WatchPolicy reloads the policy document when it changes on disk.
	WatchPolicy     bool `toml:"watch_policy" json:"watch_policy"`
	WatchDebounceMs int  `toml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// SessionConfig controls the session countdown.
type SessionConfig struct {
	CountdownIntervalSecs int `toml:"countdown_interval_secs" json:"countdown_interval_secs"`
	WarningMinutes        int `toml:"warning_minutes" json:"warning_minutes"`
}

// AdminConfig controls administrator secret entry.
type AdminConfig struct {
	// AttemptBurst is how many secret attempts may be made back to back.
	AttemptBurst int `toml:"attempt_burst" json:"attempt_burst"`
	// AttemptRefillSecs is how long it takes to earn one more attempt.
	AttemptRefillSecs int `toml:"attempt_refill_secs" json:"attempt_refill_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// ConfigVersion is written into new configuration files.
const ConfigVersion = "1"

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: ConfigVersion,
		Paths: PathsConfig{
			DataDir: DefaultDataDir(),
		},
		Monitor: MonitorConfig{
			ProcessIntervalSecs: 5,
			WindowIntervalSecs:  3,
			WatchPolicy:         true,
			WatchDebounceMs:     250,
		},
		Session: SessionConfig{
			CountdownIntervalSecs: 1,
			WarningMinutes:        5,
		},
		Admin: AdminConfig{
			AttemptBurst:      5,
			AttemptRefillSecs: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// DefaultDataDir returns the machine-wide data directory.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		if programData := os.Getenv("ProgramData"); programData != "" {
			return filepath.Join(programData, "PublicPC")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".publicpc"
	}
	return filepath.Join(home, ".publicpc")
}

// ConfigPath returns the location of config.toml. PUBLICPC_CONFIG wins over
// the default data directory.
func ConfigPath() string {
	if path := os.Getenv("PUBLICPC_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// StationName returns the configured workstation name or the host name.
func (c *Config) StationName() string {
	if c.Station.Name != "" {
		return c.Station.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// PolicyPath returns the policy document location.
func (c *Config) PolicyPath() string {
	return c.derive(c.Paths.PolicyFile, "policy.json")
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return c.derive(c.Paths.Database, "publicpc.db")
}

// AuditDir returns the directory holding the daily audit CSV files.
func (c *Config) AuditDir() string {
	return c.derive(c.Paths.AuditDir, "logs")
}

// ErrorLogPath returns the error log location.
func (c *Config) ErrorLogPath() string {
	return c.derive(c.Paths.ErrorLog, "error.log")
}

func (c *Config) derive(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.Paths.DataDir, name)
}

// ProcessInterval returns the enforcer scan period.
func (c *Config) ProcessInterval() time.Duration {
	return time.Duration(c.Monitor.ProcessIntervalSecs) * time.Second
}

// WindowInterval returns the foreground tracker sample period.
func (c *Config) WindowInterval() time.Duration {
	return time.Duration(c.Monitor.WindowIntervalSecs) * time.Second
}

// WatchDebounce returns the policy watcher debounce delay.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Monitor.WatchDebounceMs) * time.Millisecond
}

// CountdownInterval returns the session countdown tick.
func (c *Config) CountdownInterval() time.Duration {
	return time.Duration(c.Session.CountdownIntervalSecs) * time.Second
}

// WarningThreshold returns the remaining time at which the user is warned.
func (c *Config) WarningThreshold() time.Duration {
	return time.Duration(c.Session.WarningMinutes) * time.Minute
}

// AttemptRefill returns the interval at which one admin attempt is restored.
func (c *Config) AttemptRefill() time.Duration {
	return time.Duration(c.Admin.AttemptRefillSecs) * time.Second
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration from ConfigPath. A missing file yields the
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
	}
	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults. Booleans are taken
// as written.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = defaults.Paths.DataDir
	}
	if cfg.Monitor.ProcessIntervalSecs == 0 {
		cfg.Monitor.ProcessIntervalSecs = defaults.Monitor.ProcessIntervalSecs
	}
	if cfg.Monitor.WindowIntervalSecs == 0 {
		cfg.Monitor.WindowIntervalSecs = defaults.Monitor.WindowIntervalSecs
	}
	if cfg.Monitor.WatchDebounceMs == 0 {
		cfg.Monitor.WatchDebounceMs = defaults.Monitor.WatchDebounceMs
	}
	if cfg.Session.CountdownIntervalSecs == 0 {
		cfg.Session.CountdownIntervalSecs = defaults.Session.CountdownIntervalSecs
	}
	if cfg.Session.WarningMinutes == 0 {
		cfg.Session.WarningMinutes = defaults.Session.WarningMinutes
	}
	if cfg.Admin.AttemptBurst == 0 {
		cfg.Admin.AttemptBurst = defaults.Admin.AttemptBurst
	}
	if cfg.Admin.AttemptRefillSecs == 0 {
		cfg.Admin.AttemptRefillSecs = defaults.Admin.AttemptRefillSecs
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration with a header comment.
// The file is created with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# publicpc host configuration")
	fmt.Fprintln(&buf, "# Administrator policy (allow-list, session length) lives in the policy file.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Monitor.ProtectedRoots != nil {
		clone.Monitor.ProtectedRoots = append([]string(nil), c.Monitor.ProtectedRoots...)
	}
	return &clone
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	positive := []struct {
		field string
		value int
	}{
		{"monitor.process_interval_secs", c.Monitor.ProcessIntervalSecs},
		{"monitor.window_interval_secs", c.Monitor.WindowIntervalSecs},
		{"monitor.watch_debounce_ms", c.Monitor.WatchDebounceMs},
		{"session.countdown_interval_secs", c.Session.CountdownIntervalSecs},
		{"admin.attempt_burst", c.Admin.AttemptBurst},
		{"admin.attempt_refill_secs", c.Admin.AttemptRefillSecs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("must be positive, got %d", p.value),
			})
		}
	}

	if c.Session.WarningMinutes < 0 {
		errs = append(errs, ValidationError{
			Field:   "session.warning_minutes",
			Message: fmt.Sprintf("must not be negative, got %d", c.Session.WarningMinutes),
		})
	}

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.data_dir",
			Message: "must not be empty",
		})
	}

	for i, root := range c.Monitor.ProtectedRoots {
		if !filepath.IsAbs(root) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("monitor.protected_roots[%d]", i),
				Message: fmt.Sprintf("'%s' is not an absolute path", root),
			})
		}
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
//
// Supported environment variables:
//   - PUBLICPC_DATA_DIR: overrides paths.data_dir
//   - PUBLICPC_PC_NAME: overrides station.name
//   - PUBLICPC_WATCH_POLICY: "1"/"true" or "0"/"false" toggles monitor.watch_policy
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("PUBLICPC_DATA_DIR"); dir != "" {
		c.Paths.DataDir = dir
	}

	if name := os.Getenv("PUBLICPC_PC_NAME"); name != "" {
		c.Station.Name = name
	}

	if watch := os.Getenv("PUBLICPC_WATCH_POLICY"); watch != "" {
		c.Monitor.WatchPolicy = watch == "1" || strings.ToLower(watch) == "true"
	}
}
