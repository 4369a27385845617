// Package config provides configuration loading and defaults for the
// crashwatch daemon.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package handles artifact watching, collector reporting, signal
// hardening, and daemon behavior with sensible defaults.
package config

//go:generate go run ../../cmd/genconfig

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/crashwatch/internal/atomicfile"
	"tools.zach/dev/crashwatch/internal/migrate"
	"tools.zach/dev/crashwatch/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Watch holds artifact directory watching settings.
	Watch WatchConfig `toml:"watch"`
	// Signals holds crash-signal hardening settings.
	Signals SignalsConfig `toml:"signals"`
	// Report holds collector upload settings.
	Report ReportConfig `toml:"report"`
	// Behavior holds daemon behavior and idle settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// WatchConfig holds artifact directory watching settings.
type WatchConfig struct {
	// Dir is the artifact directory to watch. Empty means
	// <data-dir>/artifacts.
	Dir string `toml:"dir"`
	// Patterns is the list of glob patterns that identify crash artifacts
	// (doublestar syntax).
	Patterns []string `toml:"patterns"`
	// PollIntervalSeconds is the fallback polling interval when fsnotify
	// is unavailable, and the cadence of the daemon's periodic rescan.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// SignalsConfig holds crash-signal hardening settings.
type SignalsConfig struct {
	// Harden enables alternate-stack hardening of the fixed crash-signal
	// set at daemon start.
	Harden bool `toml:"harden"`
	// Extra lists additional signal names (e.g. "SIGTRAP", "SIGSYS") to
	// harden beyond the fixed set.
	Extra []string `toml:"extra,omitempty"`
}

// ReportConfig holds collector upload settings.
type ReportConfig struct {
	// URL is the collector endpoint new artifacts are POSTed to.
	// Empty disables reporting.
	URL string `toml:"url,omitempty"`
	// Token is an optional bearer token sent with each report.
	Token string `toml:"token,omitempty"`
	// UploadPayload includes the artifact bytes (base64) in the report
	// when the file is within MaxPayloadKB.
	UploadPayload bool `toml:"upload_payload"`
	// MaxPayloadKB caps the artifact size included in reports.
	MaxPayloadKB int `toml:"max_payload_kb"`
	// TimeoutSeconds bounds each upload attempt.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// DaemonIdleMinutes is how long the daemon may run without seeing a
	// new artifact before exiting. Zero disables the idle timeout.
	DaemonIdleMinutes int `toml:"daemon_idle_minutes"`
	// IndexPruneDays is how old an index entry must be, with its artifact
	// gone from disk, before it is pruned. Zero disables pruning.
	IndexPruneDays int `toml:"index_prune_days"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fail).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Signal Names
// ///////////////////////////////////////////////

// signalsByName maps the signal names accepted in [SignalsConfig.Extra].
// It is declared per platform (signals_unix.go, signals_windows.go)
// because the Windows syscall package defines only a subset of the
// crash-adjacent signals. Routine lifecycle signals (INT, TERM, HUP) are
// deliberately absent everywhere.

// SignalNames returns the accepted extra-signal names in sorted order,
// for validation errors and generated documentation.
func SignalNames() []string {
	names := make([]string, 0, len(signalsByName))
	for name := range signalsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtraSignals resolves [SignalsConfig.Extra] to signal numbers. Unknown
// names were already rejected by [Config.Validate].
func (c *Config) ExtraSignals() []syscall.Signal {
	out := make([]syscall.Signal, 0, len(c.Signals.Extra))
	for _, name := range c.Signals.Extra {
		if sig, ok := signalsByName[strings.ToUpper(name)]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Watch: WatchConfig{
			Dir: "",
			Patterns: []string{
				"crash-*",
				"leak-*",
				"oom-*",
				"timeout-*",
			},
			PollIntervalSeconds: 5,
		},
		Signals: SignalsConfig{
			Harden: true,
		},
		Report: ReportConfig{
			UploadPayload:  false,
			MaxPayloadKB:   512,
			TimeoutSeconds: 10,
		},
		Behavior: BehaviorConfig{
			DaemonIdleMinutes: 0,
			IndexPruneDays:    30,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
// For this project all defaults are good examples.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	if migrate.Config.NeedsMigration(version) {
		// Write a backup before touching the file.
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration atomically to dataDir/config.toml.
func Save(cfg *Config, dataDir string) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dataDir, paths.ConfigFile)
	if err := atomicfile.Write(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels lists accepted [LogConfig.Level] values.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fail": true,
}

// Validate checks the configuration for values that would misbehave at
// runtime: malformed glob patterns, unknown signal names, an unparsable
// collector URL, or nonsensical numeric settings.
func (c *Config) Validate() error {
	if len(c.Watch.Patterns) == 0 {
		return fmt.Errorf("watch.patterns: at least one pattern required")
	}
	for _, p := range c.Watch.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("watch.patterns: invalid glob pattern %q", p)
		}
	}
	if c.Watch.PollIntervalSeconds < 1 {
		return fmt.Errorf("watch.poll_interval_seconds: must be at least 1, got %d", c.Watch.PollIntervalSeconds)
	}

	for _, name := range c.Signals.Extra {
		if _, ok := signalsByName[strings.ToUpper(name)]; !ok {
			return fmt.Errorf("signals.extra: unknown signal %q (accepted: %s)",
				name, strings.Join(SignalNames(), ", "))
		}
	}

	if c.Report.URL != "" {
		u, err := url.Parse(c.Report.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("report.url: not a valid http(s) URL: %q", c.Report.URL)
		}
	}
	if c.Report.MaxPayloadKB < 0 {
		return fmt.Errorf("report.max_payload_kb: must not be negative, got %d", c.Report.MaxPayloadKB)
	}
	if c.Report.TimeoutSeconds < 1 {
		return fmt.Errorf("report.timeout_seconds: must be at least 1, got %d", c.Report.TimeoutSeconds)
	}

	if c.Behavior.DaemonIdleMinutes < 0 {
		return fmt.Errorf("behavior.daemon_idle_minutes: must not be negative, got %d", c.Behavior.DaemonIdleMinutes)
	}
	if c.Behavior.IndexPruneDays < 0 {
		return fmt.Errorf("behavior.index_prune_days: must not be negative, got %d", c.Behavior.IndexPruneDays)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("log.max_size_mb: must be at least 1, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

// ///////////////////////////////////////////////
// Pattern Matching
// ///////////////////////////////////////////////

// MatchesArtifact reports whether name (an artifact file base name) matches
// any configured watch pattern. Invalid patterns were rejected by Validate,
// so match errors here only occur for patterns injected after loading; they
// are logged and treated as non-matching.
func (c *Config) MatchesArtifact(name string) bool {
	for _, pattern := range c.Watch.Patterns {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ArtifactDir resolves the watched artifact directory: the configured
// watch.dir when set, otherwise the default directory under dataDir.
func (c *Config) ArtifactDir(dataDir string) string {
	if c.Watch.Dir != "" {
		return c.Watch.Dir
	}
	return paths.DataDir{Root: dataDir}.Artifacts()
}
