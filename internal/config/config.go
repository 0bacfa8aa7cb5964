// Package config loads chordinate settings from a TOML file and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// CHORDINATE_* environment variables, PORT. A missing config file is not
// an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppName names the configuration directory.
const AppName = "chordinate"

// Config is the complete application configuration.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Storage  StorageConfig  `toml:"storage"`
	Dispatch DispatchConfig `toml:"dispatch"`
	API      APIConfig      `toml:"api"`
	Log      LogConfig      `toml:"log"`
}

// EngineConfig configures chord detection.
type EngineConfig struct {
	// Timeout is the inactivity gap that clears the keystroke window.
	Timeout Duration `toml:"timeout"`

	// DetectionEnabled is the detection state at startup.
	DetectionEnabled bool `toml:"detection_enabled"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// BindingsPath is the JSON bindings file.
	BindingsPath string `toml:"bindings_path"`

	// HistoryPath is the SQLite history database. Empty disables history.
	HistoryPath string `toml:"history_path"`

	// HistoryKeep is how many history entries are kept.
	HistoryKeep int `toml:"history_keep"`

	// SaveDebounce is how long edits settle before the file is written.
	SaveDebounce Duration `toml:"save_debounce"`

	// Watch reloads bindings when the file changes on disk.
	Watch bool `toml:"watch"`
}

// DispatchConfig configures action execution.
type DispatchConfig struct {
	// Shell runs shell actions as `<shell> -lc <command>`.
	Shell string `toml:"shell"`

	// MaxProcesses caps concurrent commands (0 = unlimited).
	MaxProcesses int `toml:"max_processes"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	AllowOrigins []string `toml:"allow_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `toml:"level"`

	// File receives JSON logs with rotation. Empty logs to stderr only.
	File string `toml:"file"`

	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
	MaxAgeDays int `toml:"max_age_days"`
}

// Default returns the built-in configuration. Paths are resolved under
// the user's config directory.
func Default() *Config {
	dir := Dir()
	return &Config{
		Engine: EngineConfig{
			Timeout:          Duration(1250 * time.Millisecond),
			DetectionEnabled: true,
		},
		Storage: StorageConfig{
			BindingsPath: filepath.Join(dir, "bindings.json"),
			HistoryPath:  filepath.Join(dir, "history.db"),
			HistoryKeep:  1000,
			SaveDebounce: Duration(400 * time.Millisecond),
			Watch:        true,
		},
		Dispatch: DispatchConfig{},
		API: APIConfig{
			Enabled:      false,
			Addr:         "127.0.0.1:6789",
			AllowOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Dir returns the configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the TOML file at path into c. A missing file is ignored.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.Parse(path, data)
}

// Parse merges TOML data into c. Source names the data in errors.
func (c *Config) Parse(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, pe.Column = derr.Position()
		}
		return pe
	}
	return nil
}

// Encode writes c as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks every setting and returns the first failure as a
// *ValidationError.
func (c *Config) Validate() error {
	switch {
	case c.Engine.Timeout <= 0:
		return &ValidationError{Path: "engine.timeout", Message: "must be positive", Value: c.Engine.Timeout, Code: ErrCodeOutOfRange}
	case c.Storage.BindingsPath == "":
		return &ValidationError{Path: "storage.bindings_path", Message: "is required", Value: "", Code: ErrCodeRequiredMissing}
	case c.Storage.HistoryKeep < 0:
		return &ValidationError{Path: "storage.history_keep", Message: "must not be negative", Value: c.Storage.HistoryKeep, Code: ErrCodeOutOfRange}
	case c.Storage.SaveDebounce < 0:
		return &ValidationError{Path: "storage.save_debounce", Message: "must not be negative", Value: c.Storage.SaveDebounce, Code: ErrCodeOutOfRange}
	case c.Dispatch.MaxProcesses < 0:
		return &ValidationError{Path: "dispatch.max_processes", Message: "must not be negative", Value: c.Dispatch.MaxProcesses, Code: ErrCodeOutOfRange}
	case c.API.Enabled && c.API.Addr == "":
		return &ValidationError{Path: "api.addr", Message: "is required when the API is enabled", Value: "", Code: ErrCodeRequiredMissing}
	case !validLevel(c.Log.Level):
		return &ValidationError{Path: "log.level", Message: "must be one of trace, debug, info, warn, error", Value: c.Log.Level, Code: ErrCodeInvalidEnum}
	case c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0:
		return &ValidationError{Path: "log", Message: "rotation limits must not be negative", Value: c.Log.MaxSizeMB, Code: ErrCodeOutOfRange}
	}
	return nil
}

func validLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}
