package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHORDINATE_"

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// setter applies a string value to one setting.
type setter func(c *Config, v string) error

// envSettings maps setting paths to setters.
var envSettings = map[string]setter{
	"engine.timeout":           durationSetter(func(c *Config) *Duration { return &c.Engine.Timeout }),
	"engine.detection_enabled": boolSetter(func(c *Config) *bool { return &c.Engine.DetectionEnabled }),
	"storage.bindings_path":    stringSetter(func(c *Config) *string { return &c.Storage.BindingsPath }),
	"storage.history_path":     stringSetter(func(c *Config) *string { return &c.Storage.HistoryPath }),
	"storage.history_keep":     intSetter(func(c *Config) *int { return &c.Storage.HistoryKeep }),
	"storage.save_debounce":    durationSetter(func(c *Config) *Duration { return &c.Storage.SaveDebounce }),
	"storage.watch":            boolSetter(func(c *Config) *bool { return &c.Storage.Watch }),
	"dispatch.shell":           stringSetter(func(c *Config) *string { return &c.Dispatch.Shell }),
	"dispatch.max_processes":   intSetter(func(c *Config) *int { return &c.Dispatch.MaxProcesses }),
	"api.enabled":              boolSetter(func(c *Config) *bool { return &c.API.Enabled }),
	"api.addr":                 stringSetter(func(c *Config) *string { return &c.API.Addr }),
	"api.allow_origins":        listSetter(func(c *Config) *[]string { return &c.API.AllowOrigins }),
	"log.level":                stringSetter(func(c *Config) *string { return &c.Log.Level }),
	"log.file":                 stringSetter(func(c *Config) *string { return &c.Log.File }),
	"log.max_size_mb":          intSetter(func(c *Config) *int { return &c.Log.MaxSizeMB }),
	"log.max_backups":          intSetter(func(c *Config) *int { return &c.Log.MaxBackups }),
	"log.max_age_days":         intSetter(func(c *Config) *int { return &c.Log.MaxAgeDays }),
}

// ApplyEnv applies CHORDINATE_* overrides and PORT. Empty values are
// treated as set. An unparsable value is a *ValidationError.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for path, set := range envSettings {
		v, ok := lookup(PathToEnv(path))
		if !ok {
			continue
		}
		if err := set(c, v); err != nil {
			return &ValidationError{Path: path, Message: err.Error(), Value: v, Code: ErrCodeTypeMismatch}
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		if err := c.setPort(port); err != nil {
			return err
		}
	}
	return nil
}

// UnknownEnv returns CHORDINATE_* variables in environ that name no
// setting.
func UnknownEnv(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if _, ok := envSettings[EnvToPath(name)]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Set applies a single setting by path, e.g. Set("engine.timeout", "2s").
func (c *Config) Set(path, value string) error {
	set, ok := envSettings[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	if err := set(c, value); err != nil {
		return &ValidationError{Path: path, Message: err.Error(), Value: value, Code: ErrCodeTypeMismatch}
	}
	return nil
}

// setPort replaces the port of the API address.
func (c *Config) setPort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return &ValidationError{Path: "api.addr", Message: "PORT must be a port number", Value: port, Code: ErrCodeOutOfRange}
	}
	host, _, err := net.SplitHostPort(c.API.Addr)
	if err != nil {
		host = ""
	}
	c.API.Addr = net.JoinHostPort(host, port)
	return nil
}

// EnvToPath converts CHORDINATE_ENGINE_DETECTION_ENABLED to
// engine.detection_enabled.
func EnvToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, EnvPrefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok {
		return section
	}
	return section + "." + setting
}

// PathToEnv converts engine.detection_enabled to
// CHORDINATE_ENGINE_DETECTION_ENABLED.
func PathToEnv(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

func stringSetter(field func(*Config) *string) setter {
	return func(c *Config, v string) error {
		*field(c) = os.ExpandEnv(v)
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(c *Config, v string) error {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			*field(c) = true
		case "false", "no", "off", "0", "":
			*field(c) = false
		default:
			return errors.New("not a boolean")
		}
		return nil
	}
}

func intSetter(field func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.New("not an integer")
		}
		*field(c) = n
		return nil
	}
}

func durationSetter(field func(*Config) *Duration) setter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.New("not a duration")
		}
		*field(c) = Duration(d)
		return nil
	}
}

func listSetter(field func(*Config) *[]string) setter {
	return func(c *Config, v string) error {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*field(c) = out
		return nil
	}
}
