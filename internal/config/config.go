package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Tiliavir/ttr/internal/logging"
	"github.com/Tiliavir/ttr/internal/storage"
)

// Config is the root configuration for ttr, stored in <data dir>/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://time.example.com".
	BaseURL string `json:"base_url"`
	// LogLevel is a zerolog level name for diagnostics on stderr.
	LogLevel string `json:"log_level"`
	// HTTPDebug dumps every request and response at debug level.
	HTTPDebug bool `json:"http_debug"`
	// UndoWindow is how long `ttr delete` offers to undo.
	UndoWindow Duration `json:"undo_window"`
	// StaleTime is how long a fetched listing is reused.
	StaleTime Duration `json:"stale_time"`
	// HTTPTimeout bounds every backend request.
	HTTPTimeout Duration `json:"http_timeout"`

	// DataDir holds config, session, filter and journal. It comes from
	// TTR_DATA_DIR or defaults to ~/.ttr and is never read from the file.
	DataDir string `json:"-"`
}

const (
	DefaultBaseURL     = "http://localhost:3000"
	DefaultLogLevel    = "warn"
	DefaultUndoWindow  = 15 * time.Second
	DefaultStaleTime   = 10 * time.Second
	DefaultHTTPTimeout = 30 * time.Second
)

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// MarshalJSON writes d as "15s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "15s" style strings or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"15s\" or seconds: %w", err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// envOverrides are read with the TTR_ prefix. Unset variables leave the
// file values untouched.
type envOverrides struct {
	BaseURL     string        `envconfig:"BASE_URL"`
	LogLevel    string        `envconfig:"LOG_LEVEL"`
	HTTPDebug   *bool         `envconfig:"DEBUG"`
	UndoWindow  time.Duration `envconfig:"UNDO_WINDOW"`
	StaleTime   time.Duration `envconfig:"STALE_TIME"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT"`
	DataDir     string        `envconfig:"DATA_DIR"`
}

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		LogLevel:    DefaultLogLevel,
		UndoWindow:  Duration(DefaultUndoWindow),
		StaleTime:   Duration(DefaultStaleTime),
		HTTPTimeout: Duration(DefaultHTTPTimeout),
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// ttr configuration
//
// All settings are optional. Every value can be overridden with an
// environment variable: TTR_BASE_URL, TTR_LOG_LEVEL, TTR_DEBUG,
// TTR_UNDO_WINDOW, TTR_STALE_TIME, TTR_HTTP_TIMEOUT.
{
  // Origin of the time records backend.
  "base_url": "http://localhost:3000",

  // Diagnostics on stderr: trace, debug, info, warn, error.
  "log_level": "warn",

  // Dump HTTP requests and responses (needs log_level debug).
  "http_debug": false,

  // How long "ttr delete" waits for an undo.
  "undo_window": "15s",

  // How long a fetched record listing is reused without refetching.
  "stale_time": "10s",

  // Timeout for every backend request.
  "http_timeout": "30s"
}
`

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load resolves the data directory, reads its config.json (writing the
// annotated template on first run) and applies TTR_* overrides.
func Load() (Config, error) {
	var env envOverrides
	if err := envconfig.Process("ttr", &env); err != nil {
		return defaultConfig(), fmt.Errorf("reading environment: %w", err)
	}

	dir := env.DataDir
	if dir == "" {
		base, err := storage.BaseDir()
		if err != nil {
			return defaultConfig(), err
		}
		dir = base
	}

	cfg, err := LoadFile(filepath.Join(dir, "config.json"))
	cfg.DataDir = dir
	if err != nil {
		return cfg, err
	}
	env.apply(&cfg)
	return cfg, cfg.Validate()
}

// LoadFile reads a single config file with defaults back-filled. A missing
// file is created from the annotated template.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return defaultConfig(), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user blanked a value.
	def := defaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = def.UndoWindow
	}
	if cfg.StaleTime < 0 {
		cfg.StaleTime = def.StaleTime
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	return cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	if e.BaseURL != "" {
		cfg.BaseURL = e.BaseURL
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if e.HTTPDebug != nil {
		cfg.HTTPDebug = *e.HTTPDebug
	}
	if e.UndoWindow > 0 {
		cfg.UndoWindow = Duration(e.UndoWindow)
	}
	if e.StaleTime > 0 {
		cfg.StaleTime = Duration(e.StaleTime)
	}
	if e.HTTPTimeout > 0 {
		cfg.HTTPTimeout = Duration(e.HTTPTimeout)
	}
}

// Validate rejects values that cannot be used.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must start with http:// or https://", c.BaseURL)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
