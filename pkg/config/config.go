package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/unitpos"
)

// Environment variables that override file values.
const (
	EnvBaseURL  = "KINTONE_BASE_URL"
	EnvAPIToken = "KINTONE_API_TOKEN"
	EnvUsername = "KINTONE_USERNAME"
	EnvPassword = "KINTONE_PASSWORD"
	EnvAddr     = "KINTONE_FORMS_ADDR"
)

// Config is the full runtime configuration.
type Config struct {
	Kintone KintoneConfig `yaml:"kintone" toml:"kintone"`
	Units   UnitsConfig   `yaml:"units" toml:"units"`
	Layout  LayoutConfig  `yaml:"layout" toml:"layout"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// KintoneConfig holds the platform connection settings.
type KintoneConfig struct {
	BaseURL   string   `yaml:"base_url" toml:"base_url"`
	APITokens []string `yaml:"api_tokens" toml:"api_tokens"`
	Username  string   `yaml:"username" toml:"username"`
	Password  string   `yaml:"password" toml:"password"`
	// LiveReads targets the deployed app settings instead of the preview
	// environment for read calls.
	LiveReads bool   `yaml:"live_reads" toml:"live_reads"`
	Timeout   string `yaml:"timeout" toml:"timeout"`
}

// UnitsConfig replaces the unit-position pattern sets. A nil list keeps the
// built-in defaults.
type UnitsConfig struct {
	Before []string `yaml:"before" toml:"before"`
	After  []string `yaml:"after" toml:"after"`
}

// LayoutConfig tunes the layout corrector.
type LayoutConfig struct {
	AutoInsertMissing bool              `yaml:"auto_insert_missing" toml:"auto_insert_missing"`
	SanitizeLabels    *bool             `yaml:"sanitize_labels" toml:"sanitize_labels"`
	DefaultWidths     map[string]string `yaml:"default_widths" toml:"default_widths"`
	FallbackWidth     string            `yaml:"fallback_width" toml:"fallback_width"`
}

// ServerConfig configures the tool HTTP server.
type ServerConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	BasePath string `yaml:"base_path" toml:"base_path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Kintone: KintoneConfig{Timeout: "30s"},
		Server:  ServerConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML or TOML file (chosen by extension), expands ${VAR}
// references, applies environment overrides and validates the result. An
// empty path loads the defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg, err = Parse(data, formatFor(path))
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml" or "toml") over the
// defaults and expands ${VAR} references. Unknown keys are rejected.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(format) {
	case "toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case "yaml", "yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	cfg.expand(os.Getenv)
	return cfg, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

var envVarRE = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string, getenv func(string) string) string {
	return envVarRE.ReplaceAllStringFunc(s, func(match string) string {
		return getenv(envVarRE.FindStringSubmatch(match)[1])
	})
}

func (c *Config) expand(getenv func(string) string) {
	k := &c.Kintone
	k.BaseURL = expandEnvVars(k.BaseURL, getenv)
	k.Username = expandEnvVars(k.Username, getenv)
	k.Password = expandEnvVars(k.Password, getenv)
	k.Timeout = expandEnvVars(k.Timeout, getenv)
	tokens := k.APITokens[:0]
	for _, token := range k.APITokens {
		if expanded := strings.TrimSpace(expandEnvVars(token, getenv)); expanded != "" {
			tokens = append(tokens, expanded)
		}
	}
	k.APITokens = tokens
	c.Server.Addr = expandEnvVars(c.Server.Addr, getenv)
	c.Server.BasePath = expandEnvVars(c.Server.BasePath, getenv)
}

// ApplyEnv overrides file values with the KINTONE_* variables. The token
// variable may hold several comma separated tokens.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.Kintone.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAPIToken); ok && strings.TrimSpace(v) != "" {
		var tokens []string
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens = append(tokens, token)
			}
		}
		c.Kintone.APITokens = tokens
	}
	if v, ok := lookup(EnvUsername); ok && v != "" {
		c.Kintone.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Kintone.Password = v
	}
	if v, ok := lookup(EnvAddr); ok && strings.TrimSpace(v) != "" {
		c.Server.Addr = strings.TrimSpace(v)
	}
}

// Validate checks the settings every command depends on. Connection
// settings are checked separately by ValidateRemote.
func (c *Config) Validate() error {
	if _, err := c.Kintone.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	for typ, width := range c.Layout.DefaultWidths {
		if !isDigits(width) {
			return fmt.Errorf("config: layout.default_widths.%s must be a decimal string, got %q", typ, width)
		}
	}
	if c.Layout.FallbackWidth != "" && !isDigits(c.Layout.FallbackWidth) {
		return fmt.Errorf("config: layout.fallback_width must be a decimal string, got %q", c.Layout.FallbackWidth)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config: server.base_path must start with /, got %q", c.Server.BasePath)
	}
	return nil
}

// ValidateRemote checks the settings needed to talk to the platform.
func (c *Config) ValidateRemote() error {
	if strings.TrimSpace(c.Kintone.BaseURL) == "" {
		return fmt.Errorf("config: kintone.base_url is required (or set %s)", EnvBaseURL)
	}
	if len(c.Kintone.APITokens) == 0 && (c.Kintone.Username == "" || c.Kintone.Password == "") {
		return fmt.Errorf("config: kintone.api_tokens or kintone.username and kintone.password are required")
	}
	return nil
}

// TimeoutDuration parses the request timeout. Empty means no timeout.
func (k KintoneConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(k.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(k.Timeout))
	if err != nil {
		return 0, fmt.Errorf("config: kintone.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: kintone.timeout must not be negative")
	}
	return d, nil
}

// UnitClassifier builds the unit-position classifier for the configured
// pattern sets.
func (c *Config) UnitClassifier() *unitpos.Classifier {
	return unitpos.New(c.Units.Before, c.Units.After)
}

// CorrectorOptions returns the layout corrector options for this config.
func (c *Config) CorrectorOptions() []layout.Option {
	opts := []layout.Option{layout.WithAutoInsertMissing(c.Layout.AutoInsertMissing)}
	if c.Layout.SanitizeLabels != nil {
		opts = append(opts, layout.WithLabelSanitizing(*c.Layout.SanitizeLabels))
	}
	if len(c.Layout.DefaultWidths) > 0 {
		opts = append(opts, layout.WithDefaultWidths(c.Layout.DefaultWidths))
	}
	if c.Layout.FallbackWidth != "" {
		opts = append(opts, layout.WithFallbackWidth(c.Layout.FallbackWidth))
	}
	return opts
}

// ParseLevel maps a level name onto a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", level)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
