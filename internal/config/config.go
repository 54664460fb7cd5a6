// Package config loads usergraph settings from TOML and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jacentio/usergraph/store"
)

// Config represents the main configuration for usergraph.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Store      store.Config     `toml:"store"`
	Seed       SeedConfig       `toml:"seed"`
	Pagination PaginationConfig `toml:"pagination"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"` // PUT /users body limit
}

// SeedConfig holds the upstream source settings.
type SeedConfig struct {
	BaseURL   string   `toml:"base_url"`
	UserLimit int      `toml:"user_limit"`
	Timeout   Duration `toml:"timeout"`
}

// PaginationConfig holds listing defaults.
type PaginationConfig struct {
	DefaultLimit int64 `toml:"default_limit"`
	MaxLimit     int64 `toml:"max_limit"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn" or "error"
	Format string `toml:"format"` // "text" or "json"
}

// Duration is a time.Duration written as a string such as "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			IdleTimeout:     Duration{120 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
			MaxBodyBytes:    1 << 20,
		},
		Store: store.DefaultConfig(),
		Seed: SeedConfig{
			BaseURL:   "https://jsonplaceholder.typicode.com",
			UserLimit: 10,
			Timeout:   Duration{30 * time.Second},
		},
		Pagination: PaginationConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads path (when non-empty), applies environment overrides from getenv
// and validates the result. A nil getenv uses os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		m := &Manager{}
		cfg, err = m.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"MONGO_URI", &c.Store.URI},
		{"USERGRAPH_STORE", &c.Store.Backend},
		{"USERGRAPH_ADDR", &c.Server.Addr},
		{"AWS_REGION", &c.Store.Region},
		{"DYNAMODB_ENDPOINT", &c.Store.Endpoint},
		{"USERGRAPH_TABLE_PREFIX", &c.Store.TablePrefix},
		{"USERGRAPH_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// Validate fills defaults, clamps numeric values into range and rejects unknown
// enumerations.
func (c *Config) Validate() error {
	d := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	for _, p := range []struct{ v, def *Duration }{
		{&c.Server.ReadTimeout, &d.Server.ReadTimeout},
		{&c.Server.WriteTimeout, &d.Server.WriteTimeout},
		{&c.Server.IdleTimeout, &d.Server.IdleTimeout},
		{&c.Server.ShutdownTimeout, &d.Server.ShutdownTimeout},
		{&c.Seed.Timeout, &d.Seed.Timeout},
	} {
		if p.v.Duration <= 0 {
			*p.v = *p.def
		}
	}
	if c.Server.MaxBodyBytes < 1 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}

	if c.Seed.BaseURL == "" {
		c.Seed.BaseURL = d.Seed.BaseURL
	}
	if c.Seed.UserLimit < 1 {
		c.Seed.UserLimit = d.Seed.UserLimit
	}

	if c.Pagination.MaxLimit < 1 {
		c.Pagination.MaxLimit = d.Pagination.MaxLimit
	}
	if c.Pagination.DefaultLimit < 1 {
		c.Pagination.DefaultLimit = d.Pagination.DefaultLimit
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		c.Pagination.DefaultLimit = c.Pagination.MaxLimit
	}

	c.Store.Validate()
	switch c.Store.Backend {
	case store.BackendMongo, store.BackendDynamoDB, store.BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	switch c.Log.Format {
	case "":
		c.Log.Format = d.Log.Format
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Level)
	}
	return l, nil
}

// NewLogger builds a slog.Logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
