// Package config loads Crewboard settings from a YAML file with environment
// variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/crewboard/internal/models"
)

// Config holds the full configuration for the Crewboard service.
// Values are loaded from a YAML file and can be overridden by environment variables.
type Config struct {
	Server   ServerSection   `yaml:"server"`
	Database DatabaseSection `yaml:"database"`
	NATS     NATSSection     `yaml:"nats"`
	Log      LogSection      `yaml:"log"`
}

// ServerSection holds HTTP listener settings.
type ServerSection struct {
	ListenAddr       string   `yaml:"listen_addr"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// DatabaseSection selects the store backend.
type DatabaseSection struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file
	URL    string `yaml:"url"`    // postgres DSN
}

// NATSSection holds event publishing settings. An empty URL disables
// publishing.
type NATSSection struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	SubjectPrefix string `yaml:"subject_prefix"`
	JetStream     bool   `yaml:"jetstream"`
}

// LogSection configures the slog handler.
type LogSection struct {
	Level string `yaml:"level"`
}

// Defaults.
const (
	DefaultListenAddr    = ":8080"
	DefaultDatabasePath  = "crewboard.db"
	DefaultSubjectPrefix = "crewboard"
	DefaultLogLevel      = "info"
)

// Load reads a YAML config file and applies environment variable overrides.
// Environment variables take precedence over YAML values. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.Server.CORSAllowOrigins = splitList(v)
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("NATS_AUTH_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	if v := os.Getenv("NATS_SUBJECT_PREFIX"); v != "" {
		c.NATS.SubjectPrefix = v
	}
	if v := os.Getenv("NATS_JETSTREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NATS_JETSTREAM must be a boolean, got %q", v)
		}
		c.NATS.JetStream = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = models.DriverSQLite
	}
	if c.Database.Driver == models.DriverSQLite && c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case models.DriverSQLite:
	case models.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for postgres (set via config file or DATABASE_URL env)")
		}
		if _, err := pgx.ParseConfig(c.Database.URL); err != nil {
			return fmt.Errorf("invalid postgres url: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// DB returns the settings for models.Open.
func (c *Config) DB() models.DBConfig {
	return models.DBConfig{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.URL,
	}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	lvl, _ := parseLevel(c.Log.Level)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
