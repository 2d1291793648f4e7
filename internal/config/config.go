// ABOUTME: Configuration loading and parsing for opsboard
// ABOUTME: Layers defaults, an optional YAML/TOML file, .env and environment overrides

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// MinSecretLength matches the session signer's requirement.
const MinSecretLength = 16

// Config represents the complete opsboard configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Board     BoardConfig     `yaml:"board" toml:"board"`
	Realtime  RealtimeConfig  `yaml:"realtime" toml:"realtime"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a reverse proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" toml:"trust_proxy"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds session and bootstrap admin configuration
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" toml:"jwt_secret"`
	SessionExpiry time.Duration `yaml:"-" toml:"-"`
	AdminName     string        `yaml:"admin_name" toml:"admin_name"`
	AdminPIN      string        `yaml:"admin_pin" toml:"admin_pin"`

	SessionExpiryRaw string `yaml:"session_expiry" toml:"session_expiry"`
}

// BoardConfig holds board presentation settings
type BoardConfig struct {
	TimeZone string `yaml:"timezone" toml:"timezone"`
	SkipDemo bool   `yaml:"skip_demo" toml:"skip_demo"`
}

// RealtimeConfig holds socket and cross-process relay configuration
type RealtimeConfig struct {
	// RedisURL enables the relay when set, e.g. redis://localhost:6379/0
	RedisURL     string        `yaml:"redis_url" toml:"redis_url"`
	Channel      string        `yaml:"channel" toml:"channel"`
	PingInterval time.Duration `yaml:"-" toml:"-"`

	PingIntervalRaw string `yaml:"ping_interval" toml:"ping_interval"`
}

// RateLimitConfig bounds API requests per client
type RateLimitConfig struct {
	Requests int           `yaml:"requests" toml:"requests"`
	Window   time.Duration `yaml:"-" toml:"-"`

	WindowRaw string `yaml:"window" toml:"window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// envOverrides lists the environment variables that take precedence over the file.
// Unset or empty variables leave the configured value alone.
type envOverrides struct {
	DBPath        *string `envconfig:"DB_PATH"`
	Port          *string `envconfig:"PORT"`
	JWTSecret     *string `envconfig:"JWT_SECRET"`
	SessionExpiry *string `envconfig:"SESSION_EXPIRY"`
	AdminPIN      *string `envconfig:"ADMIN_PIN"`
	AdminName     *string `envconfig:"ADMIN_NAME"`
	LogLevel      *string `envconfig:"LOG_LEVEL"`
	LogFormat     *string `envconfig:"LOG_FORMAT"`
	RedisURL      *string `envconfig:"REDIS_URL"`
	TimeZone      *string `envconfig:"TIMEZONE"`
	TrustProxy    *string `envconfig:"TRUST_PROXY"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: "0.0.0.0:3000"},
		Database: DatabaseConfig{Path: "./data/opsboard.db"},
		Auth: AuthConfig{
			SessionExpiryRaw: "24h",
			AdminName:        "Head Chef",
			AdminPIN:         "1234",
		},
		Board:     BoardConfig{TimeZone: "Europe/London"},
		Realtime:  RealtimeConfig{PingIntervalRaw: "30s"},
		RateLimit: RateLimitConfig{Requests: 200, WindowRaw: "15m"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first (existing variables win), then the file at path if path is
// non-empty, then environment overrides. Environment variables in the format
// ${VAR_NAME} are expanded in the file. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	set := func(dst *string, v *string) {
		if v != nil && *v != "" {
			*dst = *v
		}
	}
	set(&c.Database.Path, env.DBPath)
	set(&c.Auth.JWTSecret, env.JWTSecret)
	set(&c.Auth.SessionExpiryRaw, env.SessionExpiry)
	set(&c.Auth.AdminPIN, env.AdminPIN)
	set(&c.Auth.AdminName, env.AdminName)
	set(&c.Logging.Level, env.LogLevel)
	set(&c.Logging.Format, env.LogFormat)
	set(&c.Realtime.RedisURL, env.RedisURL)
	set(&c.Board.TimeZone, env.TimeZone)

	if env.TrustProxy != nil && *env.TrustProxy != "" {
		trust, err := strconv.ParseBool(*env.TrustProxy)
		if err != nil {
			return fmt.Errorf("TRUST_PROXY: %w", err)
		}
		c.Server.TrustProxy = trust
	}

	if env.Port != nil && *env.Port != "" {
		host, _, err := net.SplitHostPort(c.Server.HTTPAddr)
		if err != nil {
			host = "0.0.0.0"
		}
		c.Server.HTTPAddr = net.JoinHostPort(host, *env.Port)
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}
	if c.Auth.SessionExpiry <= 0 {
		return fmt.Errorf("auth.session_expiry must be positive")
	}
	if strings.TrimSpace(c.Auth.AdminName) == "" {
		return fmt.Errorf("auth.admin_name is required")
	}
	if len(c.Auth.AdminPIN) < 4 {
		return fmt.Errorf("auth.admin_pin must be at least 4 characters")
	}
	if _, err := time.LoadLocation(c.Board.TimeZone); err != nil {
		return fmt.Errorf("board.timezone %q: %w", c.Board.TimeZone, err)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// Location returns the board's time zone. Validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Board.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionExpiry, err = time.ParseDuration(cfg.Auth.SessionExpiryRaw); err != nil {
		return fmt.Errorf("parsing session_expiry %q: %w", cfg.Auth.SessionExpiryRaw, err)
	}

	if cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw); err != nil {
		return fmt.Errorf("parsing rate_limit.window %q: %w", cfg.RateLimit.WindowRaw, err)
	}

	if cfg.Realtime.PingIntervalRaw != "" {
		if cfg.Realtime.PingInterval, err = time.ParseDuration(cfg.Realtime.PingIntervalRaw); err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Realtime.PingIntervalRaw, err)
		}
	}

	return nil
}
