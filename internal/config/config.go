// Package config loads the service configuration.
//
// Values are layered: Default, then an optional YAML file, then a .env file,
// then process environment variables. Command-line flags are applied last
// by the binary.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/scoring_api/internal/auth"
	"github.com/R3E-Network/scoring_api/internal/logging"
	"github.com/R3E-Network/scoring_api/internal/store"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HTTPConfig configures the listener and request limits.
type HTTPConfig struct {
	Addr         string        `yaml:"addr" env:"SCORING_HTTP_ADDR"`
	Port         int           `yaml:"port" env:"SCORING_HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SCORING_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SCORING_HTTP_WRITE_TIMEOUT"`
	// MaxBodyBytes caps the accepted request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"SCORING_HTTP_MAX_BODY_BYTES"`
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig addresses the cache store and sets its reconnect budget.
// Retries is the number of reconnects per call; zero disables them.
type StoreConfig struct {
	Host          string        `yaml:"host" env:"SCORING_STORE_HOST"`
	Port          int           `yaml:"port" env:"SCORING_STORE_PORT"`
	DB            int           `yaml:"db" env:"SCORING_STORE_DB"`
	Password      string        `yaml:"password" env:"SCORING_STORE_PASSWORD"`
	Prefix        string        `yaml:"prefix" env:"SCORING_STORE_PREFIX"`
	Retries       int           `yaml:"retries" env:"SCORING_STORE_RETRIES"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"SCORING_STORE_RETRY_INTERVAL"`
	DialTimeout   time.Duration `yaml:"dial_timeout" env:"SCORING_STORE_DIAL_TIMEOUT"`
}

// AuthConfig holds the token salts and the admin login.
type AuthConfig struct {
	Salt       string `yaml:"salt" env:"SCORING_AUTH_SALT"`
	AdminLogin string `yaml:"admin_login" env:"SCORING_AUTH_ADMIN_LOGIN"`
	AdminSalt  string `yaml:"admin_salt" env:"SCORING_AUTH_ADMIN_SALT"`
}

// ScoringConfig tunes the score cache and the admin score.
type ScoringConfig struct {
	ScoreTTL   time.Duration `yaml:"score_ttl" env:"SCORING_SCORE_TTL"`
	AdminScore float64       `yaml:"admin_score" env:"SCORING_ADMIN_SCORE"`
}

// LogConfig selects the log level, format and destination.
type LogConfig struct {
	Level  string `yaml:"level" env:"SCORING_LOG_LEVEL"`
	Format string `yaml:"format" env:"SCORING_LOG_FORMAT"`
	// File, when set, receives log output instead of stdout.
	File string `yaml:"file" env:"SCORING_LOG_FILE"`
}

// RateLimitConfig throttles each client address. A zero RPS disables it.
type RateLimitConfig struct {
	RPS   int `yaml:"rps" env:"SCORING_RATE_LIMIT_RPS"`
	Burst int `yaml:"burst" env:"SCORING_RATE_LIMIT_BURST"`
	// IdleTimeout drops the limiter of a client unseen for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SCORING_RATE_LIMIT_IDLE_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	a := auth.DefaultConfig()
	return &Config{
		HTTP: HTTPConfig{
			Addr:         "localhost",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Store: StoreConfig{
			Host:          "localhost",
			Port:          6379,
			Prefix:        "scoring",
			Retries:       5,
			RetryInterval: 200 * time.Millisecond,
			DialTimeout:   2 * time.Second,
		},
		Auth: AuthConfig{
			Salt:       a.Salt,
			AdminLogin: a.AdminLogin,
			AdminSalt:  a.AdminSalt,
		},
		Scoring: ScoringConfig{
			ScoreTTL:   time.Hour,
			AdminScore: 42,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			IdleTimeout: 5 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), the .env file at envFile (if it exists) and the
// process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http: invalid port %d", c.HTTP.Port)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http: max_body_bytes must be positive")
	}
	if c.Store.Host == "" {
		return fmt.Errorf("store: host is required")
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("store: invalid port %d", c.Store.Port)
	}
	if c.Store.Retries < 0 {
		return fmt.Errorf("store: retries must not be negative")
	}
	if c.Store.RetryInterval <= 0 {
		return fmt.Errorf("store: retry_interval must be positive")
	}
	if c.Auth.AdminLogin == "" {
		return fmt.Errorf("auth: admin_login is required")
	}
	if c.Scoring.ScoreTTL <= 0 {
		return fmt.Errorf("scoring: score_ttl must be positive")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: rps and burst must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.IdleTimeout <= 0 {
		return fmt.Errorf("rate_limit: idle_timeout must be positive")
	}
	return nil
}

// AuthSettings returns the authenticator settings.
func (c *Config) AuthSettings() auth.Config {
	return auth.Config{
		Salt:       c.Auth.Salt,
		AdminLogin: c.Auth.AdminLogin,
		AdminSalt:  c.Auth.AdminSalt,
	}
}

// RedisSettings returns the address of the cache store.
func (c *Config) RedisSettings() store.RedisConfig {
	return store.RedisConfig{
		Host:        c.Store.Host,
		Port:        c.Store.Port,
		DB:          c.Store.DB,
		Password:    c.Store.Password,
		DialTimeout: c.Store.DialTimeout,
	}
}

// StoreOptions returns the store options. A configured retries of zero
// means no reconnects, which store.Options spells as a negative count.
func (c *Config) StoreOptions(logger *logging.Logger) store.Options {
	retries := c.Store.Retries
	if retries == 0 {
		retries = -1
	}
	return store.Options{
		Prefix:        c.Store.Prefix,
		Retries:       retries,
		RetryInterval: c.Store.RetryInterval,
		Logger:        logger,
	}
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Addr, c.HTTP.Port)
}
