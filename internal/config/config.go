// Package config loads application configuration from defaults, an optional
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix of structured environment overrides.
// Nested keys use a double underscore: APP_SERVER__PORT=9000.
const EnvPrefix = "APP_"

// Email providers.
const (
	EmailProviderBrevo = "brevo"
	EmailProviderSMTP  = "smtp"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	JWT      JWTConfig      `koanf:"jwt"`
	CORS     CORSConfig     `koanf:"cors"`
	News     NewsConfig     `koanf:"news"`
	Email    EmailConfig    `koanf:"email"`
	Digest   DigestConfig   `koanf:"digest"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MinIdleConns    int           `koanf:"min_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig configures bearer token issuance.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// NewsConfig configures the news search provider.
type NewsConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Language string        `koanf:"language"`
	Timeout  time.Duration `koanf:"timeout"`
}

// EmailConfig configures digest delivery.
type EmailConfig struct {
	Provider    string        `koanf:"provider"`
	FromName    string        `koanf:"from_name"`
	FromAddress string        `koanf:"from_address"`
	Timeout     time.Duration `koanf:"timeout"`
	Brevo       BrevoConfig   `koanf:"brevo"`
	SMTP        SMTPConfig    `koanf:"smtp"`
}

// BrevoConfig configures the Brevo transactional email API.
type BrevoConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	// RateLimit caps outgoing API calls per second.
	RateLimit float64 `koanf:"rate_limit"`
}

// SMTPConfig configures a plain SMTP relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// DigestConfig configures the scheduled digest job and its HTTP trigger.
type DigestConfig struct {
	// Environment selects the default schedule: "production" runs daily at noon,
	// anything else every five minutes.
	Environment      string        `koanf:"environment"`
	Schedule         string        `koanf:"schedule"`
	Timezone         string        `koanf:"timezone"`
	SchedulerEnabled bool          `koanf:"scheduler_enabled"`
	RunTimeout       time.Duration `koanf:"run_timeout"`
	CronSecret       string        `koanf:"cron_secret"`
	// TriggerRatePerMinute limits GET /api/cron; zero disables the limit.
	TriggerRatePerMinute float64 `koanf:"trigger_rate_per_minute"`
	TriggerBurst         int     `koanf:"trigger_burst"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "5000",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MinIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  60 * time.Second,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			TokenDuration: 30 * 24 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		News: NewsConfig{
			BaseURL:  "https://newsapi.org",
			Language: "en",
			Timeout:  10 * time.Second,
		},
		Email: EmailConfig{
			Provider:    EmailProviderBrevo,
			FromName:    "News Digest",
			FromAddress: "no-reply@news-digest.app",
			Timeout:     10 * time.Second,
			Brevo: BrevoConfig{
				BaseURL:   "https://api.brevo.com/v3",
				RateLimit: 5,
			},
			SMTP: SMTPConfig{
				Port: 587,
			},
		},
		Digest: DigestConfig{
			Environment:          "development",
			Timezone:             "UTC",
			SchedulerEnabled:     true,
			RunTimeout:           15 * time.Minute,
			TriggerRatePerMinute: 6,
			TriggerBurst:         1,
		},
	}
}

// legacyEnv maps unprefixed variables used by existing deployments to config keys.
var legacyEnv = map[string]string{
	"PORT":          "server.port",
	"DATABASE_URL":  "database.url",
	"JWT_SECRET":    "jwt.secret_key",
	"NEWS_API_KEY":  "news.api_key",
	"BREVO_API_KEY": "email.brevo.api_key",
	"NODE_ENV":      "digest.environment",
	"CRON_SECRET":   "digest.cron_secret",
}

// Load builds the configuration. Later sources win:
// defaults, YAML file at path (optional), legacy variables, APP_* variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("set %s from %s: %w", key, name, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKeyValue turns APP_EMAIL__SMTP__HOST into email.smtp.host and splits
// comma separated list values.
func envKeyValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")

	if strings.HasSuffix(key, "allowed_origins") {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}

	return key, value
}

// Validate checks settings the application cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if c.JWT.TokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.token_duration must be positive"))
	}
	switch c.Email.Provider {
	case EmailProviderBrevo, EmailProviderSMTP:
	default:
		errs = append(errs, fmt.Errorf("email.provider must be %q or %q, got %q",
			EmailProviderBrevo, EmailProviderSMTP, c.Email.Provider))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Digest.Schedule != "" {
		if _, err := cron.ParseStandard(c.Digest.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("digest.schedule: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("digest.timezone: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the digest runs with the production schedule.
func (d DigestConfig) IsProduction() bool {
	return strings.EqualFold(d.Environment, "production")
}
