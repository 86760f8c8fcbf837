package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Defaults are overlaid by an
// optional YAML file, then by environment variables.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowSignup     bool          `yaml:"allow_signup"`
	KeyTTL          time.Duration `yaml:"key_ttl"`
	LogFormat       string        `yaml:"log_format"` // "json" (default) or "text"
	LogLevel        string        `yaml:"log_level"`  // "debug", "info" (default), "warn", "error"

	RateLimitAuth  int `yaml:"rate_limit_auth"`  // sign-in/sign-up per IP per minute (default: 20)
	RateLimitWrite int `yaml:"rate_limit_write"` // record writes per API key per minute (default: 120)
	RateLimitFeed  int `yaml:"rate_limit_feed"`  // snapshot/changes per API key per minute (default: 600)
	RateLimitOther int `yaml:"rate_limit_other"` // all other per API key per minute (default: 300)

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // empty = disabled

	// Collections is the allow-list of collection names clients may use.
	Collections []string `yaml:"collections"`

	AuthEventRetention      time.Duration `yaml:"auth_event_retention"`
	RateLimitEventRetention time.Duration `yaml:"rate_limit_event_retention"`

	// WebhookURL receives every committed change when set.
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/worklog.db",
		ShutdownTimeout: 30 * time.Second,
		AllowSignup:     true,
		KeyTTL:          30 * 24 * time.Hour,
		LogFormat:       "json",
		LogLevel:        "info",

		RateLimitAuth:  20,
		RateLimitWrite: 120,
		RateLimitFeed:  600,
		RateLimitOther: 300,

		Collections: []string{"logs"},

		AuthEventRetention:      90 * 24 * time.Hour,
		RateLimitEventRetention: 30 * 24 * time.Hour,
	}
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()
	applyEnv(&cfg)
	return cfg
}

// LoadConfigFile reads a YAML config file over the defaults, then applies
// environment overrides.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WORKLOG_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("WORKLOG_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WORKLOG_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("WORKLOG_ALLOW_SIGNUP"); v == "false" || v == "0" {
		cfg.AllowSignup = false
	}
	if v := os.Getenv("WORKLOG_KEY_TTL"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.KeyTTL = d
		}
	}
	if v := os.Getenv("WORKLOG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("WORKLOG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	envInt(&cfg.RateLimitAuth, "WORKLOG_RATE_LIMIT_AUTH")
	envInt(&cfg.RateLimitWrite, "WORKLOG_RATE_LIMIT_WRITE")
	envInt(&cfg.RateLimitFeed, "WORKLOG_RATE_LIMIT_FEED")
	envInt(&cfg.RateLimitOther, "WORKLOG_RATE_LIMIT_OTHER")

	if v := os.Getenv("WORKLOG_AUTH_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.AuthEventRetention = d
		}
	}
	if v := os.Getenv("WORKLOG_RATE_LIMIT_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.RateLimitEventRetention = d
		}
	}

	if v := os.Getenv("WORKLOG_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WORKLOG_COLLECTIONS"); v != "" {
		cfg.Collections = splitList(v)
	}
	if v := os.Getenv("WORKLOG_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("WORKLOG_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// parseDaysDuration parses a string like "90d", "30d" into a time.Duration.
// Falls back to time.ParseDuration for standard Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}
