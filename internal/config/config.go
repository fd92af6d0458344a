package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/ratelimit"
)

// Config defines server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Transport    TransportConfig    `yaml:"transport"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Cache        CacheConfig        `yaml:"cache"`
	Mirror       MirrorConfig       `yaml:"mirror"`
	Components   ComponentsConfig   `yaml:"components"`
	Storage      StorageConfig      `yaml:"storage"`
	GlobalLedger GlobalLedgerConfig `yaml:"global_ledger"`
	Query        QueryConfig        `yaml:"query"`
	API          APIConfig          `yaml:"api"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	InstanceID string `yaml:"instance_id"`
}

type TransportConfig struct {
	// Mode is "http" or "stdio".
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type AuthConfig struct {
	Enabled     bool                `yaml:"enabled"`
	InsecureDev bool                `yaml:"insecure_dev"`
	DevRole     string              `yaml:"dev_role"`
	Keys        []auth.Key          `yaml:"keys"`
	Roles       map[string][]string `yaml:"roles"`
	// ModelPath and PolicyPath load casbin files instead of Roles.
	ModelPath  string `yaml:"model_path"`
	PolicyPath string `yaml:"policy_path"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	PollTTL     time.Duration `yaml:"poll_ttl"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

type MirrorConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver  string        `yaml:"driver"`
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

type ComponentsConfig struct {
	ReceiptGateURL string           `yaml:"receiptgate_url"`
	AsyncGateURL   string           `yaml:"asyncgate_url"`
	APIKey         string           `yaml:"api_key"`
	Timeout        time.Duration    `yaml:"timeout"`
	RateLimits     ratelimit.Config `yaml:"rate_limits"`
}

type StorageConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type GlobalLedgerConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowByDefault bool          `yaml:"allow_by_default"`
}

type QueryConfig struct {
	DefaultLimit      int           `yaml:"default_limit"`
	MaxLimit          int           `yaml:"max_limit"`
	DefaultTimeWindow time.Duration `yaml:"default_time_window"`
	MaxTimeWindow     time.Duration `yaml:"max_time_window"`
	FreshMaxAge       time.Duration `yaml:"fresh_max_age"`
	MaxScan           int           `yaml:"max_scan"`
}

type APIConfig struct {
	// RateLimitPerMinute bounds REST requests per API key. Zero disables it.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Transport: TransportConfig{Mode: "http"},
		Log:       LogConfig{Level: "info"},
		Auth: AuthConfig{
			Enabled: true,
			DevRole: "admin",
			Roles: map[string][]string{
				"admin":    {"can_view_receipts", "can_view_artifacts", "can_poll_health", "can_poll_queue", "can_force_global_ledger"},
				"operator": {"can_view_receipts", "can_poll_health", "can_poll_queue"},
				"viewer":   {"can_view_receipts"},
			},
		},
		Cache: CacheConfig{
			Backend:     "memory",
			TTL:         30 * time.Second,
			PollTTL:     5 * time.Second,
			RedisPrefix: "interview:cache:",
		},
		Mirror: MirrorConfig{
			Driver:  "sqlite",
			DSN:     "interview-mirror.db",
			Timeout: time.Second,
		},
		Components: ComponentsConfig{
			Timeout:    500 * time.Millisecond,
			RateLimits: ratelimit.DefaultConfig(),
		},
		Storage:      StorageConfig{Timeout: 2 * time.Second},
		GlobalLedger: GlobalLedgerConfig{Timeout: 5 * time.Second},
		Query: QueryConfig{
			DefaultLimit:      100,
			MaxLimit:          200,
			DefaultTimeWindow: 24 * time.Hour,
			MaxTimeWindow:     168 * time.Hour,
			FreshMaxAge:       5 * time.Second,
			MaxScan:           1000,
		},
		API: APIConfig{RateLimitPerMinute: 120},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("INTERVIEW_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("INTERVIEW_SERVER_HOST", &cfg.Server.Host)
	num("INTERVIEW_SERVER_PORT", &cfg.Server.Port)
	str("INTERVIEW_INSTANCE_ID", &cfg.Server.InstanceID)
	str("INTERVIEW_TRANSPORT", &cfg.Transport.Mode)
	str("INTERVIEW_LOG_LEVEL", &cfg.Log.Level)
	str("INTERVIEW_LOG_PATH", &cfg.Log.Path)

	flag("INTERVIEW_AUTH_ENABLED", &cfg.Auth.Enabled)
	flag("INTERVIEW_ALLOW_INSECURE_DEV", &cfg.Auth.InsecureDev)
	str("INTERVIEW_AUTH_MODEL_PATH", &cfg.Auth.ModelPath)
	str("INTERVIEW_AUTH_POLICY_PATH", &cfg.Auth.PolicyPath)
	if key := os.Getenv("INTERVIEW_API_KEY"); key != "" {
		role := os.Getenv("INTERVIEW_API_KEY_ROLE")
		if role == "" {
			role = "admin"
		}
		cfg.Auth.Keys = append(cfg.Auth.Keys, auth.Key{ID: "env", Hash: auth.HashKey(key), Tenant: auth.AnyTenant, Role: role})
	}

	str("INTERVIEW_CACHE_BACKEND", &cfg.Cache.Backend)
	dur("INTERVIEW_CACHE_TTL", &cfg.Cache.TTL)
	str("INTERVIEW_REDIS_ADDR", &cfg.Cache.RedisAddr)

	str("INTERVIEW_MIRROR_DRIVER", &cfg.Mirror.Driver)
	str("INTERVIEW_MIRROR_DSN", &cfg.Mirror.DSN)
	dur("INTERVIEW_MIRROR_TIMEOUT", &cfg.Mirror.Timeout)

	str("INTERVIEW_RECEIPTGATE_URL", &cfg.Components.ReceiptGateURL)
	str("INTERVIEW_ASYNCGATE_URL", &cfg.Components.AsyncGateURL)
	str("INTERVIEW_COMPONENT_API_KEY", &cfg.Components.APIKey)
	dur("INTERVIEW_POLL_TIMEOUT", &cfg.Components.Timeout)

	str("INTERVIEW_DEPOTGATE_URL", &cfg.Storage.URL)
	str("INTERVIEW_DEPOTGATE_API_KEY", &cfg.Storage.APIKey)

	str("INTERVIEW_GLOBAL_LEDGER_URL", &cfg.GlobalLedger.URL)
	str("INTERVIEW_GLOBAL_LEDGER_API_KEY", &cfg.GlobalLedger.APIKey)
	flag("INTERVIEW_ALLOW_GLOBAL_LEDGER", &cfg.GlobalLedger.AllowByDefault)

	num("INTERVIEW_MAX_SCAN", &cfg.Query.MaxScan)
	dur("INTERVIEW_FRESH_MAX_AGE", &cfg.Query.FreshMaxAge)
	num("INTERVIEW_API_RATE_LIMIT", &cfg.API.RateLimitPerMinute)

	return errors.Join(errs...)
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be http or stdio, got %q", c.Transport.Mode))
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	switch c.Mirror.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("mirror.driver must be sqlite or postgres, got %q", c.Mirror.Driver))
	}
	for name, raw := range map[string]string{
		"components.receiptgate_url": c.Components.ReceiptGateURL,
		"components.asyncgate_url":   c.Components.AsyncGateURL,
		"storage.url":                c.Storage.URL,
		"global_ledger.url":          c.GlobalLedger.URL,
	} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Auth.Enabled && !c.Auth.InsecureDev && len(c.Auth.Keys) == 0 && c.Transport.Mode == "http" {
		errs = append(errs, errors.New("auth enabled but no keys configured; set INTERVIEW_API_KEY or INTERVIEW_ALLOW_INSECURE_DEV=true"))
	}
	if (c.Auth.ModelPath == "") != (c.Auth.PolicyPath == "") {
		errs = append(errs, errors.New("auth.model_path and auth.policy_path must be set together"))
	}
	q := c.Query
	if q.MaxLimit < 1 || q.DefaultLimit < 1 || q.DefaultLimit > q.MaxLimit {
		errs = append(errs, errors.New("query limits must satisfy 1 <= default_limit <= max_limit"))
	}
	if q.DefaultTimeWindow <= 0 || q.DefaultTimeWindow > q.MaxTimeWindow {
		errs = append(errs, errors.New("query windows must satisfy 0 < default_time_window <= max_time_window"))
	}
	if q.MaxScan < 1 {
		errs = append(errs, errors.New("query.max_scan must be positive"))
	}
	if c.API.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("api.rate_limit_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host required")
	}
	return nil
}

// LevelName normalizes the configured level.
func (c LogConfig) LevelName() string {
	return strings.ToLower(strings.TrimSpace(c.Level))
}
