package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	RoutingAPI RoutingAPIConfig `koanf:"routing_api"`
	LeadSource LeadSourceConfig `koanf:"lead_source"`
	Reconcile  ReconcileConfig  `koanf:"reconcile"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LegTTL   time.Duration `koanf:"leg_ttl"`
}

// RoutingAPIConfig holds routing-platform credentials. A missing token or
// account id aborts the run before any item is processed.
type RoutingAPIConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	AccountID    string        `koanf:"account_id" validate:"required"`
	APIToken     string        `koanf:"api_token" validate:"required"`
	Timeout      time.Duration `koanf:"timeout"`
	PageSize     int           `koanf:"page_size"`
	RateLimitRPS int           `koanf:"rate_limit_rps"`
}

type LeadSourceConfig struct {
	FeedURL string        `koanf:"feed_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key" validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
}

type ReconcileConfig struct {
	WindowMinutes   int           `koanf:"window_minutes"`
	PayoutTolerance string        `koanf:"payout_tolerance"`
	CorrectionDelay time.Duration `koanf:"correction_delay"`
	LookbackDays    int           `koanf:"lookback_days"`
	DryRun          bool          `koanf:"dry_run"`
}

// Load builds configuration from defaults, an optional YAML file, and
// RECON_-prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			LegTTL: time.Hour,
		},
		RoutingAPI: RoutingAPIConfig{
			Timeout:      30 * time.Second,
			PageSize:     100,
			RateLimitRPS: 5,
		},
		LeadSource: LeadSourceConfig{
			Timeout: 30 * time.Second,
		},
		Reconcile: ReconcileConfig{
			WindowMinutes:   120,
			PayoutTolerance: "0.01",
			CorrectionDelay: 500 * time.Millisecond,
			LookbackDays:    7,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
	}
	// Config file is optional; env vars can carry everything.
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Double underscore separates nesting levels so key names keep their
	// single underscores: RECON_ROUTING_API__BASE_URL -> routing_api.base_url.
	if err := k.Load(env.Provider("RECON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "RECON_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
