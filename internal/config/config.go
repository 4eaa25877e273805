// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AppConfig struct {
	URL           string `yaml:"url" validate:"required,url"` // public SPA URL; its origin is the only CORS origin
	DashboardPath string `yaml:"dashboard_path"`
	ReturnPath    string `yaml:"return_path"` // provider back_url path
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables checkout locking and rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	Mode        string `yaml:"mode" validate:"oneof=jwt remote"`
	JWTSecret   string `yaml:"jwt_secret" validate:"required_if=Mode jwt"`
	Audience    string `yaml:"audience"`
	SupabaseURL string `yaml:"supabase_url" validate:"required_if=Mode remote"`
	AnonKey     string `yaml:"anon_key" validate:"required_if=Mode remote"`
}

type MercadoPagoConfig struct {
	AccessToken    string `yaml:"access_token"`
	BaseURL        string `yaml:"base_url"`
	WebhookBaseURL string `yaml:"webhook_base_url" validate:"required,url"` // public base URL of this service
	WebhookToken   string `yaml:"webhook_token" validate:"required"`
}

type PlanConfig struct {
	PriceCents int64  `yaml:"price_cents" validate:"gt=0"`
	Currency   string `yaml:"currency" validate:"len=3"`
	Reason     string `yaml:"reason"`
}

type PaymentConfig struct {
	Provider    string            `yaml:"provider" validate:"oneof=mercadopago noop"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	Pro         PlanConfig        `yaml:"pro"`
}

type CheckoutConfig struct {
	LockTTL    time.Duration `yaml:"lock_ttl"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type SchedulerConfig struct {
	PendingSweepInterval time.Duration `yaml:"pending_sweep_interval"` // negative disables the sweeper
	PendingStaleAfter    time.Duration `yaml:"pending_stale_after"`
	PoolStatsInterval    time.Duration `yaml:"pool_stats_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides (a .env
// file is honoured when present) and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments are fine
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks required settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Payment.Provider == "mercadopago" && c.Payment.MercadoPago.AccessToken == "" {
		return errors.New("invalid config: payment.mercadopago.access_token is required")
	}
	return nil
}

// AppOrigin returns scheme://host[:port] of App.URL; paths are ignored.
func (c *Config) AppOrigin() string {
	u, err := url.Parse(c.App.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(c.App.URL, "/")
	}
	return u.Scheme + "://" + u.Host
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 20 * time.Second
	}
	if cfg.App.DashboardPath == "" {
		cfg.App.DashboardPath = "/dashboard"
	}
	if cfg.App.ReturnPath == "" {
		cfg.App.ReturnPath = "/billing/mercadopago/return"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "jwt"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "authenticated"
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "mercadopago"
	}
	if cfg.Payment.MercadoPago.BaseURL == "" {
		cfg.Payment.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.Payment.Pro.PriceCents <= 0 {
		cfg.Payment.Pro.PriceCents = 3990
	}
	if cfg.Payment.Pro.Currency == "" {
		cfg.Payment.Pro.Currency = "BRL"
	}
	if cfg.Payment.Pro.Reason == "" {
		cfg.Payment.Pro.Reason = "ZapFollow Pro"
	}
	if cfg.Checkout.LockTTL <= 0 {
		cfg.Checkout.LockTTL = 30 * time.Second
	}
	if cfg.Checkout.RateLimit <= 0 {
		cfg.Checkout.RateLimit = 10
	}
	if cfg.Checkout.RateWindow <= 0 {
		cfg.Checkout.RateWindow = time.Minute
	}
	if cfg.Scheduler.PendingSweepInterval == 0 {
		cfg.Scheduler.PendingSweepInterval = 5 * time.Minute
	}
	if cfg.Scheduler.PendingStaleAfter <= 0 {
		cfg.Scheduler.PendingStaleAfter = 15 * time.Minute
	}
	if cfg.Scheduler.PoolStatsInterval <= 0 {
		cfg.Scheduler.PoolStatsInterval = 30 * time.Second
	}
}

// applyEnv lets the deployed secret names override the file.
func applyEnv(cfg *Config) error {
	setStr(&cfg.App.URL, "APP_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Payment.MercadoPago.AccessToken, "MERCADOPAGO_ACCESS_TOKEN", "MP_ACCESS_TOKEN")
	setStr(&cfg.Payment.MercadoPago.WebhookToken, "MP_WEBHOOK_TOKEN")
	setStr(&cfg.Payment.MercadoPago.WebhookBaseURL, "WEBHOOK_BASE_URL")
	setStr(&cfg.Auth.SupabaseURL, "SUPABASE_URL", "SB_URL")
	setStr(&cfg.Auth.AnonKey, "SB_ANON_KEY")
	setStr(&cfg.Auth.JWTSecret, "SB_JWT_SECRET")

	if v := env("PRO_PRICE"); v != "" {
		cents, err := parsePriceCents(v)
		if err != nil {
			return fmt.Errorf("PRO_PRICE: %w", err)
		}
		cfg.Payment.Pro.PriceCents = cents
	}
	if strings.EqualFold(env("DEBUG"), "true") {
		cfg.Log.Level = "debug"
	}
	return nil
}

// parsePriceCents turns a decimal price ("39.90") into minor units.
func parsePriceCents(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, errors.New("price must be positive")
	}
	return int64(math.Round(f * 100)), nil
}

func env(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func setStr(dst *string, names ...string) {
	if v := env(names...); v != "" {
		*dst = v
	}
}
