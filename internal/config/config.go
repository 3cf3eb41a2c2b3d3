package config

import (
	"log"
	"strings"

	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Identity IdentityConfig `mapstructure:"identity"`
	Venue    VenueConfig    `mapstructure:"venue"`
	Session  SessionConfig  `mapstructure:"session"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Rate     RateConfig     `mapstructure:"rate"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Market   MarketConfig   `mapstructure:"market"`
	LogLevel string         `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

// IdentityConfig holds the OAuth2 registration for the redirect-based
// identity provider (Azure AD style authority/tenant endpoints).
type IdentityConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	AuthorityURL string `mapstructure:"authority_url"` // default derived from tenant_id
	ResourceURL  string `mapstructure:"resource_url"`
}

func (c IdentityConfig) IsConfigured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// VenueCreds is one (key, secret, passphrase) signing triple.
type VenueCreds struct {
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	APIPassphrase string `mapstructure:"api_passphrase"`
}

func (c VenueCreds) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.APIPassphrase != ""
}

type VenueConfig struct {
	Production     VenueCreds `mapstructure:"production"`
	Sandbox        VenueCreds `mapstructure:"sandbox"`
	SandboxMode    bool       `mapstructure:"sandbox_mode"`
	BaseURL        string     `mapstructure:"base_url"`
	SandboxBaseURL string     `mapstructure:"sandbox_base_url"`
	WSURL          string     `mapstructure:"ws_url"`
}

// IsConfigured checks the triple matching the active mode only.
func (c VenueConfig) IsConfigured() bool {
	if c.SandboxMode {
		return c.Sandbox.Complete()
	}
	return c.Production.Complete()
}

type SessionConfig struct {
	MaxAgeHours         int `mapstructure:"max_age_hours"`
	SweepIntervalMins   int `mapstructure:"sweep_interval_minutes"`
	ExpiryLookaheadSecs int `mapstructure:"expiry_lookahead_seconds"`
}

type RiskConfig struct {
	MaxOrderValue  float64 `mapstructure:"max_order_value"`  // quote-currency notional per order
	MaxDailyValue  float64 `mapstructure:"max_daily_value"`  // quote-currency notional per day
	MaxDailyOrders int     `mapstructure:"max_daily_orders"` // orders per day
	MaxDeviation   float64 `mapstructure:"max_deviation"`    // limit price vs last trade (0.05 = 5%)
}

type RateConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type MarketConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Products []string `mapstructure:"products"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. TRADEGATE_VENUE_SANDBOX_MODE
	viper.SetEnvPrefix("tradegate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("identity.resource_url", "https://graph.microsoft.com/v1.0")
	viper.SetDefault("venue.base_url", "https://api.coinbase.com")
	viper.SetDefault("venue.sandbox_base_url", "https://api-sandbox.coinbase.com")
	viper.SetDefault("venue.ws_url", "wss://ws-feed.exchange.coinbase.com")
	viper.SetDefault("session.max_age_hours", 24)
	viper.SetDefault("session.sweep_interval_minutes", 60)
	viper.SetDefault("session.expiry_lookahead_seconds", 300)
	viper.SetDefault("risk.max_deviation", 0.05)
	viper.SetDefault("rate.qps", 10)
	viper.SetDefault("rate.burst", 20)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects contradictory credential setups at startup rather than
// letting a half-configured mode fail on the first signed request.
func (c *Config) Validate() error {
	if c.Venue.SandboxMode && !c.Venue.Sandbox.Complete() && anyVenueCreds(c.Venue.Sandbox) {
		return apperrors.New(apperrors.ErrConfiguration, "venue sandbox mode enabled but sandbox credentials are incomplete", nil)
	}
	if !c.Venue.SandboxMode && !c.Venue.Production.Complete() && anyVenueCreds(c.Venue.Production) {
		return apperrors.New(apperrors.ErrConfiguration, "venue production credentials are incomplete", nil)
	}
	return nil
}

func anyVenueCreds(c VenueCreds) bool {
	return c.APIKey != "" || c.APISecret != "" || c.APIPassphrase != ""
}
