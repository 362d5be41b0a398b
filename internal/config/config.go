package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/logging"
	"xrpl-amm-lab/internal/xrpl"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	XRPL       XRPLConfig       `mapstructure:"xrpl"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	Accounts   []AccountConfig  `mapstructure:"accounts"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Sampler    SamplerConfig    `mapstructure:"sampler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// XRPLConfig covers ledger connectivity.
type XRPLConfig struct {
	WebsocketURL   string        `mapstructure:"websocket_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClickhouseConfig encapsulates the analytics store. Disabled means
// pool timeseries points are simply not exported.
type ClickhouseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// AccountConfig is one monitored ledger account.
type AccountConfig struct {
	Address string `mapstructure:"address"`
	Role    string `mapstructure:"role"`
	Name    string `mapstructure:"name"`
}

// BackfillConfig governs historical catch-up.
type BackfillConfig struct {
	ChunkSize       int64         `mapstructure:"chunk_size"`
	ChunkDelay      time.Duration `mapstructure:"chunk_delay"`
	MaxLookbackDays int64         `mapstructure:"max_lookback_days"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// RealtimeConfig governs the stream subscriber and its supervisor.
type RealtimeConfig struct {
	FlushEvery           int           `mapstructure:"flush_every"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	MaxReconnectBackoff  time.Duration `mapstructure:"max_reconnect_backoff"`
	StabilityWindow      time.Duration `mapstructure:"stability_window"`
}

// SamplerConfig governs periodic pool state sampling.
type SamplerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	SignificancePct float64       `mapstructure:"significance_pct"`
}

// MetricsConfig exposes the observability HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	OutputDir     string `mapstructure:"output_dir"`
	MaxDataPoints int    `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMMLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "xrpl-amm-lab")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("xrpl.websocket_url", "wss://xrplcluster.com")
	v.SetDefault("xrpl.request_timeout", "30s")
	v.SetDefault("xrpl.ping_interval", "30s")

	v.SetDefault("clickhouse.enabled", false)

	v.SetDefault("backfill.chunk_size", int64(1000))
	v.SetDefault("backfill.chunk_delay", "500ms")
	v.SetDefault("backfill.max_lookback_days", int64(1))
	v.SetDefault("backfill.sweep_interval", "1h")

	v.SetDefault("realtime.flush_every", 100)
	v.SetDefault("realtime.max_reconnect_attempts", 10)
	v.SetDefault("realtime.max_reconnect_backoff", "60s")
	v.SetDefault("realtime.stability_window", "5m")

	v.SetDefault("sampler.interval", "5m")
	v.SetDefault("sampler.significance_pct", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9091")

	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.XRPL.WebsocketURL == "" {
		return fmt.Errorf("xrpl.websocket_url must be set")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set")
	}
	if c.Clickhouse.Enabled && c.Clickhouse.DSN == "" {
		return fmt.Errorf("clickhouse.dsn must be set when clickhouse is enabled")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one monitored account must be configured")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		if !xrpl.IsValidClassicAddress(a.Address) {
			return fmt.Errorf("accounts[%d].address %q is not a valid classic address", i, a.Address)
		}
		if _, dup := seen[a.Address]; dup {
			return fmt.Errorf("accounts[%d].address %q is configured twice", i, a.Address)
		}
		seen[a.Address] = struct{}{}
		switch domain.AccountRole(a.Role) {
		case domain.RoleWallet, domain.RolePool:
		default:
			return fmt.Errorf("accounts[%d].role %q must be wallet or pool", i, a.Role)
		}
	}
	if c.Backfill.ChunkSize <= 0 {
		return fmt.Errorf("backfill.chunk_size must be greater than zero")
	}
	if c.Backfill.MaxLookbackDays <= 0 {
		return fmt.Errorf("backfill.max_lookback_days must be greater than zero")
	}
	if c.Realtime.FlushEvery <= 0 {
		return fmt.Errorf("realtime.flush_every must be greater than zero")
	}
	if c.Realtime.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("realtime.max_reconnect_attempts must be greater than zero")
	}
	if c.Sampler.SignificancePct < 0 {
		return fmt.Errorf("sampler.significance_pct cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// MonitoredAccounts converts the configured accounts to domain form.
func (c *Config) MonitoredAccounts() []domain.MonitoredAccount {
	accounts := make([]domain.MonitoredAccount, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, domain.MonitoredAccount{
			Address: a.Address,
			Role:    domain.AccountRole(a.Role),
			Name:    a.Name,
		})
	}
	return accounts
}

// PoolAccounts returns just the configured pool addresses.
func (c *Config) PoolAccounts() []string {
	var pools []string
	for _, a := range c.Accounts {
		if domain.AccountRole(a.Role) == domain.RolePool {
			pools = append(pools, a.Address)
		}
	}
	return pools
}
