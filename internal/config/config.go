// Package config handles configuration loading for stackswap.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"   yaml:"backend"`
	Network   NetworkConfig   `mapstructure:"network"   yaml:"network"`
	Asset     AssetConfig     `mapstructure:"asset"     yaml:"asset"`
	Rates     RatesConfig     `mapstructure:"rates"     yaml:"rates"`
	Bank      BankConfig      `mapstructure:"bank"      yaml:"bank"`
	Liquidity LiquidityConfig `mapstructure:"liquidity" yaml:"liquidity"`
	Buy       BuyConfig       `mapstructure:"buy"       yaml:"buy"`
	Session   SessionConfig   `mapstructure:"session"   yaml:"session"`
	Events    EventsConfig    `mapstructure:"events"    yaml:"events"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// BackendConfig holds the conversion backend connection settings.
type BackendConfig struct {
	URL       string        `mapstructure:"url"        yaml:"url"`
	APIKey    string        `mapstructure:"api_key"    yaml:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst"      yaml:"burst"`
}

// NetworkConfig selects the chain and its explorer.
type NetworkConfig struct {
	Name        string `mapstructure:"name"         yaml:"name"` // "mainnet" or "testnet"
	ExplorerURL string `mapstructure:"explorer_url" yaml:"explorer_url"`
}

// AssetConfig describes the convertible asset and its display precision.
type AssetConfig struct {
	Symbol        string   `mapstructure:"symbol"         yaml:"symbol"`
	MicroUnits    int64    `mapstructure:"micro_units"    yaml:"micro_units"` // atomic units per asset unit
	AssetPlaces   int32    `mapstructure:"asset_places"   yaml:"asset_places"`
	FiatPlaces    int32    `mapstructure:"fiat_places"    yaml:"fiat_places"`
	DefaultAmount string   `mapstructure:"default_amount" yaml:"default_amount"`
	QuickAmounts  []string `mapstructure:"quick_amounts"  yaml:"quick_amounts"`
}

// RatesConfig holds rate cache polling settings.
type RatesConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// BankConfig holds bank list and verification settings.
type BankConfig struct {
	VerifyDebounce time.Duration `mapstructure:"verify_debounce" yaml:"verify_debounce"`
	BanksTTL       time.Duration `mapstructure:"banks_ttl"       yaml:"banks_ttl"`
}

// LiquidityConfig holds the liquidity gate policy.
type LiquidityConfig struct {
	// FailOpen lets the flow proceed when the liquidity service cannot be
	// reached. Product policy; see DESIGN.md.
	FailOpen bool `mapstructure:"fail_open" yaml:"fail_open"`
}

// BuyConfig holds onramp availability settings.
type BuyConfig struct {
	LaunchAt time.Time `mapstructure:"launch_at" yaml:"launch_at"`
}

// SessionConfig selects where wallet sessions are persisted.
type SessionConfig struct {
	Store         string        `mapstructure:"store"          yaml:"store"` // "memory" or "redis"
	RedisAddr     string        `mapstructure:"redis_addr"     yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       yaml:"redis_db"`
	Key           string        `mapstructure:"key"            yaml:"key"`
	TTL           time.Duration `mapstructure:"ttl"            yaml:"ttl"`
}

// EventsConfig holds flow event publishing settings.
type EventsConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"` // empty disables Kafka
	Topic   string   `mapstructure:"topic"   yaml:"topic"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host          string        `mapstructure:"host"           yaml:"host"`
	Port          int           `mapstructure:"port"           yaml:"port"`
	CORSOrigins   []string      `mapstructure:"cors_origins"   yaml:"cors_origins"`
	PromptTimeout time.Duration `mapstructure:"prompt_timeout" yaml:"prompt_timeout"` // wallet connect round trip
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stackswap/config.yaml (home directory)
//  3. /etc/stackswap/config.yaml (system)
//
// Environment variables override config file values.
// Format: STACKSWAP_<SECTION>_<KEY>, e.g., STACKSWAP_BACKEND_URL
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stackswap"))
	v.AddConfigPath("/etc/stackswap")

	v.SetEnvPrefix("STACKSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STACKSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, cfg.Validate()
}

// Validate rejects settings the controller cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	switch c.Network.Name {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("network.name must be mainnet or testnet, got %q", c.Network.Name)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}
	if c.Asset.MicroUnits <= 0 {
		return fmt.Errorf("asset.micro_units must be positive")
	}
	if c.Rates.PollInterval <= 0 {
		return fmt.Errorf("rates.poll_interval must be positive")
	}
	return nil
}

// setDefaults sets defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Backend
	v.SetDefault("backend.url", "https://stackswap-backend-d84c5a71d927.herokuapp.com")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.burst", 10)

	// Network
	v.SetDefault("network.name", "mainnet")
	v.SetDefault("network.explorer_url", "https://explorer.hiro.so")

	// Asset
	v.SetDefault("asset.symbol", "STX")
	v.SetDefault("asset.micro_units", 1_000_000)
	v.SetDefault("asset.asset_places", 4)
	v.SetDefault("asset.fiat_places", 2)
	v.SetDefault("asset.default_amount", "100")
	v.SetDefault("asset.quick_amounts", []string{"10", "50", "100", "500"})

	// Rates
	v.SetDefault("rates.poll_interval", 30*time.Second)

	// Bank
	v.SetDefault("bank.verify_debounce", 300*time.Millisecond)
	v.SetDefault("bank.banks_ttl", time.Hour)

	// Liquidity
	v.SetDefault("liquidity.fail_open", true)

	// Buy
	v.SetDefault("buy.launch_at", time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC))

	// Session
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.redis_addr", "127.0.0.1:6379")
	v.SetDefault("session.key", "stackswap:wallet")
	v.SetDefault("session.ttl", 30*24*time.Hour)

	// Events
	v.SetDefault("events.topic", "stackswap.flow")

	// API
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.prompt_timeout", 2*time.Minute)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("STACKSWAP_BACKEND_API_KEY"); key != "" {
		cfg.Backend.APIKey = key
	}
	if pw := os.Getenv("STACKSWAP_SESSION_REDIS_PASSWORD"); pw != "" {
		cfg.Session.RedisPassword = pw
	}
}

// decodeHook lets durations and RFC 3339 timestamps be given as strings in
// files and environment variables.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
