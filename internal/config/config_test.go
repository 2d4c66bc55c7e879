package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	// Unset any env vars that would interfere
	envVars := []string{
		"STACKSWAP_BACKEND_API_KEY", "STACKSWAP_SESSION_REDIS_PASSWORD",
		"STACKSWAP_BACKEND_URL", "STACKSWAP_NETWORK_NAME",
	}
	for _, e := range envVars {
		os.Unsetenv(e)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Backend defaults
	if cfg.Backend.URL == "" {
		t.Error("Backend.URL should have a default")
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Backend.Timeout: got %v, want 30s", cfg.Backend.Timeout)
	}
	if cfg.Backend.RateLimit != 5.0 {
		t.Errorf("Backend.RateLimit: got %f, want 5.0", cfg.Backend.RateLimit)
	}
	if cfg.Backend.Burst != 10 {
		t.Errorf("Backend.Burst: got %d, want 10", cfg.Backend.Burst)
	}

	// Network defaults
	if cfg.Network.Name != "mainnet" {
		t.Errorf("Network.Name: got %q, want %q", cfg.Network.Name, "mainnet")
	}
	if cfg.Network.ExplorerURL != "https://explorer.hiro.so" {
		t.Errorf("Network.ExplorerURL: got %q", cfg.Network.ExplorerURL)
	}

	// Asset defaults
	if cfg.Asset.Symbol != "STX" {
		t.Errorf("Asset.Symbol: got %q, want %q", cfg.Asset.Symbol, "STX")
	}
	if cfg.Asset.MicroUnits != 1_000_000 {
		t.Errorf("Asset.MicroUnits: got %d, want 1000000", cfg.Asset.MicroUnits)
	}
	if cfg.Asset.AssetPlaces != 4 || cfg.Asset.FiatPlaces != 2 {
		t.Errorf("Asset places: got %d/%d, want 4/2", cfg.Asset.AssetPlaces, cfg.Asset.FiatPlaces)
	}
	if cfg.Asset.DefaultAmount != "100" {
		t.Errorf("Asset.DefaultAmount: got %q, want %q", cfg.Asset.DefaultAmount, "100")
	}
	if len(cfg.Asset.QuickAmounts) != 4 {
		t.Errorf("Asset.QuickAmounts: got %v", cfg.Asset.QuickAmounts)
	}

	// Rates / bank / liquidity
	if cfg.Rates.PollInterval != 30*time.Second {
		t.Errorf("Rates.PollInterval: got %v, want 30s", cfg.Rates.PollInterval)
	}
	if cfg.Bank.VerifyDebounce != 300*time.Millisecond {
		t.Errorf("Bank.VerifyDebounce: got %v, want 300ms", cfg.Bank.VerifyDebounce)
	}
	if cfg.Bank.BanksTTL != time.Hour {
		t.Errorf("Bank.BanksTTL: got %v, want 1h", cfg.Bank.BanksTTL)
	}
	if !cfg.Liquidity.FailOpen {
		t.Error("Liquidity.FailOpen should be true by default")
	}

	// Buy defaults
	want := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	if !cfg.Buy.LaunchAt.Equal(want) {
		t.Errorf("Buy.LaunchAt: got %v, want %v", cfg.Buy.LaunchAt, want)
	}

	// Session defaults
	if cfg.Session.Store != "memory" {
		t.Errorf("Session.Store: got %q, want %q", cfg.Session.Store, "memory")
	}
	if cfg.Session.Key != "stackswap:wallet" {
		t.Errorf("Session.Key: got %q", cfg.Session.Key)
	}
	if cfg.Session.TTL != 30*24*time.Hour {
		t.Errorf("Session.TTL: got %v", cfg.Session.TTL)
	}

	// Events defaults
	if len(cfg.Events.Brokers) != 0 {
		t.Errorf("Events.Brokers: got %v, want empty", cfg.Events.Brokers)
	}
	if cfg.Events.Topic != "stackswap.flow" {
		t.Errorf("Events.Topic: got %q", cfg.Events.Topic)
	}

	// API defaults
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.API.PromptTimeout != 2*time.Minute {
		t.Errorf("API.PromptTimeout: got %v, want 2m", cfg.API.PromptTimeout)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	os.Unsetenv("STACKSWAP_BACKEND_API_KEY")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  url: "http://localhost:9000"
  api_key: "file-key-12345678"
  timeout: 5s
network:
  name: testnet
rates:
  poll_interval: 10s
buy:
  launch_at: "2027-01-01T00:00:00Z"
session:
  store: redis
  redis_addr: "redis:6379"
events:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if cfg.Backend.URL != "http://localhost:9000" {
		t.Errorf("Backend.URL: got %q", cfg.Backend.URL)
	}
	if cfg.Backend.APIKey != "file-key-12345678" {
		t.Errorf("Backend.APIKey: got %q", cfg.Backend.APIKey)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("Backend.Timeout: got %v, want 5s", cfg.Backend.Timeout)
	}
	if cfg.Network.Name != "testnet" {
		t.Errorf("Network.Name: got %q, want testnet", cfg.Network.Name)
	}
	if cfg.Rates.PollInterval != 10*time.Second {
		t.Errorf("Rates.PollInterval: got %v, want 10s", cfg.Rates.PollInterval)
	}
	if cfg.Buy.LaunchAt.Year() != 2027 {
		t.Errorf("Buy.LaunchAt: got %v", cfg.Buy.LaunchAt)
	}
	if cfg.Session.Store != "redis" || cfg.Session.RedisAddr != "redis:6379" {
		t.Errorf("Session: got %+v", cfg.Session)
	}
	if len(cfg.Events.Brokers) != 2 {
		t.Errorf("Events.Brokers: got %v", cfg.Events.Brokers)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	// Defaults still fill unspecified keys
	if cfg.Asset.Symbol != "STX" {
		t.Errorf("Asset.Symbol default: got %q", cfg.Asset.Symbol)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("network:\n  name: devnet\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected validation error for unknown network")
	}
}

// ── Env Override ──

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("STACKSWAP_BACKEND_API_KEY", "env-backend-key")
	t.Setenv("STACKSWAP_SESSION_REDIS_PASSWORD", "env-redis-pw")

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.Backend.APIKey != "env-backend-key" {
		t.Errorf("Backend.APIKey: got %q", cfg.Backend.APIKey)
	}
	if cfg.Session.RedisPassword != "env-redis-pw" {
		t.Errorf("Session.RedisPassword: got %q", cfg.Session.RedisPassword)
	}
}

func TestOverrideFromEnvKeepsFileValues(t *testing.T) {
	os.Unsetenv("STACKSWAP_BACKEND_API_KEY")
	os.Unsetenv("STACKSWAP_SESSION_REDIS_PASSWORD")

	cfg := &Config{}
	cfg.Backend.APIKey = "from-file"
	overrideFromEnv(cfg)

	if cfg.Backend.APIKey != "from-file" {
		t.Errorf("Backend.APIKey should be preserved, got %q", cfg.Backend.APIKey)
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: BackendConfig{URL: "http://x"},
			Network: NetworkConfig{Name: "mainnet"},
			Asset:   AssetConfig{MicroUnits: 1_000_000},
			Rates:   RatesConfig{PollInterval: time.Second},
			Session: SessionConfig{Store: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.Backend.URL = "" }, true},
		{"bad network", func(c *Config) { c.Network.Name = "devnet" }, true},
		{"bad store", func(c *Config) { c.Session.Store = "disk" }, true},
		{"zero micro units", func(c *Config) { c.Asset.MicroUnits = 0 }, true},
		{"zero poll", func(c *Config) { c.Rates.PollInterval = 0 }, true},
		{"testnet", func(c *Config) { c.Network.Name = "testnet" }, false},
	}
	for _, tt := range tests {
		c := valid()
		tt.mutate(c)
		err := c.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

// ── maskSecret ──

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"short", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"sk-abcdefghijklmnop", "sk-...nop"},
	}
	for _, tt := range tests {
		got := maskSecret(tt.input)
		if got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ── checkSecret ──

func TestCheckSecretNotSet(t *testing.T) {
	s := checkSecret("Test", "", "STACKSWAP_TEST_UNSET_SECRET")
	if s.IsSet {
		t.Error("expected IsSet=false")
	}
	if s.Source != SourceNone {
		t.Errorf("Source: got %q, want %q", s.Source, SourceNone)
	}
	if s.Masked != "" {
		t.Errorf("Masked should be empty, got %q", s.Masked)
	}
}

func TestCheckSecretFromEnv(t *testing.T) {
	t.Setenv("STACKSWAP_TEST_SECRET", "env-value-1234567890")
	s := checkSecret("Test", "env-value-1234567890", "STACKSWAP_TEST_SECRET")
	if !s.IsSet {
		t.Error("expected IsSet=true")
	}
	if s.Source != SourceEnv {
		t.Errorf("Source: got %q, want %q", s.Source, SourceEnv)
	}
	if s.Masked != "env...890" {
		t.Errorf("Masked: got %q", s.Masked)
	}
}

func TestCheckSecretFromConfig(t *testing.T) {
	os.Unsetenv("STACKSWAP_TEST_SECRET_CFG")
	s := checkSecret("Test", "config-value-1234567890", "STACKSWAP_TEST_SECRET_CFG")
	if s.Source != SourceConfig {
		t.Errorf("Source: got %q, want %q", s.Source, SourceConfig)
	}
}

func TestCheckSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Backend.APIKey = "backend-key-123456789"
	statuses := CheckSecrets(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "Backend API Key" || !statuses[0].IsSet {
		t.Errorf("unexpected backend status: %+v", statuses[0])
	}
	if statuses[1].IsSet {
		t.Errorf("redis password should not be set: %+v", statuses[1])
	}
}

// ── homeDir ──

func TestHomeDir(t *testing.T) {
	if homeDir() == "" {
		t.Error("homeDir() returned empty string")
	}
}
