package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadConfigWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token.Symbol != "AMLG" || cfg.Gate.OracleTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	// sha256 of empty input
	if hash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("hash = %s", hash)
	}
}

func TestLoadConfigOverridesOnlySpecifiedFields(t *testing.T) {
	path := writeConfig(t, `
token:
  symbol: TEST
gate:
  oracle_timeout: 250ms
registry:
  thresholds:
    Gambling: 5
oracles:
  oracle.near:
    table: /tmp/oracle.yaml
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token.Symbol != "TEST" || cfg.Token.Name != "AML Gated Token" {
		t.Errorf("token = %+v", cfg.Token)
	}
	if cfg.Gate.OracleTimeout != 250*time.Millisecond || cfg.Gate.NotifyTimeout != 10*time.Second {
		t.Errorf("gate = %+v", cfg.Gate)
	}
	if cfg.Registry.Thresholds["Gambling"] != 5 {
		t.Errorf("thresholds = %v", cfg.Registry.Thresholds)
	}
	if cfg.Oracles["oracle.near"].Table != "/tmp/oracle.yaml" {
		t.Errorf("oracles = %v", cfg.Oracles)
	}
}

func TestLoadConfigRateLimits(t *testing.T) {
	path := writeConfig(t, `
server:
  rate_limits:
    "*":
      max_transfers: 60
      window: 1m
    bot.near:
      max_transfers: 5
      window: 10s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	limits := cfg.Server.RateLimits
	if l := limits["*"]; l == nil || l.MaxTransfers != 60 || l.Window != time.Minute {
		t.Errorf("wildcard limit = %+v", l)
	}
	if l := limits["bot.near"]; l == nil || l.MaxTransfers != 5 || l.Window != 10*time.Second {
		t.Errorf("bot limit = %+v", l)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "token: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigHashTracksContent(t *testing.T) {
	_, h1, err := LoadConfigWithHash(writeConfig(t, "token:\n  symbol: A\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadConfigWithHash(writeConfig(t, "token:\n  symbol: B\n"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 || !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("hashes %s / %s", h1, h2)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AMLGATE_OWNER", "boss.near")
	t.Setenv("AMLGATE_ORACLE_TIMEOUT", "2s")
	t.Setenv("AMLGATE_PORT", "7000")
	t.Setenv("AMLGATE_LOG_FORMAT", "json")

	cfg, err := LoadConfig(writeConfig(t, "token:\n  owner: file.near\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token.Owner != "boss.near" {
		t.Errorf("owner = %s, want env override", cfg.Token.Owner)
	}
	if cfg.Gate.OracleTimeout != 2*time.Second {
		t.Errorf("oracle_timeout = %v", cfg.Gate.OracleTimeout)
	}
	if cfg.Server.Port != 7000 || cfg.Logging.Format != "json" {
		t.Errorf("server/logging = %+v %+v", cfg.Server, cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no owner", func(c *Config) { c.Token.Owner = "" }},
		{"zero oracle timeout", func(c *Config) { c.Gate.OracleTimeout = 0 }},
		{"zero notify timeout", func(c *Config) { c.Gate.NotifyTimeout = -time.Second }},
		{"oracle with both", func(c *Config) { c.Oracles = map[string]OracleConfig{"o.near": {GRPC: "x:1", Table: "t"}} }},
		{"oracle with neither", func(c *Config) { c.Oracles = map[string]OracleConfig{"o.near": {}} }},
		{"receiver without url", func(c *Config) { c.Receivers = map[string]ReceiverConfig{"shop.near": {}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDefaultConfigYAMLParses(t *testing.T) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(DefaultConfigYAML()), cfg); err != nil {
		t.Fatalf("DefaultConfigYAML does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfigYAML invalid: %v", err)
	}
	if cfg.Registry.Thresholds["Mixer"] != 1 {
		t.Errorf("thresholds = %v", cfg.Registry.Thresholds)
	}

	var table map[string]any
	if err := yaml.Unmarshal([]byte(DefaultOracleTableYAML()), &table); err != nil {
		t.Fatalf("DefaultOracleTableYAML does not parse: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Token.Symbol = "RT"
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token.Symbol != "RT" {
		t.Errorf("symbol = %s", got.Token.Symbol)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("ExpandPath = %s", got)
	}
	if got := ExpandPath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("ExpandPath = %s", got)
	}
}
