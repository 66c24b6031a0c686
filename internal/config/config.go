// Package config loads amlgate configuration from YAML with environment
// overrides.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/amlgate/internal/alert"
	"github.com/ppiankov/amlgate/internal/ratelimit"
)

// TokenConfig describes the token and its bootstrap mint.
type TokenConfig struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Icon     string `yaml:"icon"`
	Decimals uint8  `yaml:"decimals"`
	Owner    string `yaml:"owner"        env:"AMLGATE_OWNER"`
	// TotalSupply is minted to Owner on first start, in base units.
	TotalSupply string `yaml:"total_supply" env:"AMLGATE_TOTAL_SUPPLY"`
}

// RegistryConfig seeds the risk registry on first start.
type RegistryConfig struct {
	Oracle         string         `yaml:"oracle"          env:"AMLGATE_ORACLE"`
	CategoryPolicy string         `yaml:"category_policy" env:"AMLGATE_CATEGORY_POLICY"`
	Thresholds     map[string]int `yaml:"thresholds"`
}

// OracleConfig binds an oracle address to a client. Exactly one of GRPC
// or Table is set.
type OracleConfig struct {
	GRPC  string `yaml:"grpc,omitempty"`
	Table string `yaml:"table,omitempty"`
}

// GateConfig bounds the external calls of a flow.
type GateConfig struct {
	OracleTimeout time.Duration `yaml:"oracle_timeout" env:"AMLGATE_ORACLE_TIMEOUT"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" env:"AMLGATE_NOTIFY_TIMEOUT"`
}

// StorageConfig selects the persistence backend. Empty path keeps state
// in memory.
type StorageConfig struct {
	Path string `yaml:"path" env:"AMLGATE_STORAGE_PATH"`
}

// ReceiverConfig is a webhook that receives transfer notifications.
type ReceiverConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// AuditConfig locates the hash-chained audit log. Empty disables it.
type AuditConfig struct {
	Path string `yaml:"path" env:"AMLGATE_AUDIT_PATH"`
}

// GraphConfig enables the settled-transfer graph. Empty URI disables it.
type GraphConfig struct {
	URI      string `yaml:"uri"      env:"AMLGATE_NEO4J_URI"`
	Username string `yaml:"username" env:"AMLGATE_NEO4J_USERNAME"`
	Password string `yaml:"password" env:"AMLGATE_NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"AMLGATE_NEO4J_DATABASE"`
}

// ServerConfig holds listener ports and per-caller transfer limits.
type ServerConfig struct {
	Port       int              `yaml:"port"        env:"AMLGATE_PORT"`
	OraclePort int              `yaml:"oracle_port" env:"AMLGATE_ORACLE_PORT"`
	RateLimits ratelimit.Config `yaml:"rate_limits,omitempty"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"AMLGATE_LOG_LEVEL"`
	Format string `yaml:"format" env:"AMLGATE_LOG_FORMAT"` // "text" or "json"
}

// Config is the full amlgate configuration.
type Config struct {
	Token     TokenConfig               `yaml:"token"`
	Registry  RegistryConfig            `yaml:"registry"`
	Oracles   map[string]OracleConfig   `yaml:"oracles"`
	Gate      GateConfig                `yaml:"gate"`
	Storage   StorageConfig             `yaml:"storage"`
	Receivers map[string]ReceiverConfig `yaml:"receivers"`
	Alerts    []alert.AlertConfig       `yaml:"alerts"`
	Audit     AuditConfig               `yaml:"audit"`
	Graph     GraphConfig               `yaml:"graph"`
	Server    ServerConfig              `yaml:"server"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Token: TokenConfig{
			Name:        "AML Gated Token",
			Symbol:      "AMLG",
			Decimals:    24,
			Owner:       "owner.near",
			TotalSupply: "1000000000000000000000000000",
		},
		Registry: RegistryConfig{
			Oracle:         "oracle.near",
			CategoryPolicy: "strict",
		},
		Gate: GateConfig{
			OracleTimeout: 5 * time.Second,
			NotifyTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Port:       9090,
			OraclePort: 9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.amlgate/config.yaml, or "" without a home dir.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".amlgate", "config.yaml")
}

// LoadConfig loads configuration from a YAML file, then applies AMLGATE_*
// environment overrides. Empty path falls back to DefaultPath. A missing
// file yields defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash is LoadConfig that also returns the SHA-256 of the raw
// file bytes. Without a file the hash is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
		data = raw
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, "", fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Token.Owner == "" {
		return fmt.Errorf("config: token.owner is required")
	}
	if c.Gate.OracleTimeout <= 0 {
		return fmt.Errorf("config: gate.oracle_timeout must be positive")
	}
	if c.Gate.NotifyTimeout <= 0 {
		return fmt.Errorf("config: gate.notify_timeout must be positive")
	}
	for _, addr := range sortedKeys(c.Oracles) {
		o := c.Oracles[addr]
		if (o.GRPC == "") == (o.Table == "") {
			return fmt.Errorf("config: oracle %q needs exactly one of grpc or table", addr)
		}
	}
	for _, acct := range sortedKeys(c.Receivers) {
		if c.Receivers[acct].URL == "" {
			return fmt.Errorf("config: receiver %q has no url", acct)
		}
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
