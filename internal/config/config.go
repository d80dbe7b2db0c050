// Package config provides centralized configuration for the account and
// settlement daemon. All tunable parameters (shard assignment, credential
// bounds, wallet retry limits) MUST be defined here; no hardcoded values
// should exist elsewhere in the codebase.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credential and wallet bounds, as enumerated in the account core spec.
const (
	MinUsernameLength      = 3
	MaxUsernameLength      = 30
	MinPasswordLength      = 7
	MaxPasswordLength      = 50
	SaltSize               = 32 // bytes
	MaxWalletCreateAttempts = 10
)

// Config holds all configuration for the account daemon.
type Config struct {
	// Storage holds the SQLite data directory.
	Storage StorageConfig `yaml:"storage"`

	// Settlement holds this worker's shard assignment.
	Settlement SettlementConfig `yaml:"settlement"`

	// RPC holds the JSON-RPC/WebSocket listen address.
	RPC RPCConfig `yaml:"rpc"`

	// Wallet holds deposit wallet generation settings.
	Wallet WalletConfig `yaml:"wallet"`

	// Logging holds logger settings.
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory holding the SQLite database file.
	DataDir string `yaml:"data_dir"`
}

// SettlementConfig holds this worker's shard assignment.
//
// ShardIndex is a pointer because "unset" (nil) must disable settlement
// entirely, per the spec — zero is a valid shard index.
type SettlementConfig struct {
	ShardIndex *int `yaml:"shard_index,omitempty"`
	ShardCount int  `yaml:"shard_count"`

	// TickInterval controls how often a worker runs a settlement tick.
	TickInterval string `yaml:"tick_interval"`
}

// Enabled reports whether settlement is configured to run.
func (s SettlementConfig) Enabled() bool {
	return s.ShardIndex != nil && s.ShardCount >= 1
}

// RPCConfig holds the JSON-RPC server's listen address.
type RPCConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// WalletConfig controls deposit wallet generation.
type WalletConfig struct {
	// Network selects the Bitcoin-style chain params: "mainnet" or "testnet".
	Network string `yaml:"network"`

	// ServerKeyEnv names the environment variable holding the passphrase
	// used to encrypt generated mnemonics and private keys at rest. It is
	// never itself stored in the config file.
	ServerKeyEnv string `yaml:"server_key_env"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns sane defaults for a fresh data directory.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{DataDir: "~/.accountcore"},
		Settlement: SettlementConfig{
			ShardIndex: nil,
			ShardCount: 1,
			TickInterval: "10s",
		},
		RPC:     RPCConfig{ListenAddr: "127.0.0.1:8090"},
		Wallet:  WalletConfig{Network: "mainnet", ServerKeyEnv: "ACCOUNTCORE_SERVER_KEY"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads the configuration from <dataDir>/config.yaml, creating it
// with defaults if it does not yet exist.
func LoadConfig(dataDir string) (*Config, error) {
	dataDir = expandPath(dataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir
		if writeErr := saveConfig(path, cfg); writeErr != nil {
			return nil, fmt.Errorf("failed to write default config: %w", writeErr)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, nil
}

func saveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
