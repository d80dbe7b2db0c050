package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Settlement.Enabled(), "expected settlement disabled by default (no shard index)")
	require.Equal(t, "127.0.0.1:8090", cfg.RPC.ListenAddr)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestSettlementEnabled(t *testing.T) {
	idx := 0
	cfg := SettlementConfig{ShardIndex: &idx, ShardCount: 4}
	require.True(t, cfg.Enabled(), "expected settlement enabled with shard index 0 and count 4")

	disabled := SettlementConfig{ShardIndex: nil, ShardCount: 4}
	require.False(t, disabled.Enabled(), "expected settlement disabled when shard index is unset")
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	path := filepath.Join(tmpDir, "config.yaml")
	_, err = os.Stat(path)
	require.NoError(t, err, "config.yaml was not created")
	require.Equal(t, tmpDir, cfg.Storage.DataDir)
}

func TestLoadConfigRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	idx := 1
	overridden := DefaultConfig()
	overridden.Settlement = SettlementConfig{ShardIndex: &idx, ShardCount: 4}
	overridden.Storage.DataDir = tmpDir
	require.NoError(t, saveConfig(filepath.Join(tmpDir, "config.yaml"), overridden))

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)
	require.True(t, cfg.Settlement.Enabled())
	require.Equal(t, 4, cfg.Settlement.ShardCount)
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	require.Equal(t, filepath.Join(home, ".test"), expandPath("~/.test"))
}
