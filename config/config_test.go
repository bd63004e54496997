package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, defaultCoin, cfg.Coin)
	require.Equal(t, defaultLogLevel, cfg.DebugLevel)

	validated, err := validate(&cfg)
	require.NoError(t, err)
	require.NotEmpty(t, validated.DataDir)
}

func TestValidateRejectsUnknownCoin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coin = "DOGE"

	_, err := validate(&cfg)
	require.Error(t, err)
}

func TestValidateCreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "nested", "data")

	validated, err := validate(&cfg)
	require.NoError(t, err)
	require.DirExists(t, validated.DataDir)
}

func TestCleanAndExpandPathExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	got := cleanAndExpandPath("~/wallets")
	require.Equal(t, filepath.Clean("/home/tester/wallets"), got)
}
