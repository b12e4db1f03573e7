package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Exchange.Paper)
	require.Equal(t, "sqlite", cfg.Ledger.Driver)
	require.Equal(t, 0.15, cfg.Engine.StopLossPct)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("GRIDBOT_EXCHANGE_API_KEY", "env-key")
	t.Setenv("GRIDBOT_LEDGER_DSN", "env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Exchange.APIKey)
	require.Equal(t, "env.db", cfg.Ledger.DSN)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "exchange:\n  paper: false\n  api_key: file-key\n  secret_key: file-secret\nledger:\n  driver: postgres\n  dsn: postgres://localhost/gridbot\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Exchange.Paper)
	require.Equal(t, "file-key", cfg.Exchange.APIKey)
	require.Equal(t, "postgres", cfg.Ledger.Driver)
}

func TestValidate_RequiresCredentialsUnlessPaper(t *testing.T) {
	cfg := &Config{Exchange: ExchangeConfig{Paper: false}, Ledger: LedgerConfig{Driver: "sqlite", DSN: "x.db"}}
	require.Error(t, cfg.Validate())

	cfg.Exchange.APIKey, cfg.Exchange.SecretKey = "k", "s"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := &Config{Exchange: ExchangeConfig{Paper: true}, Ledger: LedgerConfig{Driver: "mongo", DSN: "x"}}
	require.Error(t, cfg.Validate())
}

func TestValidate_PaperModeSkipsCredentialCheck(t *testing.T) {
	cfg := &Config{Exchange: ExchangeConfig{Paper: true}, Ledger: LedgerConfig{Driver: "sqlite", DSN: "x.db"}}
	require.NoError(t, cfg.Validate())
}
