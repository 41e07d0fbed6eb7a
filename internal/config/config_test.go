package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIConfigFromEnv(t *testing.T) {
	t.Setenv("CHAINMARKET_DATABASE_HOST", "localhost")
	t.Setenv("CHAINMARKET_DATABASE_USER", "market")
	t.Setenv("CHAINMARKET_DATABASE_PASSWORD", "secret")
	t.Setenv("CHAINMARKET_DATABASE_DBNAME", "chainmarket")
	t.Setenv("CHAINMARKET_ENGINE_ADMIN", "SP000000000000000000002Q6VF78")

	cfg, err := LoadAPIConfig("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "SP000000000000000000002Q6VF78", cfg.Engine.Admin)

	// Defaults
	assert.Equal(t, uint64(10000), cfg.Engine.ActionFee)
	assert.Equal(t, uint16(250), cfg.Engine.MarketFeeBps)
	assert.Equal(t, uint64(12), cfg.Engine.AntiSnipeWindow)
	assert.Equal(t, uint64(72), cfg.Engine.AntiSnipeExtension)
	assert.Equal(t, "MARKET_EVENTS", cfg.NATS.StreamName)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 4, cfg.Sweeper.WorkerPoolSize)
}

func TestLoadAPIConfigRequiresAdmin(t *testing.T) {
	t.Setenv("CHAINMARKET_ENGINE_ADMIN", "")

	_, err := LoadAPIConfig("", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.admin")
}

func TestLoadAPIConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
debug: true
database:
  host: db.internal
  port: 5433
  user: market
  password: secret
  dbname: chainmarket
engine:
  admin: SP2ADMIN
  action_fee: 5000
  market_fee_bps: 300
sweeper:
  interval: 30s
  enabled: false
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	cfg, err := LoadAPIConfig(configFile, dir)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "SP2ADMIN", cfg.Engine.Admin)
	assert.Equal(t, uint64(5000), cfg.Engine.ActionFee)
	assert.Equal(t, uint16(300), cfg.Engine.MarketFeeBps)
	assert.False(t, cfg.Sweeper.Enabled)
}

func TestLoadReplayConfig(t *testing.T) {
	t.Setenv("CHAINMARKET_DATABASE_HOST", "localhost")
	t.Setenv("CHAINMARKET_ENGINE_ADMIN", "SP2ADMIN")

	cfg, err := LoadReplayConfig("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "SP2ADMIN", cfg.Engine.Admin)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "market",
		Password: "secret",
		DBName:   "chainmarket",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=market password=secret dbname=chainmarket sslmode=disable",
		c.DSN())
}
