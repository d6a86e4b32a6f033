package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 0.02, cfg.Portfolio.MaxPositionSize)
	assert.Equal(t, 0.06, cfg.Portfolio.MaxDailyRisk)
	assert.Equal(t, 10, cfg.Portfolio.MaxTotalPositions)
	assert.Equal(t, 2, cfg.Strategies.PerDay)
	assert.Len(t, cfg.Market.Tickers, 15)
}

func TestLoad_OverridesMergeOntoDefaults(t *testing.T) {
	path := writeConfig(t, `
portfolio:
  initial_capital: 50000
  max_total_positions: 4
  sectors:
    AAPL: Technology
market:
  tickers: [AAPL, MSFT]
  refresh_interval: 15s
simulation:
  loop_interval: 5s
kafka:
  enabled: true
  topic: sim.trades
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 4, cfg.Portfolio.MaxTotalPositions)
	assert.Equal(t, 0.02, cfg.Portfolio.StopLossPercentage, "unset keys keep defaults")
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Market.Tickers)
	assert.Equal(t, 15*time.Second, cfg.Market.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Simulation.LoopInterval)
	assert.Equal(t, "sim.trades", cfg.Kafka.Topic)

	sector, ok := cfg.Portfolio.Sectors.Sector("AAPL")
	assert.True(t, ok)
	assert.Equal(t, "Technology", sector)
	_, ok = cfg.Portfolio.Sectors.Sector("MSFT")
	assert.False(t, ok)
}

func TestLoad_EnvPath(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "portfolio: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero capital", func(c *Config) { c.Portfolio.InitialCapital = 0 }},
		{"position size above one", func(c *Config) { c.Portfolio.MaxPositionSize = 1.5 }},
		{"zero stop loss", func(c *Config) { c.Portfolio.StopLossPercentage = 0 }},
		{"negative commission", func(c *Config) { c.Portfolio.CommissionPerTrade = -1 }},
		{"no positions", func(c *Config) { c.Portfolio.MaxTotalPositions = 0 }},
		{"inverted rsi bands", func(c *Config) { c.Strategies.RSIOversold = 80 }},
		{"bad open clock", func(c *Config) { c.Market.Open = "9h30" }},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestStrategySettings_CarriesStopLoss(t *testing.T) {
	cfg := Default()
	cfg.Portfolio.StopLossPercentage = 0.03
	assert.Equal(t, 0.03, cfg.StrategySettings().StopLossPercentage)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	_, err = ParseClock("25:99")
	assert.Error(t, err)
}
