package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("kafka:\n  brokers: [\"localhost:9092\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 0.04, c.Quant.RiskFreeRate)
	assert.Equal(t, 252, c.Quant.TradingDays)
	assert.Equal(t, "SPY", c.Quant.Benchmark)
	assert.Equal(t, 504, c.Quant.LookbackDays)
	assert.Equal(t, 14, c.Quant.RSIPeriod)
	assert.Equal(t, 20, c.Quant.BollingerWindow)
	assert.Equal(t, 2.0, c.Quant.BollingerK)
	assert.Equal(t, 10000.0, c.Backtest.InitialCapital)
	assert.Equal(t, 1260, c.Backtest.LookbackDays)
	assert.Equal(t, "ares.signals", c.Kafka.Topics.Signals)
	assert.Equal(t, 30*time.Second, c.Server.WriteTimeout)
	assert.Equal(t, 1e-9, c.Portfolio.Tolerance)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
}

func TestParseOverridesDefaults(t *testing.T) {
	yml := `
environment: production
kafka:
  enabled: false
quant:
  benchmark: QQQ
  risk_free_rate: 0.05
portfolio:
  scenarios:
    - name: cautious
      objective: min_volatility
    - name: bold
      objective: target_risk
      target_volatility: 0.3
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "QQQ", c.Quant.Benchmark)
	assert.Equal(t, 0.05, c.Quant.RiskFreeRate)
	require.Len(t, c.Portfolio.Scenarios, 2)
	assert.Equal(t, 0.3, c.Portfolio.Scenarios[1].TargetVolatility)
}

func TestValidateRejectsBadScenario(t *testing.T) {
	_, err := Parse([]byte("kafka:\n  enabled: false\nportfolio:\n  scenarios:\n    - objective: max_alpha\n"))
	assert.ErrorContains(t, err, "unknown objective")

	_, err = Parse([]byte("kafka:\n  enabled: false\nportfolio:\n  scenarios:\n    - objective: target_risk\n"))
	assert.ErrorContains(t, err, "target_volatility")
}

func TestValidateRequiresBrokers(t *testing.T) {
	_, err := Parse([]byte("environment: test\n"))
	assert.ErrorContains(t, err, "kafka.brokers")
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte("kafka:\n  enabled: false\n"))
	require.NoError(t, err)
	env := map[string]string{
		"ARES_ENV":        "staging",
		"CLICKHOUSE_HOST": "ch.internal",
		"REDIS_ADDR":      "cache.internal:6380",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"ARES_BENCHMARK":  "qqq",
	}
	c.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "ch.internal", c.ClickHouse.Host)
	assert.Equal(t, "cache.internal", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "QQQ", c.Quant.Benchmark)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  enabled: false\nserver:\n  port: 9090\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
