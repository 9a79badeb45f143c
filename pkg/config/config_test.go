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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: development\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, 300*time.Second, c.Cache.TTL)
	assert.Equal(t, 60*time.Second, c.RateLimit.Window)
	assert.Equal(t, 30, c.RateLimit.MaxCalls)
	assert.Equal(t, 2*time.Minute, c.Workflow.ApprovalTimeout)
	assert.Equal(t, "marketgate.approvals", c.Workflow.Approvals.Topic)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, "/metrics", c.Metrics.Path)
}

func TestLoadParsesPolicy(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
compliance:
  blocklist: [RESTRICTED, SANCTION]
  watchlist:
    TSLA:
      alert: High regulatory scrutiny
      concern: Offshore entities
      risk_level: HIGH
  ownership_patterns:
    SPAC: opaque ownership
rate_limit:
  window: 30s
  max_calls: 5
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"RESTRICTED", "SANCTION"}, c.Compliance.Blocklist)
	require.Contains(t, c.Compliance.Watchlist, "TSLA")
	assert.Equal(t, "HIGH", c.Compliance.Watchlist["TSLA"].RiskLevel)
	assert.Equal(t, "opaque ownership", c.Compliance.OwnershipPatterns["SPAC"])
	assert.Equal(t, 30*time.Second, c.RateLimit.Window)
	assert.Equal(t, 5, c.RateLimit.MaxCalls)
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: sandbox\n"))
	assert.Error(t, err)
}

func TestLoadRejectsBadWatchlistRisk(t *testing.T) {
	_, err := Load(writeConfig(t, `
compliance:
  watchlist:
    GME:
      alert: a
      concern: c
      risk_level: EXTREME
`))
	assert.Error(t, err)
}

func TestValidateCrossFieldRules(t *testing.T) {
	_, err := Load(writeConfig(t, `
audit:
  kafka:
    enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.kafka.brokers")

	_, err = Load(writeConfig(t, `
workflow:
  approvals:
    enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.approvals.brokers")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MARKETGATE_PROVIDER_BASE_URL", "https://stub.internal")
	t.Setenv("MARKETGATE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("MARKETGATE_KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(writeConfig(t, "environment: staging\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://stub.internal", c.Provider.BaseURL)
	assert.Equal(t, "redis.internal:6379", c.Cache.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Audit.Kafka.Brokers)
}
