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

const minimal = `
environment: test
clickhouse:
  host: ch.local
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "memory", c.History.Backend)
	assert.Equal(t, 5*time.Second, c.Analysis.FetchTimeout)
	assert.Equal(t, 500, c.Analysis.DefaultSamples)
	assert.Equal(t, "market_samples", c.ClickHouse.SamplesTable)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing environment", "clickhouse:\n  host: x\n"},
		{"bad backend", minimal + "history:\n  backend: postgres\n"},
		{"redis without addr", minimal + "history:\n  backend: redis\n"},
		{"kafka without topics", minimal + "kafka:\n  enabled: true\n  brokers: [a:9092]\n"},
		{"tiny window", minimal + "analysis:\n  default_samples: 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PATTERNSCOPE_PORT", "9191")
	t.Setenv("PATTERNSCOPE_HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("NARRATIVE_URL", "http://narrator")

	c, err := LoadWithEnv(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, 9191, c.Server.Port)
	assert.Equal(t, "redis", c.History.Backend)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "http://narrator", c.Narrative.ServiceURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
