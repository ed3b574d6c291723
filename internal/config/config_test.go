package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Agent.PacketBudget)
	assert.Equal(t, 0.5, cfg.Classifier.Threshold)
	assert.Equal(t, DefaultFeatures, cfg.Classifier.Features)
	assert.Equal(t, 5*time.Second, cfg.Dispatcher.TimeoutDuration())
	assert.Equal(t, 200*time.Millisecond, cfg.Dispatcher.ThrottleDuration())
	assert.Equal(t, 0.8, cfg.Mitigation.ScoreThreshold)
	assert.Equal(t, 50, cfg.Mitigation.MinPackets)
	assert.Equal(t, 50, cfg.Collector.RecentLimit)
	assert.Greater(t, cfg.Agent.EmptyRoundBackoffDuration(), cfg.Agent.RoundCooldownDuration())
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
agent:
  interface: eth1
  packet_budget: 250
  round_cooldown: 2s
classifier:
  threshold: 0.7
dispatcher:
  sink: nats
mitigation:
  local_networks: ["10.0.0.0/8", "172.16.5.9"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "eth1", cfg.Agent.Interface)
	assert.Equal(t, 250, cfg.Agent.PacketBudget)
	assert.Equal(t, 2*time.Second, cfg.Agent.RoundCooldownDuration())
	assert.Equal(t, 10*time.Second, cfg.Agent.EmptyRoundBackoffDuration())
	assert.Equal(t, 0.7, cfg.Classifier.Threshold)
	assert.Equal(t, "nats", cfg.Dispatcher.Sink)

	prefixes, err := cfg.Mitigation.Prefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "172.16.5.9/32", prefixes[1].String())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad duration":  "dispatcher:\n  timeout: soon\n",
		"bad sink":      "dispatcher:\n  sink: carrier-pigeon\n",
		"bad store":     "collector:\n  store: csv\n",
		"bad threshold": "classifier:\n  threshold: 1.5\n",
		"bad network":   "mitigation:\n  local_networks: [\"not-an-ip\"]\n",
		"bad budget":    "agent:\n  packet_budget: -3\n",
		"bad yaml":      "agent: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestShippedConfigParses(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultFeatures, cfg.Classifier.Features)
}
