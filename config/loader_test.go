package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 0.4, cfg.Tracker.SmoothingAlpha)
	assert.Equal(t, 30, cfg.Tracker.ActiveThresholdS)
	assert.Equal(t, 600, cfg.Tracker.OfflineThresholdS)
	assert.Equal(t, 4096, cfg.Tracker.QueueSize)
	assert.Equal(t, 45.0, cfg.Tracker.SpeedCeilings["TRANSIT"])
	assert.Equal(t, 90.0, cfg.Tracker.SpeedCeilings["TRAIN"])
	assert.Equal(t, 30.0, cfg.Tracker.SpeedCeilings["VESSEL"])
	assert.Equal(t, 256, cfg.Broadcast.SubscriberQueue)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, 60, cfg.History.RetentionMinutes)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoaderRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map\n")
	_, err := NewLoader(path)
	assert.Error(t, err)
}

func TestLoaderRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
tracker:
  smoothingAlpha: 1.5
`)
	_, err := NewLoader(path)
	assert.Error(t, err)
}

func TestLoaderValidatesAdapterSections(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
adapters:
  - name: poller
    type: gtfsrt
    enabled: true
`)
	_, err := NewLoader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gtfsrt")
}

func TestLoaderParsesFullAdapterSet(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
adapters:
  - name: sim
    type: simulator
    enabled: true
    simulator:
      objects: 3
      domain: TRAIN
      tickMS: 500
      centerLat: 59.9
      centerLon: 10.7
      radiusKM: 2
  - name: feed
    type: gtfsrt
    enabled: false
    gtfsrt:
      vehiclePositionsURL: "https://example.org/vp.pb"
  - name: push
    type: webhook
    enabled: true
    webhook:
      secretEnv: TEST_SECRET
`)
	l, err := NewLoader(path)
	require.NoError(t, err)

	cfg := l.Config()
	require.Len(t, cfg.Adapters, 3)
	assert.Equal(t, "TRAIN", cfg.Adapters[0].Simulator.Domain)
	// Poller intervals default even on disabled adapters.
	assert.Equal(t, 15000, cfg.Adapters[1].GTFSRT.PollIntervalMS)
	assert.Equal(t, "TEST_SECRET", cfg.Adapters[2].Webhook.SecretEnv)
}

func TestLoaderReloadKeepsLastGoodOnError(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	// Simulate what the watcher does on a broken rewrite: load fails and the
	// previous config stays current.
	require.NoError(t, os.WriteFile(path, []byte("server: [broken\n"), 0o644))
	_, err = l.load()
	assert.Error(t, err)
	assert.Equal(t, ":9000", l.Config().Server.Addr)
}
