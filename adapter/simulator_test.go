package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

func simConfig() config.SimulatorConfig {
	return config.SimulatorConfig{
		Objects:   3,
		Domain:    "TRANSIT",
		TickMS:    10,
		Seed:      42,
		CenterLat: 59.9139,
		CenterLon: 10.7522,
		RadiusKM:  5,
	}
}

func runSimulator(t *testing.T, cfg config.SimulatorConfig, ticks int) []feed.PositionEvent {
	t.Helper()
	sink := &captureSink{}
	em := NewEmitter(sink, 24*time.Hour, testLogger())
	sim := NewSimulator("sim", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sim.Run(ctx, em)
		close(done)
	}()

	want := cfg.Objects * ticks
	deadline := time.After(5 * time.Second)
	for len(sink.all()) < want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", want, len(sink.all()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
	return sink.all()[:want]
}

func TestSimulatorEmitsPerObjectPerTick(t *testing.T) {
	events := runSimulator(t, simConfig(), 2)

	ids := map[string]int{}
	for _, ev := range events {
		assert.Equal(t, feed.DomainTransit, ev.Domain)
		assert.Equal(t, "sim", ev.Source)
		assert.NoError(t, ev.Validate(24*time.Hour))
		ids[ev.PublicID]++
	}
	require.Len(t, ids, 3)
	for id, n := range ids {
		assert.Equal(t, 2, n, "object %s", id)
	}
}

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	a := runSimulator(t, simConfig(), 1)
	b := runSimulator(t, simConfig(), 1)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].PublicID, b[i].PublicID)
		assert.InDelta(t, a[i].Latitude, b[i].Latitude, 1e-12)
		assert.InDelta(t, a[i].Longitude, b[i].Longitude, 1e-12)
	}
}

func TestSimulatorOmitMotionLeavesKinematicsNil(t *testing.T) {
	cfg := simConfig()
	cfg.OmitMotion = true
	events := runSimulator(t, cfg, 1)

	for _, ev := range events {
		assert.Nil(t, ev.Speed)
		assert.Nil(t, ev.Heading)
	}
}

func TestSimulatorReportsMotionByDefault(t *testing.T) {
	events := runSimulator(t, simConfig(), 1)
	for _, ev := range events {
		require.NotNil(t, ev.Speed)
		require.NotNil(t, ev.Heading)
		assert.Greater(t, *ev.Speed, 0.0)
		assert.GreaterOrEqual(t, *ev.Heading, 0.0)
		assert.Less(t, *ev.Heading, 360.0)
	}
}
