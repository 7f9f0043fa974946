package tracker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Oslo to Bergen, roughly 305 km great-circle.
	d := haversineMeters(59.9139, 10.7522, 60.3913, 5.3221)
	assert.InDelta(t, 305000, d, 5000)
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	assert.InDelta(t, 0, haversineMeters(59.9, 10.7, 59.9, 10.7), 0.001)
}

func TestInitialBearingCardinal(t *testing.T) {
	// Due north.
	assert.InDelta(t, 0, initialBearing(59.0, 10.0, 60.0, 10.0), 0.5)
	// Due south.
	assert.InDelta(t, 180, initialBearing(60.0, 10.0, 59.0, 10.0), 0.5)
	// Due east at the equator.
	assert.InDelta(t, 90, initialBearing(0, 10.0, 0, 11.0), 0.5)
	// Due west at the equator.
	assert.InDelta(t, 270, initialBearing(0, 11.0, 0, 10.0), 0.5)
}

func TestInitialBearingRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		b := initialBearing(
			rng.Float64()*170-85, rng.Float64()*360-180,
			rng.Float64()*170-85, rng.Float64()*360-180)
		require.GreaterOrEqual(t, b, 0.0)
		require.Less(t, b, 360.0)
	}
}

func TestSmoothSpeedSeedsAndConverges(t *testing.T) {
	first := smoothSpeed(nil, 10, 0.4)
	assert.Equal(t, 10.0, first)

	v := first
	for i := 0; i < 50; i++ {
		v = smoothSpeed(&v, 20, 0.4)
	}
	assert.InDelta(t, 20, v, 0.01)
}

func TestSmoothHeadingWraparound(t *testing.T) {
	// Alternating observations at 359 and 1 degrees must average near 0, not
	// near 180 as naive degree averaging would.
	var sin, cos float64
	have := false
	for i := 0; i < 40; i++ {
		obs := 359.0
		if i%2 == 1 {
			obs = 1.0
		}
		sin, cos = smoothHeading(sin, cos, have, obs, 0.4)
		have = true
	}
	h := headingFromComponents(sin, cos)
	if h > 180 {
		h -= 360
	}
	assert.InDelta(t, 0, h, 2)
}

func TestSmoothHeadingReducesVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const base = 90.0

	var sin, cos float64
	have := false
	var smoothed, raw []float64
	for i := 0; i < 20; i++ {
		obs := base + (rng.Float64()*30 - 15)
		raw = append(raw, obs)
		sin, cos = smoothHeading(sin, cos, have, obs, 0.4)
		have = true
		smoothed = append(smoothed, headingFromComponents(sin, cos))
	}

	// Compare variance over the tail, after the EMA has warmed up.
	assert.Less(t, variance(smoothed[5:]), variance(raw[5:]))
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

func TestHeadingFromComponentsRange(t *testing.T) {
	for deg := 0.0; deg < 360; deg += 7.3 {
		rad := degToRad(deg)
		h := headingFromComponents(math.Sin(rad), math.Cos(rad))
		require.GreaterOrEqual(t, h, 0.0)
		require.Less(t, h, 360.0)
		require.InDelta(t, deg, h, 0.0001)
	}
}
