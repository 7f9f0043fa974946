package adapter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

// Simulator generates synthetic circular tracks for a configurable number of
// objects. With a non-zero seed the tracks are fully deterministic, which is
// what the test suites and demo deployments rely on.
type Simulator struct {
	name string
	cfg  config.SimulatorConfig
}

// NewSimulator creates a simulator adapter from its config section.
func NewSimulator(name string, cfg config.SimulatorConfig) *Simulator {
	return &Simulator{name: name, cfg: cfg}
}

func (s *Simulator) Name() string { return s.name }

type simTrack struct {
	id         string
	radiusKM   float64
	angleRad   float64
	angularVel float64 // radians per second, signed
}

// Run emits one fix per object per tick until cancelled.
func (s *Simulator) Run(ctx context.Context, em *Emitter) error {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	tracks := make([]simTrack, s.cfg.Objects)
	for i := range tracks {
		tracks[i] = simTrack{
			id:         fmt.Sprintf("SIM-%03d", i+1),
			radiusKM:   s.cfg.RadiusKM * (0.2 + 0.8*rng.Float64()),
			angleRad:   rng.Float64() * 2 * math.Pi,
			angularVel: (0.005 + 0.02*rng.Float64()) * signOf(rng),
		}
	}

	tick := time.Duration(s.cfg.TickMS) * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for i := range tracks {
				s.emitTrack(em, &tracks[i], now, tick.Seconds())
			}
		}
	}
}

func (s *Simulator) emitTrack(em *Emitter, tr *simTrack, now time.Time, dt float64) {
	tr.angleRad += tr.angularVel * dt

	// Small-angle approximation around the configured center; fine for the
	// few-kilometer radii the simulator is used with.
	latOffset := tr.radiusKM * math.Cos(tr.angleRad) / 110.574
	lonOffset := tr.radiusKM * math.Sin(tr.angleRad) / (111.320 * math.Cos(degToRad(s.cfg.CenterLat)))

	ev := feed.PositionEvent{
		Domain:      feed.Domain(s.cfg.Domain),
		PublicID:    tr.id,
		DisplayName: "Simulated " + tr.id,
		Source:      s.name,
		Timestamp:   now.UTC(),
		Latitude:    s.cfg.CenterLat + latOffset,
		Longitude:   s.cfg.CenterLon + lonOffset,
		Operator:    "simulator",
	}
	if !s.cfg.OmitMotion {
		speedMS := math.Abs(tr.angularVel) * tr.radiusKM * 1000
		// Tangential direction of travel; +90 for counterclockwise motion
		// viewed with north up.
		heading := math.Mod(radToDeg(tr.angleRad)+90*signFloat(tr.angularVel)+720, 360)
		ev.Speed = feed.Float64(speedMS)
		ev.Heading = feed.Float64(heading)
	}
	em.Emit(s.name, ev)
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func signOf(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return -1
	}
	return 1
}

func signFloat(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
