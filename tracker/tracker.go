package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
	"github.com/theoremus-urban-solutions/livetrack/history"
	"github.com/theoremus-urban-solutions/livetrack/metrics"
)

// ErrInvariant marks a state the single-writer discipline should have made
// impossible. The tracker fails loud on it rather than serve inconsistent
// data.
var ErrInvariant = errors.New("tracker invariant violation")

// Tuning holds the operator-adjustable tracking parameters. A Tuning value is
// immutable; hot-reload swaps the whole value atomically.
type Tuning struct {
	Alpha            float64
	ActiveThreshold  time.Duration
	OfflineThreshold time.Duration
	SweepInterval    time.Duration
	MaxFutureSkew    time.Duration
	SpeedCeilings    map[feed.Domain]float64
}

// TuningFromConfig converts the config section into tracker units.
func TuningFromConfig(c config.TrackerConfig) Tuning {
	ceilings := make(map[feed.Domain]float64, len(c.SpeedCeilings))
	for domain, v := range c.SpeedCeilings {
		ceilings[feed.Domain(domain)] = v
	}
	return Tuning{
		Alpha:            c.SmoothingAlpha,
		ActiveThreshold:  time.Duration(c.ActiveThresholdS) * time.Second,
		OfflineThreshold: time.Duration(c.OfflineThresholdS) * time.Second,
		SweepInterval:    time.Duration(c.SweepIntervalMS) * time.Millisecond,
		MaxFutureSkew:    time.Duration(c.MaxFutureSkewH) * time.Hour,
		SpeedCeilings:    ceilings,
	}
}

func (t Tuning) ceiling(d feed.Domain) float64 {
	return t.SpeedCeilings[d]
}

// classify derives the liveness state from elapsed time since the last fix.
func (t Tuning) classify(elapsed time.Duration) State {
	switch {
	case elapsed < t.ActiveThreshold:
		return StateActive
	case elapsed < t.OfflineThreshold:
		return StateStale
	default:
		return StateOffline
	}
}

// Filter narrows snapshot listings. Zero values match everything.
type Filter struct {
	Domain feed.Domain
	State  State
}

// Tracker is the single authoritative consumer of position events.
type Tracker struct {
	events chan feed.PositionEvent
	tuning atomic.Pointer[Tuning]
	sink   history.Appender
	notify func(Snapshot)
	log    *slog.Logger

	mu      sync.RWMutex
	objects map[feed.ObjectKey]*trackedObject

	lastSweep atomic.Int64 // unix millis
}

// New creates a Tracker. notify is invoked from the writer goroutine on every
// accepted mutation; it must not block (the hub enqueues without waiting).
func New(tuning Tuning, queueSize int, sink history.Appender, notify func(Snapshot), log *slog.Logger) *Tracker {
	if queueSize <= 0 {
		queueSize = 4096
	}
	t := &Tracker{
		events:  make(chan feed.PositionEvent, queueSize),
		sink:    sink,
		notify:  notify,
		log:     log,
		objects: make(map[feed.ObjectKey]*trackedObject),
	}
	t.tuning.Store(&tuning)
	return t
}

// SetTuning swaps the tracking parameters. Safe to call from any goroutine.
func (t *Tracker) SetTuning(tuning Tuning) {
	t.tuning.Store(&tuning)
}

// Tuning returns the current tracking parameters.
func (t *Tracker) Tuning() Tuning {
	return *t.tuning.Load()
}

// Offer submits an event without blocking. Returns false (and counts the
// drop) when the ingest queue is full.
func (t *Tracker) Offer(ev feed.PositionEvent) bool {
	select {
	case t.events <- ev:
		return true
	default:
		metrics.EventsDropped.Inc()
		return false
	}
}

// QueueUtilization returns ingest queue used / capacity (0-1).
func (t *Tracker) QueueUtilization() float64 {
	return float64(len(t.events)) / float64(cap(t.events))
}

// LastSweep returns the time of the most recent liveness sweep.
func (t *Tracker) LastSweep() time.Time {
	ms := t.lastSweep.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Run is the single writer. It consumes events and runs the liveness sweep on
// one goroutine, so no reader ever sees a half-updated object and no two
// writers ever race on the same object.
func (t *Tracker) Run(ctx context.Context) error {
	sweep := time.NewTicker(t.Tuning().SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case ev := <-t.events:
			if err := t.apply(&ev); err != nil {
				return fmt.Errorf("apply %s: %w", ev.Key(), err)
			}
		case now := <-sweep.C:
			t.sweepAll(now)
		case <-ctx.Done():
			return nil
		}
	}
}

// apply runs the per-event update: resolve identity, enforce the ordering
// policy, derive and smooth kinematics, force ACTIVE, fan out.
func (t *Tracker) apply(ev *feed.PositionEvent) error {
	tun := t.tuning.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	key := ev.Key()
	obj, ok := t.objects[key]
	if !ok {
		obj = &trackedObject{
			key:       key,
			state:     StateActive,
			firstSeen: time.Now(),
			metadata:  make(map[string]string),
		}
		t.objects[key] = obj
	}

	// Ordering policy: an event at or before the stored fix never moves the
	// live view, but the trail still records it.
	if !obj.lastFix.Timestamp.IsZero() && !ev.Timestamp.After(obj.lastFix.Timestamp) {
		metrics.EventsStale.Inc()
		t.sink.Append(trailFromEvent(ev, ev.Speed, ev.Heading))
		return nil
	}

	prev := obj.lastFix
	speed, heading := deriveKinematics(ev, prev)

	// Smoothing. A speed above the domain ceiling is sensor noise: the
	// previous smoothed value stands.
	if speed != nil {
		if c := tun.ceiling(ev.Domain); c > 0 && *speed > c {
			t.log.Debug("speed above ceiling, keeping previous",
				"object", key.String(), "observed", *speed, "ceiling", c)
		} else {
			s := smoothSpeed(obj.smoothedSpeed, *speed, tun.Alpha)
			obj.smoothedSpeed = &s
		}
	}
	if heading != nil {
		obj.headingSin, obj.headingCos = smoothHeading(
			obj.headingSin, obj.headingCos, obj.haveHeading, *heading, tun.Alpha)
		obj.haveHeading = true
	}

	obj.lastFix = Fix{
		Timestamp: ev.Timestamp,
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		Speed:     speed,
		Heading:   heading,
	}
	obj.state = StateActive
	if ev.DisplayName != "" {
		obj.displayName = ev.DisplayName
	}
	if ev.Operator != "" {
		obj.operator = ev.Operator
	}
	for k, v := range ev.Metadata {
		obj.metadata[k] = v
	}

	if obj.lastFix.Timestamp.After(ev.Timestamp) {
		return fmt.Errorf("%w: accepted fix moved past event timestamp", ErrInvariant)
	}

	snap := obj.snapshot()
	if t.notify != nil {
		t.notify(snap)
	}
	t.sink.Append(trailFromEvent(ev, speed, heading))
	return nil
}

// deriveKinematics returns the per-fix speed and heading: reported values are
// used as-is, missing ones are derived from displacement against the previous
// fix when one exists and time actually advanced.
func deriveKinematics(ev *feed.PositionEvent, prev Fix) (speed, heading *float64) {
	speed = ev.Speed
	heading = ev.Heading
	if speed != nil && heading != nil {
		return speed, heading
	}
	if prev.Timestamp.IsZero() {
		return speed, heading
	}
	elapsed := ev.Timestamp.Sub(prev.Timestamp).Seconds()
	if elapsed <= 0 {
		return speed, heading
	}
	if speed == nil {
		dist := haversineMeters(prev.Latitude, prev.Longitude, ev.Latitude, ev.Longitude)
		v := dist / elapsed
		speed = &v
	}
	if heading == nil {
		// A stationary object has no meaningful bearing.
		if prev.Latitude != ev.Latitude || prev.Longitude != ev.Longitude {
			b := initialBearing(prev.Latitude, prev.Longitude, ev.Latitude, ev.Longitude)
			heading = &b
		}
	}
	return speed, heading
}

func trailFromEvent(ev *feed.PositionEvent, speed, heading *float64) history.TrailPoint {
	return history.TrailPoint{
		Domain:    ev.Domain,
		PublicID:  ev.PublicID,
		Timestamp: ev.Timestamp,
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		Speed:     speed,
		Heading:   heading,
	}
}

// sweepAll reclassifies every object's liveness from elapsed time since its
// last accepted fix. Runs on the writer goroutine, serialized with event
// processing.
func (t *Tracker) sweepAll(now time.Time) {
	tun := t.tuning.Load()

	t.mu.Lock()
	var changed []Snapshot
	counts := map[State]int{StateActive: 0, StateStale: 0, StateOffline: 0}
	for _, obj := range t.objects {
		next := tun.classify(now.Sub(obj.lastFix.Timestamp))
		if next != obj.state {
			obj.state = next
			changed = append(changed, obj.snapshot())
		}
		counts[obj.state]++
	}
	t.mu.Unlock()

	for _, snap := range changed {
		if t.notify != nil {
			t.notify(snap)
		}
	}

	t.lastSweep.Store(now.UnixMilli())
	for state, n := range counts {
		metrics.ObjectsByState.WithLabelValues(string(state)).Set(float64(n))
	}
	metrics.IngestQueueUtilization.Set(t.QueueUtilization())
}

// Get returns a consistent snapshot of one object.
func (t *Tracker) Get(key feed.ObjectKey) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.objects[key]
	if !ok {
		return Snapshot{}, false
	}
	return obj.snapshot(), true
}

// List returns snapshots of all objects matching the filter, as of the read
// instant.
func (t *Tracker) List(f Filter) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(t.objects))
	for _, obj := range t.objects {
		if f.Domain != "" && obj.key.Domain != f.Domain {
			continue
		}
		if f.State != "" && obj.state != f.State {
			continue
		}
		out = append(out, obj.snapshot())
	}
	return out
}

// Counts returns the number of objects per liveness state.
func (t *Tracker) Counts() map[State]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := map[State]int{StateActive: 0, StateStale: 0, StateOffline: 0}
	for _, obj := range t.objects {
		counts[obj.state]++
	}
	return counts
}
