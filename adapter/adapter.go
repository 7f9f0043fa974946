package adapter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/livetrack/feed"
	"github.com/theoremus-urban-solutions/livetrack/metrics"
)

// Sink accepts normalized events without blocking. The tracker's ingest
// queue implements it.
type Sink interface {
	Offer(ev feed.PositionEvent) bool
}

// Adapter produces normalized events into an Emitter until its context is
// cancelled.
type Adapter interface {
	Name() string
	Run(ctx context.Context, em *Emitter) error
}

// Emitter is the one gate between adapters and the tracker: it validates
// against the normalization contract, counts rejects, and forwards accepted
// events to the sink.
type Emitter struct {
	sink          Sink
	maxFutureSkew time.Duration
	log           *slog.Logger
}

// NewEmitter creates an Emitter enforcing the given future-timestamp skew.
func NewEmitter(sink Sink, maxFutureSkew time.Duration, log *slog.Logger) *Emitter {
	return &Emitter{sink: sink, maxFutureSkew: maxFutureSkew, log: log}
}

// Emit validates and forwards one event. Invalid events are dropped and
// counted, never fatal.
func (e *Emitter) Emit(adapterName string, ev feed.PositionEvent) bool {
	if err := ev.Validate(e.maxFutureSkew); err != nil {
		metrics.EventsRejected.WithLabelValues(adapterName, rejectReason(err)).Inc()
		e.log.Debug("event rejected", "adapter", adapterName, "error", err)
		return false
	}
	if !e.sink.Offer(ev) {
		e.log.Warn("ingest queue full, event dropped", "adapter", adapterName, "object", ev.Key().String())
		return false
	}
	metrics.EventsIngested.WithLabelValues(adapterName).Inc()
	return true
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, feed.ErrUnknownDomain):
		return "domain"
	case errors.Is(err, feed.ErrBadCoordinates):
		return "coordinates"
	case errors.Is(err, feed.ErrZeroTimestamp):
		return "timestamp"
	case errors.Is(err, feed.ErrFutureTimestamp):
		return "future"
	default:
		return "schema"
	}
}

const (
	restartBackoffMin = time.Second
	restartBackoffMax = time.Minute
)

// Supervisor runs each adapter in its own goroutine, recovers panics, and
// restarts failed adapters with exponential backoff.
type Supervisor struct {
	emitter *Emitter
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewSupervisor creates a Supervisor emitting through em.
func NewSupervisor(em *Emitter, log *slog.Logger) *Supervisor {
	return &Supervisor{emitter: em, log: log}
}

// Start launches all adapters. It returns immediately; Wait blocks until all
// adapters have stopped after ctx cancellation.
func (s *Supervisor) Start(ctx context.Context, adapters []Adapter) {
	for _, a := range adapters {
		s.wg.Add(1)
		go func(a Adapter) {
			defer s.wg.Done()
			s.supervise(ctx, a)
		}(a)
	}
}

// Wait blocks until every adapter goroutine has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, a Adapter) {
	backoff := restartBackoffMin
	for {
		started := time.Now()
		err := s.runSafe(ctx, a)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Error("adapter stopped", "adapter", a.Name(), "error", err)
		} else {
			s.log.Warn("adapter returned early", "adapter", a.Name())
		}

		// A run that survived past the cap earns a fresh backoff.
		if time.Since(started) > restartBackoffMax {
			backoff = restartBackoffMin
		}
		metrics.AdapterRestarts.WithLabelValues(a.Name()).Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

func (s *Supervisor) runSafe(ctx context.Context, a Adapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("adapter panic")
			s.log.Error("adapter panicked", "adapter", a.Name(), "panic", r)
		}
	}()
	return a.Run(ctx, s.emitter)
}
