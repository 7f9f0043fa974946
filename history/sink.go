package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/livetrack/feed"
	"github.com/theoremus-urban-solutions/livetrack/metrics"
)

// TrailPoint is one persisted historical sample for a tracked object.
// Write-once and append-only; ordering is restored on read.
type TrailPoint struct {
	Domain    feed.Domain `json:"domain"`
	PublicID  string      `json:"public_id"`
	Timestamp time.Time   `json:"timestamp"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Speed     *float64    `json:"speed,omitempty"`
	Heading   *float64    `json:"heading,omitempty"`
}

// Key returns the object identity the point belongs to.
func (p TrailPoint) Key() feed.ObjectKey {
	return feed.ObjectKey{Domain: p.Domain, PublicID: p.PublicID}
}

// Appender is the only operation the tracker calls. Implementations must not
// block the caller.
type Appender interface {
	Append(p TrailPoint)
}

// Store is a trail storage backend. WriteBatch persists a batch and enforces
// retention; Query returns points within [from, to] ordered by timestamp,
// capped at limit.
type Store interface {
	WriteBatch(ctx context.Context, points []TrailPoint) error
	Query(ctx context.Context, key feed.ObjectKey, from, to time.Time, limit int) ([]TrailPoint, error)
}

// Buffered decouples the tracker from the storage backend: Append enqueues
// without blocking (dropping the point when the buffer is full) and a
// background loop flushes batches by size or interval.
type Buffered struct {
	store         Store
	in            chan TrailPoint
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger

	closeOnce sync.Once
}

// NewBuffered wraps store with an asynchronous batching buffer.
func NewBuffered(store Store, queueSize, batchSize int, flushInterval time.Duration, log *slog.Logger) *Buffered {
	if queueSize <= 0 {
		queueSize = 8192
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Buffered{
		store:         store,
		in:            make(chan TrailPoint, queueSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           log,
	}
}

// Append enqueues a point for persistence. Never blocks; a full buffer drops
// the point and counts it.
func (b *Buffered) Append(p TrailPoint) {
	select {
	case b.in <- p:
		metrics.TrailAppended.Inc()
	default:
		metrics.TrailDropped.Inc()
	}
}

// Query reads directly from the backing store.
func (b *Buffered) Query(ctx context.Context, key feed.ObjectKey, from, to time.Time, limit int) ([]TrailPoint, error) {
	return b.store.Query(ctx, key, from, to, limit)
}

// Run flushes batches until ctx is cancelled, then drains what remains.
func (b *Buffered) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	batch := make([]TrailPoint, 0, b.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Bounded write context so a stuck backend cannot wedge the loop.
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := b.store.WriteBatch(wctx, batch); err != nil {
			b.log.Warn("trail batch write failed", "points", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case p := <-b.in:
			batch = append(batch, p)
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case p := <-b.in:
					batch = append(batch, p)
					if len(batch) >= b.batchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		}
	}
}
