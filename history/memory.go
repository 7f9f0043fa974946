package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/livetrack/feed"
)

// MemoryStore keeps trails in process memory. It is the default backend when
// no Redis address is configured, and the backend used by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	trails    map[feed.ObjectKey][]TrailPoint
	retention time.Duration
}

// NewMemoryStore creates an in-memory trail store with the given retention
// window.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		trails:    make(map[feed.ObjectKey][]TrailPoint),
		retention: retention,
	}
}

// WriteBatch appends points and trims anything older than the retention
// window.
func (s *MemoryStore) WriteBatch(_ context.Context, points []TrailPoint) error {
	cutoff := time.Now().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.trails[p.Key()] = append(s.trails[p.Key()], p)
	}
	for key, trail := range s.trails {
		kept := trail[:0]
		for _, p := range trail {
			if !p.Timestamp.Before(cutoff) {
				kept = append(kept, p)
			}
		}
		s.trails[key] = kept
	}
	return nil
}

// Query returns points in [from, to] ordered by timestamp, at most limit.
func (s *MemoryStore) Query(_ context.Context, key feed.ObjectKey, from, to time.Time, limit int) ([]TrailPoint, error) {
	s.mu.RLock()
	trail := s.trails[key]
	out := make([]TrailPoint, 0, len(trail))
	for _, p := range trail {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
