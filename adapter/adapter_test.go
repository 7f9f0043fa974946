package adapter

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/livetrack/feed"
)

type captureSink struct {
	mu     sync.Mutex
	events []feed.PositionEvent
	full   bool
}

func (c *captureSink) Offer(ev feed.PositionEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *captureSink) all() []feed.PositionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]feed.PositionEvent(nil), c.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmitterForwardsValidEvents(t *testing.T) {
	sink := &captureSink{}
	em := NewEmitter(sink, 24*time.Hour, testLogger())

	ok := em.Emit("test", feed.PositionEvent{
		Domain:    feed.DomainTransit,
		PublicID:  "BUS-1",
		Source:    "test",
		Timestamp: time.Now(),
		Latitude:  59.9,
		Longitude: 10.7,
	})
	require.True(t, ok)
	assert.Len(t, sink.all(), 1)
}

func TestEmitterRejectsInvalidEvents(t *testing.T) {
	sink := &captureSink{}
	em := NewEmitter(sink, 24*time.Hour, testLogger())

	ok := em.Emit("test", feed.PositionEvent{
		Domain:    "PLANE",
		PublicID:  "X",
		Source:    "test",
		Timestamp: time.Now(),
	})
	assert.False(t, ok)
	assert.Empty(t, sink.all())
}

func TestEmitterReportsQueueFull(t *testing.T) {
	sink := &captureSink{full: true}
	em := NewEmitter(sink, 24*time.Hour, testLogger())

	ok := em.Emit("test", feed.PositionEvent{
		Domain:    feed.DomainTransit,
		PublicID:  "BUS-1",
		Source:    "test",
		Timestamp: time.Now(),
		Latitude:  59.9,
		Longitude: 10.7,
	})
	assert.False(t, ok)
}

func TestRejectReasonMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{feed.ErrUnknownDomain, "domain"},
		{feed.ErrBadCoordinates, "coordinates"},
		{feed.ErrZeroTimestamp, "timestamp"},
		{feed.ErrFutureTimestamp, "future"},
		{assert.AnError, "schema"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, rejectReason(tc.err))
	}
}
