package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/livetrack/metrics"
	"github.com/theoremus-urban-solutions/livetrack/tracker"
)

// MessageType discriminates subscriber messages.
type MessageType string

const (
	// MessageSnapshot carries the full state of all tracked objects.
	MessageSnapshot MessageType = "snapshot"
	// MessageUpdate carries one object's new state.
	MessageUpdate MessageType = "update"
	// MessageResync instructs the transport to fetch and deliver a fresh
	// snapshot; it never goes on the wire itself.
	MessageResync MessageType = "resync"
)

// Message is one unit of the subscriber stream.
type Message struct {
	Type    MessageType        `json:"type"`
	Version uint64             `json:"version"`
	Objects []tracker.Snapshot `json:"objects,omitempty"`
	Object  *tracker.Snapshot  `json:"object,omitempty"`
}

// Subscriber is one connection's cursor into the broadcast stream.
type Subscriber struct {
	ID string

	ch         chan Message
	lastQueued uint64
	resyncing  bool
}

// C is the subscriber's receive channel. It is closed when the hub drops the
// subscriber; reconnecting is the only recovery.
func (s *Subscriber) C() <-chan Message { return s.ch }

// Hub owns the global version counter and the subscriber registry.
type Hub struct {
	source func(tracker.Filter) []tracker.Snapshot
	log    *slog.Logger

	queueSize int
	backlog   int

	mu      sync.Mutex
	version uint64
	subs    map[string]*Subscriber
}

// New creates a Hub. source provides consistent snapshots (the tracker's List
// method); queueSize bounds each subscriber's outbound queue; backlog is the
// version gap beyond which a subscriber is healed with a snapshot instead of
// replaying incrementals.
func New(queueSize, backlog int, source func(tracker.Filter) []tracker.Snapshot, log *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	if backlog <= 0 {
		backlog = 500
	}
	return &Hub{
		source:    source,
		log:       log,
		queueSize: queueSize,
		backlog:   backlog,
		subs:      make(map[string]*Subscriber),
	}
}

// Publish assigns the next version to a mutation and fans it out. Called from
// the tracker's writer goroutine; never blocks. A subscriber whose queue is
// full or whose version gap exceeds the backlog threshold has its queue
// cleared and replaced with a resync marker; if it is still wedged after
// that, it is dropped.
func (h *Hub) Publish(snap tracker.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.version++
	msg := Message{Type: MessageUpdate, Version: h.version, Object: &snap}

	for id, sub := range h.subs {
		if sub.resyncing {
			// Snapshot already pending; updates queue behind it and the
			// transport filters the stale ones by version.
			if !h.offer(sub, msg) {
				h.dropLocked(id, sub)
			}
			continue
		}
		behind := h.version-sub.lastQueued > uint64(h.backlog)
		if !behind && h.offer(sub, msg) {
			continue
		}
		// Fallen behind or queue full: heal with one fresh snapshot.
		h.drain(sub)
		sub.resyncing = true
		if h.offer(sub, Message{Type: MessageResync, Version: h.version}) {
			metrics.Resnapshots.Inc()
		} else {
			h.dropLocked(id, sub)
		}
	}
}

func (h *Hub) offer(sub *Subscriber, msg Message) bool {
	select {
	case sub.ch <- msg:
		sub.lastQueued = msg.Version
		return true
	default:
		return false
	}
}

func (h *Hub) drain(sub *Subscriber) {
	for {
		select {
		case <-sub.ch:
		default:
			return
		}
	}
}

func (h *Hub) dropLocked(id string, sub *Subscriber) {
	delete(h.subs, id)
	close(sub.ch)
	metrics.SubscribersDropped.Inc()
	metrics.Subscribers.Set(float64(len(h.subs)))
	h.log.Info("subscriber dropped, queue overflow", "subscriber", id)
}

// Subscribe registers a new subscriber. The caller should immediately deliver
// Snapshot() before consuming the channel.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.New().String(),
		ch: make(chan Message, h.queueSize),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()
	metrics.Subscribers.Set(float64(n))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
	metrics.Subscribers.Set(float64(len(h.subs)))
}

// ClearResync marks a subscriber healthy again after the transport delivered
// a fresh snapshot.
func (h *Hub) ClearResync(sub *Subscriber) {
	h.mu.Lock()
	sub.resyncing = false
	h.mu.Unlock()
}

// Snapshot builds a full-state message at the current version.
func (h *Hub) Snapshot() Message {
	h.mu.Lock()
	v := h.version
	h.mu.Unlock()
	// The source read may observe mutations newer than v; that only makes
	// the snapshot fresher than advertised, never staler.
	return Message{
		Type:    MessageSnapshot,
		Version: v,
		Objects: h.source(tracker.Filter{}),
	}
}

// Version returns the current global version.
func (h *Hub) Version() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
