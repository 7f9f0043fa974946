package tracker

import (
	"time"

	"github.com/theoremus-urban-solutions/livetrack/feed"
)

// State is the liveness classification of a tracked object, derived from the
// elapsed time since its last accepted fix.
type State string

const (
	StateActive  State = "ACTIVE"
	StateStale   State = "STALE"
	StateOffline State = "OFFLINE"
)

// Fix is the last accepted position observation, carrying the per-fix
// (reported or derived) speed and heading. Nil speed/heading means unknown,
// never zero.
type Fix struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
}

// trackedObject is the mutable record owned by the tracker's writer. It is
// never handed out; readers receive Snapshot copies.
type trackedObject struct {
	key         feed.ObjectKey
	displayName string
	operator    string
	state       State
	lastFix     Fix
	metadata    map[string]string
	firstSeen   time.Time

	smoothedSpeed *float64

	// Heading is smoothed on the unit circle to avoid wraparound artifacts
	// near 0/360. The accumulators hold the EMA of sin/cos.
	headingSin  float64
	headingCos  float64
	haveHeading bool
}

// Snapshot is an immutable copy of a tracked object's state as of one read
// or mutation instant.
type Snapshot struct {
	Domain      feed.Domain       `json:"domain"`
	PublicID    string            `json:"public_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Operator    string            `json:"operator,omitempty"`
	State       State             `json:"state"`
	Fix         Fix               `json:"fix"`
	Speed       *float64          `json:"speed,omitempty"`
	Heading     *float64          `json:"heading,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	FirstSeen   time.Time         `json:"first_seen"`
}

// Key returns the snapshot's object identity.
func (s Snapshot) Key() feed.ObjectKey {
	return feed.ObjectKey{Domain: s.Domain, PublicID: s.PublicID}
}

func (o *trackedObject) snapshot() Snapshot {
	snap := Snapshot{
		Domain:      o.key.Domain,
		PublicID:    o.key.PublicID,
		DisplayName: o.displayName,
		Operator:    o.operator,
		State:       o.state,
		Fix:         o.lastFix,
		FirstSeen:   o.firstSeen,
	}
	if o.smoothedSpeed != nil {
		v := *o.smoothedSpeed
		snap.Speed = &v
	}
	if o.haveHeading {
		h := headingFromComponents(o.headingSin, o.headingCos)
		snap.Heading = &h
	}
	if len(o.metadata) > 0 {
		snap.Metadata = make(map[string]string, len(o.metadata))
		for k, v := range o.metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}
