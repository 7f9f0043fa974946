// Package tracker owns the live state of every tracked object.
//
// All position events from all adapters are serialized through one writer
// goroutine, which is the only code path that mutates a TrackedObject. The
// writer applies the ordering policy (out-of-order events update history but
// never the live view), derives motion when a source omits it, smooths speed
// and heading, and reclassifies liveness on a periodic sweep. Readers get
// copied snapshots under a read lock and never observe a half-applied event.
package tracker
