// Package history persists per-object position trails.
//
// The tracker hands every fix to a Buffered sink which batches writes in the
// background; the tracker is never blocked by storage. Reads return points
// ordered by timestamp regardless of append order, so out-of-order fixes can
// be written as they arrive.
package history
