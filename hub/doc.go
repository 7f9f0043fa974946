// Package hub fans tracker mutations out to subscribers as an ordered stream
// of versioned messages.
//
// Every accepted mutation increments one global version. A new subscriber
// gets a full snapshot at the current version, then incremental updates in
// non-decreasing version order. Subscribers that fall behind are healed with
// a fresh snapshot; subscribers that keep overflowing are dropped and must
// reconnect. Nothing in this package ever blocks the tracker.
package hub
