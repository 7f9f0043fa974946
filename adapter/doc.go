// Package adapter contains the feed adapters and their supervisor.
//
// An adapter is a long-lived concurrent unit with one contract: produce zero
// or more normalized PositionEvents over time, or stop. The closed set of
// variants is Simulator, Poller (GTFS-RT), Stream (AIS-style websocket) and
// Webhook (passive, driven by the HTTP layer). Each runs isolated under the
// Supervisor: a panic or persistent failure in one adapter never affects the
// others or the tracker.
package adapter
