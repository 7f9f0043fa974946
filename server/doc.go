// Package server is the HTTP and websocket boundary: read-only REST views
// over the tracker and trail store, the live stream transport for hub
// subscribers, the signed ingest endpoint, and the health and metrics
// surfaces.
package server
