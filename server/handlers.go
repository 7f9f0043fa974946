package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/livetrack/feed"
	"github.com/theoremus-urban-solutions/livetrack/tracker"
)

// signatureHeader carries the hex HMAC-SHA256 of the ingest request body.
const signatureHeader = "X-Livetrack-Signature"

const (
	defaultTrailWindow = time.Hour
	maxTrailLimit      = 10000
	maxIngestBody      = 1 << 20
)

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	var f tracker.Filter
	if d := r.URL.Query().Get("domain"); d != "" {
		f.Domain = feed.Domain(strings.ToUpper(d))
		if !f.Domain.Valid() {
			writeError(w, http.StatusBadRequest, "unknown domain")
			return
		}
	}
	if st := r.URL.Query().Get("state"); st != "" {
		f.State = tracker.State(strings.ToUpper(st))
		switch f.State {
		case tracker.StateActive, tracker.StateStale, tracker.StateOffline:
		default:
			writeError(w, http.StatusBadRequest, "unknown state")
			return
		}
	}
	objects := s.tracker.List(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(objects),
		"objects": objects,
	})
}

func objectKey(r *http.Request) (feed.ObjectKey, bool) {
	domain := feed.Domain(strings.ToUpper(chi.URLParam(r, "domain")))
	id := chi.URLParam(r, "id")
	if !domain.Valid() || id == "" {
		return feed.ObjectKey{}, false
	}
	return feed.ObjectKey{Domain: domain, PublicID: id}, true
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	key, ok := objectKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown domain")
		return
	}
	snap, ok := s.tracker.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTrail(w http.ResponseWriter, r *http.Request) {
	key, ok := objectKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown domain")
		return
	}

	now := time.Now()
	from := now.Add(-defaultTrailWindow)
	to := now
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from: want RFC3339")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to: want RFC3339")
			return
		}
		to = t
	}
	limit := 1000
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit: want positive integer")
			return
		}
		if n > maxTrailLimit {
			n = maxTrailLimit
		}
		limit = n
	}

	points, err := s.trail.Query(r.Context(), key, from, to, limit)
	if err != nil {
		s.log.Error("trail query failed", "object", key.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "trail query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object": key,
		"count":  len(points),
		"points": points,
	})
}

// handleIngest is the signed push boundary. Verification runs over the exact
// raw bytes before any parsing.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeError(w, http.StatusNotFound, "ingest not configured")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.webhook.Verify(raw, r.Header.Get(signatureHeader)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	ev, err := s.webhook.Decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "undecodable event")
		return
	}
	if !s.emitter.Emit(s.webhook.Name(), ev) {
		writeError(w, http.StatusBadRequest, "event rejected")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts := s.tracker.Counts()
	var lastSweep string
	if t := s.tracker.LastSweep(); !t.IsZero() {
		lastSweep = feed.Iso8601(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   feed.Iso8601Now(),
		"objects": map[string]int{
			string(tracker.StateActive):  counts[tracker.StateActive],
			string(tracker.StateStale):   counts[tracker.StateStale],
			string(tracker.StateOffline): counts[tracker.StateOffline],
		},
		"ingest_queue_utilization": s.tracker.QueueUtilization(),
		"last_sweep":               lastSweep,
		"subscribers":              s.hub.SubscriberCount(),
	})
}
