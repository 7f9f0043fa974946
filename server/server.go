package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/livetrack/adapter"
	"github.com/theoremus-urban-solutions/livetrack/history"
	"github.com/theoremus-urban-solutions/livetrack/hub"
	"github.com/theoremus-urban-solutions/livetrack/tracker"
)

// Server serves the REST API, the websocket stream and the signed ingest
// endpoint.
type Server struct {
	addr    string
	tracker *tracker.Tracker
	hub     *hub.Hub
	trail   *history.Buffered
	webhook *adapter.Webhook // nil when no webhook adapter is configured
	emitter *adapter.Emitter
	log     *slog.Logger

	httpSrv *http.Server
}

// New wires the server. webhook may be nil; the ingest endpoint then answers
// 404.
func New(addr string, tr *tracker.Tracker, h *hub.Hub, trail *history.Buffered,
	webhook *adapter.Webhook, em *adapter.Emitter, log *slog.Logger) *Server {
	s := &Server{
		addr:    addr,
		tracker: tr,
		hub:     h,
		trail:   trail,
		webhook: webhook,
		emitter: em,
		log:     log,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: it would sever long-lived websocket streams.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/objects", s.handleListObjects)
	r.Get("/api/objects/{domain}/{id}", s.handleGetObject)
	r.Get("/api/objects/{domain}/{id}/trail", s.handleTrail)
	r.Get("/api/stream", s.handleStream)
	r.Post("/api/ingest", s.handleIngest)
	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutCtx); err != nil {
		s.log.Warn("server shutdown", "error", err)
	}
	return <-errCh
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
