package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/livetrack/adapter"
	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/history"
	"github.com/theoremus-urban-solutions/livetrack/hub"
	"github.com/theoremus-urban-solutions/livetrack/server"
	"github.com/theoremus-urban-solutions/livetrack/tracker"
)

func main() {
	var (
		configPath = flag.String("config", "config.yml", "path to config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error")
	)
	flag.Parse()

	if *logLevel == "" {
		*logLevel = os.Getenv("LIVETRACK_LOG_LEVEL")
	}

	log := newLogger(*logLevel)
	if err := run(*configPath, *addr, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(configPath, addrOverride string, log *slog.Logger) error {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer closeStore()

	trail := history.NewBuffered(store,
		cfg.History.QueueSize,
		cfg.History.BatchSize,
		time.Duration(cfg.History.FlushIntervalMS)*time.Millisecond,
		log)

	// The hub reads snapshots out of the tracker; the tracker notifies the
	// hub on every accepted mutation. Wired through function values so
	// neither package imports the other.
	var h *hub.Hub
	tun := tracker.TuningFromConfig(cfg.Tracker)
	tr := tracker.New(tun, cfg.Tracker.QueueSize, trail, func(snap tracker.Snapshot) {
		h.Publish(snap)
	}, log)
	h = hub.New(cfg.Broadcast.SubscriberQueue, cfg.Broadcast.SnapshotBacklog, tr.List, log)

	emitter := adapter.NewEmitter(tr, tun.MaxFutureSkew, log)

	adapters, webhook, err := buildAdapters(cfg, log)
	if err != nil {
		return err
	}

	loader.OnChange(func(c *config.AppConfig) {
		tr.SetTuning(tracker.TuningFromConfig(c.Tracker))
		log.Info("tracker tuning reloaded")
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		log.Warn("config watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	srv := server.New(cfg.Server.Addr, tr, h, trail, webhook, emitter, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tr.Run(gctx) })
	g.Go(func() error { return trail.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	sup := adapter.NewSupervisor(emitter, log)
	sup.Start(gctx, adapters)

	log.Info("livetrack started",
		"addr", cfg.Server.Addr,
		"adapters", len(adapters),
		"history", cfg.History.Backend)

	err = g.Wait()
	sup.Wait()
	log.Info("livetrack stopped")
	return err
}

func newStore(ctx context.Context, cfg config.HistoryConfig) (history.Store, func(), error) {
	retention := time.Duration(cfg.RetentionMinutes) * time.Minute
	switch cfg.Backend {
	case "redis":
		rs, err := history.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, retention)
		if err != nil {
			return nil, nil, fmt.Errorf("redis history store: %w", err)
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return history.NewMemoryStore(retention), func() {}, nil
	}
}

// buildAdapters constructs the enabled adapters. The webhook is returned
// separately so the HTTP layer can drive it; at most one webhook adapter is
// supported.
func buildAdapters(cfg *config.AppConfig, log *slog.Logger) ([]adapter.Adapter, *adapter.Webhook, error) {
	var (
		adapters []adapter.Adapter
		webhook  *adapter.Webhook
	)
	for _, a := range cfg.Adapters {
		if !a.Enabled {
			continue
		}
		switch a.Type {
		case "simulator":
			adapters = append(adapters, adapter.NewSimulator(a.Name, *a.Simulator))
		case "gtfsrt":
			adapters = append(adapters, adapter.NewPoller(a.Name, *a.GTFSRT, log))
		case "aisstream":
			adapters = append(adapters, adapter.NewStream(a.Name, *a.AISStream, log))
		case "webhook":
			if webhook != nil {
				return nil, nil, fmt.Errorf("adapter %q: only one webhook adapter is supported", a.Name)
			}
			wh, err := adapter.NewWebhook(a.Name, *a.Webhook)
			if err != nil {
				return nil, nil, err
			}
			webhook = wh
			adapters = append(adapters, wh)
		}
	}
	return adapters, webhook, nil
}
