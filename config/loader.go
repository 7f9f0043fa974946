package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader reads the YAML config file, applies defaults, validates it and
// watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *AppConfig
	onChange []func(*AppConfig)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *AppConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads. Only the
// tracker tuning section is meaningful on reload; structural changes require a
// restart.
func (l *Loader) OnChange(fn func(*AppConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. Call the returned stop function to clean up. A reload that fails to
// parse or validate is skipped and the previous config stays in effect.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						continue
					}
					l.mu.Lock()
					l.current = cfg
					callbacks := make([]func(*AppConfig), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

func (l *Loader) load() (*AppConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", l.path, err)
	}
	for i := range cfg.Adapters {
		if err := validateAdapter(&cfg.Adapters[i]); err != nil {
			return nil, fmt.Errorf("adapter %q: %w", cfg.Adapters[i].Name, err)
		}
	}
	return &cfg, nil
}

func validateAdapter(a *AdapterConfig) error {
	switch a.Type {
	case "simulator":
		if a.Simulator == nil {
			return fmt.Errorf("missing simulator section")
		}
	case "gtfsrt":
		if a.GTFSRT == nil {
			return fmt.Errorf("missing gtfsrt section")
		}
	case "aisstream":
		if a.AISStream == nil {
			return fmt.Errorf("missing aisstream section")
		}
	case "webhook":
		if a.Webhook == nil {
			return fmt.Errorf("missing webhook section")
		}
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":16181"
	}
	t := &cfg.Tracker
	if t.SmoothingAlpha == 0 {
		t.SmoothingAlpha = 0.4
	}
	if t.ActiveThresholdS == 0 {
		t.ActiveThresholdS = 30
	}
	if t.OfflineThresholdS == 0 {
		t.OfflineThresholdS = 600
	}
	if t.SweepIntervalMS == 0 {
		t.SweepIntervalMS = 1000
	}
	if t.MaxFutureSkewH == 0 {
		t.MaxFutureSkewH = 24
	}
	if t.QueueSize == 0 {
		t.QueueSize = 4096
	}
	if t.SpeedCeilings == nil {
		t.SpeedCeilings = map[string]float64{
			"TRANSIT": 45,
			"TRAIN":   90,
			"VESSEL":  30,
		}
	}
	b := &cfg.Broadcast
	if b.SubscriberQueue == 0 {
		b.SubscriberQueue = 256
	}
	if b.SnapshotBacklog == 0 {
		b.SnapshotBacklog = 500
	}
	h := &cfg.History
	if h.Backend == "" {
		h.Backend = "memory"
	}
	if h.RetentionMinutes == 0 {
		h.RetentionMinutes = 60
	}
	if h.BatchSize == 0 {
		h.BatchSize = 100
	}
	if h.FlushIntervalMS == 0 {
		h.FlushIntervalMS = 1000
	}
	if h.QueueSize == 0 {
		h.QueueSize = 8192
	}
	for i := range cfg.Adapters {
		a := &cfg.Adapters[i]
		if a.Simulator != nil {
			s := a.Simulator
			if s.TickMS == 0 {
				s.TickMS = 1000
			}
			if s.Objects == 0 {
				s.Objects = 10
			}
			if s.Domain == "" {
				s.Domain = "TRANSIT"
			}
			if s.RadiusKM == 0 {
				s.RadiusKM = 5
			}
		}
		if a.GTFSRT != nil {
			g := a.GTFSRT
			if g.PollIntervalMS == 0 {
				g.PollIntervalMS = 15000
			}
			if g.TimeoutMS == 0 {
				g.TimeoutMS = 10000
			}
		}
		if a.AISStream != nil {
			s := a.AISStream
			if s.ReconnectMinMS == 0 {
				s.ReconnectMinMS = 1000
			}
			if s.ReconnectMaxMS == 0 {
				s.ReconnectMaxMS = 60000
			}
		}
	}
}
