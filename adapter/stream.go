package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

const knotsToMS = 0.514444

// headingUnavailable is the AIS sentinel for "no true heading".
const headingUnavailable = 511

// Stream consumes an AIS-style websocket feed of vessel position reports and
// reconnects with exponential backoff whenever the connection drops.
type Stream struct {
	name string
	cfg  config.StreamConfig
	log  *slog.Logger
}

// NewStream creates a websocket stream adapter.
func NewStream(name string, cfg config.StreamConfig, log *slog.Logger) *Stream {
	return &Stream{name: name, cfg: cfg, log: log}
}

func (s *Stream) Name() string { return s.name }

// subscribeRequest is the upstream subscription envelope sent once after
// connecting, in the aisstream.io shape.
type subscribeRequest struct {
	APIKey             string         `json:"APIKey"`
	BoundingBoxes      [][][2]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string       `json:"FilterMessageTypes"`
}

// streamEnvelope is one inbound frame. Only PositionReport frames carry data
// we use; everything else is skipped.
type streamEnvelope struct {
	MessageType string `json:"MessageType"`
	MetaData    struct {
		MMSI     int64  `json:"MMSI"`
		ShipName string `json:"ShipName"`
	} `json:"MetaData"`
	Message struct {
		PositionReport struct {
			Latitude           float64 `json:"Latitude"`
			Longitude          float64 `json:"Longitude"`
			Sog                float64 `json:"Sog"`
			Cog                float64 `json:"Cog"`
			TrueHeading        int     `json:"TrueHeading"`
			NavigationalStatus int     `json:"NavigationalStatus"`
		} `json:"PositionReport"`
	} `json:"Message"`
}

// Run maintains the connection until cancelled. Each drop reconnects with
// doubled backoff up to the configured max; a healthy session resets it.
func (s *Stream) Run(ctx context.Context, em *Emitter) error {
	minBackoff := time.Duration(s.cfg.ReconnectMinMS) * time.Millisecond
	maxBackoff := time.Duration(s.cfg.ReconnectMaxMS) * time.Millisecond
	backoff := minBackoff

	for {
		started := time.Now()
		err := s.session(ctx, em)
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("stream disconnected", "adapter", s.name, "error", err)

		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Stream) session(ctx context.Context, em *Emitter) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer func() { _ = conn.Close() }()

	// Close the socket on cancellation so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sub := subscribeRequest{
		APIKey:             os.Getenv(s.cfg.APIKeyEnv),
		BoundingBoxes:      [][][2]float64{{{-90, -180}, {90, 180}}},
		FilterMessageTypes: []string{"PositionReport"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env streamEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Debug("undecodable frame skipped", "adapter", s.name, "error", err)
			continue
		}
		if env.MessageType != "PositionReport" || env.MetaData.MMSI == 0 {
			continue
		}
		em.Emit(s.name, s.normalize(env))
	}
}

func (s *Stream) normalize(env streamEnvelope) feed.PositionEvent {
	pr := env.Message.PositionReport
	ev := feed.PositionEvent{
		Domain:      feed.DomainVessel,
		PublicID:    fmt.Sprintf("%d", env.MetaData.MMSI),
		DisplayName: env.MetaData.ShipName,
		Source:      s.name,
		Timestamp:   time.Now().UTC(),
		Latitude:    pr.Latitude,
		Longitude:   pr.Longitude,
		Speed:       feed.Float64(pr.Sog * knotsToMS),
	}
	// Prefer the compass heading; fall back to course over ground.
	switch {
	case pr.TrueHeading >= 0 && pr.TrueHeading < 360:
		ev.Heading = feed.Float64(float64(pr.TrueHeading))
	case pr.TrueHeading == headingUnavailable && pr.Cog >= 0 && pr.Cog < 360:
		ev.Heading = feed.Float64(pr.Cog)
	}
	return ev
}
