package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

// Poller fetches a GTFS-Realtime VehiclePositions feed on a fixed interval
// and emits one event per decodable entity. A fetch failure skips the cycle;
// an undecodable entity skips only that entity.
type Poller struct {
	name   string
	cfg    config.GTFSRTConfig
	client *http.Client
	log    *slog.Logger
}

// NewPoller creates a GTFS-RT poller adapter.
func NewPoller(name string, cfg config.GTFSRTConfig, log *slog.Logger) *Poller {
	return &Poller{
		name: name,
		cfg:  cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		log: log,
	}
}

func (p *Poller) Name() string { return p.name }

// Run polls until cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context, em *Emitter) error {
	interval := time.Duration(p.cfg.PollIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx, em)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx, em)
		}
	}
}

func (p *Poller) poll(ctx context.Context, em *Emitter) {
	fm, err := p.fetch(ctx)
	if err != nil {
		// Next cycle retries; upstream unavailability is not our failure.
		p.log.Warn("feed fetch failed", "adapter", p.name, "url", p.cfg.VehiclePositionsURL, "error", err)
		return
	}

	emitted := 0
	for _, entity := range fm.Entity {
		if ev, ok := p.normalize(entity, fm); ok {
			if em.Emit(p.name, ev) {
				emitted++
			}
		}
	}
	p.log.Debug("feed polled", "adapter", p.name, "entities", len(fm.Entity), "emitted", emitted)
}

func (p *Poller) fetch(ctx context.Context) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.VehiclePositionsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.cfg.VehiclePositionsURL)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &fm, nil
}

// normalize maps one feed entity to the shared event shape. Entities without
// a vehicle position or identity are skipped, not errors.
func (p *Poller) normalize(entity *gtfsrtpb.FeedEntity, fm *gtfsrtpb.FeedMessage) (feed.PositionEvent, bool) {
	v := entity.GetVehicle()
	if v == nil || v.GetPosition() == nil {
		return feed.PositionEvent{}, false
	}
	pos := v.GetPosition()

	publicID := v.GetVehicle().GetId()
	if publicID == "" {
		publicID = v.GetTrip().GetTripId()
	}
	if publicID == "" {
		return feed.PositionEvent{}, false
	}

	ts := int64(v.GetTimestamp())
	if ts == 0 {
		ts = int64(fm.GetHeader().GetTimestamp())
	}
	var when time.Time
	if ts > 0 {
		when = time.Unix(ts, 0).UTC()
	} else {
		when = time.Now().UTC()
	}

	ev := feed.PositionEvent{
		Domain:      feed.DomainTransit,
		PublicID:    publicID,
		DisplayName: v.GetVehicle().GetLabel(),
		Source:      p.name,
		Timestamp:   when,
		Latitude:    float64(pos.GetLatitude()),
		Longitude:   float64(pos.GetLongitude()),
		Operator:    p.cfg.AgencyID,
	}
	if route := v.GetTrip().GetRouteId(); route != "" {
		ev.Metadata = map[string]string{"route_id": route}
	}
	// Reported motion only; never fabricated. GTFS-RT speed is m/s and
	// bearing is degrees from north, same as the contract.
	if pos.Speed != nil {
		ev.Speed = feed.Float64(float64(pos.GetSpeed()))
	}
	if pos.Bearing != nil {
		b := math.Mod(float64(pos.GetBearing()), 360)
		if b < 0 {
			b += 360
		}
		ev.Heading = feed.Float64(b)
	}
	return ev, true
}
