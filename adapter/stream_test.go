package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

func vesselFrame(mmsi int64, name string, sog, cog float64, trueHeading int) map[string]any {
	return map[string]any{
		"MessageType": "PositionReport",
		"MetaData": map[string]any{
			"MMSI":     mmsi,
			"ShipName": name,
		},
		"Message": map[string]any{
			"PositionReport": map[string]any{
				"Latitude":    59.5,
				"Longitude":   10.5,
				"Sog":         sog,
				"Cog":         cog,
				"TrueHeading": trueHeading,
			},
		},
	}
}

// runStreamOnce serves the given frames over a websocket, runs one session
// against it and returns what was emitted.
func runStreamOnce(t *testing.T, frames []map[string]any) []feed.PositionEvent {
	t.Helper()
	upgr := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgr.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		// The client subscribes first.
		var sub subscribeRequest
		if !assert.NoError(t, conn.ReadJSON(&sub)) {
			return
		}
		assert.Equal(t, []string{"PositionReport"}, sub.FilterMessageTypes)

		for _, f := range frames {
			if !assert.NoError(t, conn.WriteJSON(f)) {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &captureSink{}
	em := NewEmitter(sink, 24*time.Hour, testLogger())
	s := NewStream("ais", config.StreamConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectMinMS: 100,
		ReconnectMaxMS: 200,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The server closes after sending; the session returns with an error and
	// we stop before any reconnect.
	_ = s.session(ctx, em)
	return sink.all()
}

func TestStreamEmitsVesselEvents(t *testing.T) {
	events := runStreamOnce(t, []map[string]any{
		vesselFrame(257012345, "MS TEST", 10.0, 45.0, 90),
	})
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, feed.DomainVessel, ev.Domain)
	assert.Equal(t, "257012345", ev.PublicID)
	assert.Equal(t, "MS TEST", ev.DisplayName)
	require.NotNil(t, ev.Speed)
	assert.InDelta(t, 10*0.514444, *ev.Speed, 0.001)
	// True heading present and valid wins over course over ground.
	require.NotNil(t, ev.Heading)
	assert.Equal(t, 90.0, *ev.Heading)
}

func TestStreamFallsBackToCourseOverGround(t *testing.T) {
	events := runStreamOnce(t, []map[string]any{
		vesselFrame(257012345, "MS TEST", 5.0, 123.0, headingUnavailable),
	})
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Heading)
	assert.Equal(t, 123.0, *events[0].Heading)
}

func TestStreamSkipsNonPositionFrames(t *testing.T) {
	events := runStreamOnce(t, []map[string]any{
		{"MessageType": "ShipStaticData"},
		vesselFrame(257012345, "MS TEST", 5.0, 123.0, 90),
	})
	require.Len(t, events, 1)
	assert.Equal(t, "257012345", events[0].PublicID)
}
