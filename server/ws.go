package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/livetrack/hub"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser viewers connect from arbitrary origins; the stream is read-only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream upgrades the connection and pumps hub messages to it: one full
// snapshot first, then incrementals in version order.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)
	defer func() { _ = conn.Close() }()

	// Reader goroutine: we accept no client input, but reads surface pongs
	// and the close frame.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg hub.Message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	snap := s.hub.Snapshot()
	if err := write(snap); err != nil {
		return
	}
	// Updates already versioned at or below the snapshot are stale; the
	// snapshot supersedes them.
	delivered := snap.Version

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-sub.C():
			if !ok {
				// Hub dropped us; the client reconnects for a fresh snapshot.
				return
			}
			switch msg.Type {
			case hub.MessageResync:
				snap := s.hub.Snapshot()
				if err := write(snap); err != nil {
					return
				}
				if snap.Version > delivered {
					delivered = snap.Version
				}
				s.hub.ClearResync(sub)
			default:
				if msg.Version <= delivered {
					continue
				}
				if err := write(msg); err != nil {
					return
				}
				delivered = msg.Version
			}
		}
	}
}
