package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/fmsearch/pkg/log"
)

var logger = log.ForService("realtime")

const (
	writeWait         = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

type initFrame struct {
	Type      string        `json:"type"`
	Listeners int           `json:"listeners"`
	Recent    []SearchEvent `json:"recent"`
}

// Handler upgrades to a websocket, sends an "init" frame with the recent
// events, then streams hub events and periodic heartbeats until the peer
// goes away. checkOrigin may be nil to accept same-host and origin-less
// clients only.
func Handler(hub *Hub, checkOrigin func(r *http.Request) bool) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		defer conn.Close()

		id, events := hub.Register()
		defer hub.Unregister(id)
		logger.Debugf("listener %d connected from %s", id, r.RemoteAddr)

		recent := hub.Recent()
		if recent == nil {
			recent = []SearchEvent{}
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(initFrame{Type: "init", Listeners: hub.Size(), Recent: recent}); err != nil {
			return
		}

		// Reads only detect the peer closing.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			var frame any
			select {
			case <-gone:
				logger.Debugf("listener %d disconnected", id)
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				frame = ev
			case <-ticker.C:
				frame = Event{Type: "heartbeat"}
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debugf("listener %d write failed: %v", id, err)
				return
			}
		}
	})
}
