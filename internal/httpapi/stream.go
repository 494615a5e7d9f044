package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream pushes the status document over a websocket whenever the
// control loop publishes a new snapshot.
func (h *handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The client sends nothing; reading only surfaces the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	tick := time.NewTicker(h.deps.StreamInterval)
	defer tick.Stop()

	var last time.Time
	for {
		if snap, at, ok := h.deps.State.Latest(); ok && at.After(last) {
			last = at
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(h.status(snap, at)); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}

		select {
		case <-gone:
			return
		case <-h.deps.Done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-tick.C:
		}
	}
}
