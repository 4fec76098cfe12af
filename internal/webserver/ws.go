package webserver

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/JohnDimou/claude-usage-bar/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClientMsg struct {
	Type string `json:"type"`
}

// handleWS pushes fetch-cycle events to the client as JSON frames. The client
// may send {"type":"refresh"} to request a manual fetch (the popover's
// refresh button); the single-flight guard applies as everywhere else.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	// Initial state so a freshly opened popover renders immediately.
	snap, lastErr := s.mgr.Current()
	if err := conn.WriteJSON(events.Event{Type: "snapshot", Snapshot: snap, Error: lastErr}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg wsClientMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "refresh" {
				s.mgr.TriggerFetch()
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e := <-ch:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
