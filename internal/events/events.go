package events

import "github.com/JohnDimou/claude-usage-bar/internal/usage"

// Event is a fetch-cycle outcome pushed to connected clients.
type Event struct {
	Type     string          `json:"type"` // "snapshot" or "fetch_failed"
	Snapshot *usage.Snapshot `json:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Broadcaster pushes events to whoever is listening (the status server's SSE
// and websocket clients). A nil Broadcaster is safe to use -- Broadcast
// becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}
