package webserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JohnDimou/claude-usage-bar/internal/events"
	"github.com/JohnDimou/claude-usage-bar/internal/history"
	"github.com/JohnDimou/claude-usage-bar/internal/manager"
	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

type AuthConfig struct {
	Username     string
	PasswordHash string // bcrypt
	JWTSecret    string
}

type Config struct {
	Enabled bool
	Port    int
	Host    string
	Auth    AuthConfig
}

// Server exposes the current usage state over a local HTTP API so external
// presentation layers (the menu-bar popover among them) can read snapshots
// and subscribe to updates without linking against this process.
type Server struct {
	mgr    *manager.Manager
	store  *history.DB // nil when history is disabled
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan events.Event]struct{}
}

func New(mgr *manager.Manager, store *history.DB, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		mgr:     mgr,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[chan events.Event]struct{}),
	}
}

// Broadcast implements events.Broadcaster. Slow clients are skipped rather
// than blocking the fetch cycle's completion path.
func (s *Server) Broadcast(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) addClient(ch chan events.Event) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan events.Event) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	if s.cfg.Auth.Username == "" {
		return mux
	}
	return authMiddleware(s.cfg.Auth.JWTSecret, []string{"/api/auth/login"}, mux)
}

func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webserver: listen failed", "addr", addr, "err", err)
		}
	}()
	s.logger.Info("webserver: listening", "addr", addr)
	return nil
}

type usageResponse struct {
	Snapshot *usage.Snapshot `json:"snapshot"`
	Error    string          `json:"error,omitempty"`
	InFlight bool            `json:"in_flight"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap, lastErr := s.mgr.Current()
	writeJSON(w, usageResponse{
		Snapshot: snap,
		Error:    lastErr,
		InFlight: s.mgr.InFlight(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	n := 48
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > 1000 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = v
	}
	rows, err := s.store.RecentSnapshots(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"snapshots": rows})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// Single-flight applies: a refresh while one is outstanding is dropped.
	s.mgr.TriggerFetch()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	// Seed the stream with the current state.
	snap, lastErr := s.mgr.Current()
	writeSSE(w, flusher, events.Event{Type: "snapshot", Snapshot: snap, Error: lastErr})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, flusher, e)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, e events.Event) {
	data, _ := json.Marshal(e)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
