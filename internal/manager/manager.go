package manager

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JohnDimou/claude-usage-bar/internal/events"
	"github.com/JohnDimou/claude-usage-bar/internal/history"
	"github.com/JohnDimou/claude-usage-bar/internal/notify"
	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

// OnUpdate is invoked after every completed fetch cycle, success or failure.
type OnUpdate func()

// pipeline runs one fetch-and-parse cycle. Injectable in tests.
type pipeline func(ctx context.Context) (*usage.Snapshot, error)

// Manager owns the fetch cycle and the single "current snapshot + last error"
// slot the presentation layers read. All slot writes happen in finishCycle
// under one mutex; TriggerFetch drops requests while a cycle is in flight so
// overlapping fetches can never race on which result is shown.
type Manager struct {
	run         pipeline
	store       *history.DB // nil disables persistence
	notifier    *notify.Notifier
	broadcaster events.Broadcaster
	onUpdate    OnUpdate
	logger      *slog.Logger

	mu        sync.Mutex
	inFlight  bool
	current   *usage.Snapshot
	lastError string
	wg        sync.WaitGroup
}

func New(fetcher *usage.Fetcher, store *history.DB, notifier *notify.Notifier,
	broadcaster events.Broadcaster, onUpdate OnUpdate, logger *slog.Logger) *Manager {
	return &Manager{
		run:         fetcher.FetchAndParse,
		store:       store,
		notifier:    notifier,
		broadcaster: broadcaster,
		onUpdate:    onUpdate,
		logger:      logger,
	}
}

// NewWithPipeline creates a Manager with an injectable pipeline. Used in tests.
func NewWithPipeline(run func(ctx context.Context) (*usage.Snapshot, error),
	store *history.DB, notifier *notify.Notifier, broadcaster events.Broadcaster,
	onUpdate OnUpdate, logger *slog.Logger) *Manager {
	m := New(usage.NewFetcher(logger), store, notifier, broadcaster, onUpdate, logger)
	m.run = run
	return m
}

// TriggerFetch starts a fetch cycle on a background goroutine and returns
// immediately. A trigger while a cycle is outstanding is dropped.
func (m *Manager) TriggerFetch() {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		m.logger.Debug("manager: fetch already in flight, dropping trigger")
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runCycle()
	}()
}

// Wait blocks until any outstanding fetch cycle has completed.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Current returns the latest snapshot (nil if none yet) and the latest
// failure message ("" if the last cycle succeeded).
func (m *Manager) Current() (*usage.Snapshot, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.lastError
}

// InFlight reports whether a fetch cycle is outstanding.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

func (m *Manager) runCycle() {
	id := uuid.NewString()[:8]
	snap, err := m.run(context.Background())
	if err != nil {
		m.logger.Warn("manager: fetch cycle failed",
			"fetch_id", id, "kind", string(usage.KindOf(err)), "err", err)
		m.finishCycle(id, nil, err.Error())
		return
	}
	m.logger.Debug("manager: fetch cycle complete",
		"fetch_id", id,
		"session", snap.SessionPercent,
		"weekly", snap.WeeklyPercent,
		"sonnet", snap.SonnetPercent,
	)
	m.finishCycle(id, snap, "")
}

// finishCycle is the single update point for the snapshot/error slot.
func (m *Manager) finishCycle(id string, snap *usage.Snapshot, errMsg string) {
	m.mu.Lock()
	prev := m.current
	if snap != nil {
		m.current = snap
		m.lastError = ""
	} else {
		// The prior snapshot stays visible alongside the error.
		m.lastError = errMsg
	}
	m.inFlight = false
	m.mu.Unlock()

	if snap != nil {
		if m.store != nil {
			if err := m.store.InsertSnapshot(history.FromSnapshot(id, snap)); err != nil {
				m.logger.Warn("manager: history insert failed", "err", err)
			}
		}
		if m.notifier != nil {
			m.notifier.Check(prev, snap)
		}
		m.broadcast(events.Event{Type: "snapshot", Snapshot: snap})
	} else {
		m.broadcast(events.Event{Type: "fetch_failed", Error: errMsg})
	}

	if m.onUpdate != nil {
		m.onUpdate()
	}
}

func (m *Manager) broadcast(e events.Event) {
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(e)
	}
}
