package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler invokes the manager's TriggerFetch on a configurable interval and
// once more whenever the presentation surface opens, when enabled. Interval 0
// means "never": the loop idles until reconfigured.
type Scheduler struct {
	trigger func()
	logger  *slog.Logger

	mu            sync.Mutex
	interval      time.Duration
	refreshOnOpen bool

	reload chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(trigger func(), interval time.Duration, refreshOnOpen bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		trigger:       trigger,
		interval:      interval,
		refreshOnOpen: refreshOnOpen,
		reload:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
		logger:        logger,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger() // initial fetch so the surface is never empty at startup
		for {
			tick, stopTicker := s.tickChannel()
			select {
			case <-s.stop:
				stopTicker()
				return
			case <-s.reload:
				stopTicker()
			case <-tick:
				stopTicker()
				s.trigger()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// tickChannel returns a channel that fires after the current interval, or a
// nil channel (never fires) when the interval is 0.
func (s *Scheduler) tickChannel() (<-chan time.Time, func()) {
	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()
	if interval <= 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(interval)
	return timer.C, func() { timer.Stop() }
}

// SetInterval reconfigures the refresh interval of a running scheduler.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	changed := s.interval != d
	s.interval = d
	s.mu.Unlock()
	if !changed {
		return
	}
	s.logger.Debug("scheduler: interval changed", "interval", d)
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// SetRefreshOnOpen reconfigures the refresh-on-open flag.
func (s *Scheduler) SetRefreshOnOpen(v bool) {
	s.mu.Lock()
	s.refreshOnOpen = v
	s.mu.Unlock()
}

// SurfaceOpened triggers one extra fetch if refresh-on-open is enabled. The
// presentation layer calls this when its surface becomes visible.
func (s *Scheduler) SurfaceOpened() {
	s.mu.Lock()
	enabled := s.refreshOnOpen
	s.mu.Unlock()
	if enabled {
		s.trigger()
	}
}
