// Package scheduler runs periodic sync passes and out-of-band passes on
// reconnect. It only decides when to sync; the engine decides what.
package scheduler

import (
	"context"
	gosync "sync"
	"time"

	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/sync"
)

// Interval bounds. Anything outside is clamped, not rejected, so a bad
// config value degrades to a sane cadence instead of failing startup.
const (
	MinIntervalSeconds = 30
	MaxIntervalSeconds = 3600
)

// Runner is the scheduler's view of the sync engine.
type Runner interface {
	RunPass(ctx context.Context) (sync.Result, error)
}

// Scheduler triggers sync passes on a fixed interval.
type Scheduler struct {
	runner Runner

	mu       gosync.Mutex
	interval time.Duration
	stop     chan struct{}
	started  bool

	trigger  chan struct{}
	reclamp  chan time.Duration
	wg       gosync.WaitGroup
}

// ClampInterval normalizes a configured interval into the allowed range.
func ClampInterval(seconds int) time.Duration {
	if seconds < MinIntervalSeconds {
		seconds = MinIntervalSeconds
	}
	if seconds > MaxIntervalSeconds {
		seconds = MaxIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// New creates a Scheduler. Call Start to begin.
func New(runner Runner, intervalSeconds int) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: ClampInterval(intervalSeconds),
		trigger:  make(chan struct{}, 1),
		reclamp:  make(chan time.Duration, 1),
	}
}

// Start launches the loop: one immediate pass, then one per interval.
// Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop, s.interval)

	logging.Info("auto-sync started", map[string]interface{}{
		"interval_seconds": int(s.interval.Seconds()),
	})
}

// Stop cancels future triggers. An in-flight pass is never interrupted;
// the stop signal is only consulted between passes, and Stop returns once
// the loop has drained and exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("auto-sync stopped")
}

// OnReconnect requests an out-of-band pass, called when connectivity
// returns. Coalesces if a request is already pending.
func (s *Scheduler) OnReconnect() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// UpdateInterval changes the cadence of a running scheduler. The new
// interval takes effect immediately.
func (s *Scheduler) UpdateInterval(seconds int) {
	d := ClampInterval(seconds)
	s.mu.Lock()
	s.interval = d
	started := s.started
	s.mu.Unlock()

	if started {
		select {
		case s.reclamp <- d:
		default:
		}
	}
}

func (s *Scheduler) loop(stop <-chan struct{}, interval time.Duration) {
	defer s.wg.Done()

	s.runPass()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runPass()
		case <-s.trigger:
			logging.Info("connectivity restored, syncing")
			s.runPass()
		case d := <-s.reclamp:
			ticker.Reset(d)
			logging.Info("sync interval updated", map[string]interface{}{
				"interval_seconds": int(d.Seconds()),
			})
		}
	}
}

// runPass runs one pass to completion. The pass context is independent of
// the stop signal so a shutdown mid-record never loses retry bookkeeping.
func (s *Scheduler) runPass() {
	if _, err := s.runner.RunPass(context.Background()); err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			logging.Debug("skipping scheduled pass, sync already running")
			return
		}
		logging.ErrorWithCode("scheduled sync pass failed",
			string(errors.ErrSyncFailed), err)
	}
}
