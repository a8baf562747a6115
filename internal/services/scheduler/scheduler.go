// Package scheduler runs the refresh cycle on an interval, one cycle at a time,
// and publishes each result as an immutable snapshot.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// CycleFunc runs one full scan, poll and preference pass.
type CycleFunc func(ctx context.Context) (*models.AggregateSnapshot, error)

// PublishFunc observes a newly published snapshot. prev is nil on the first publish.
type PublishFunc func(prev, next *models.AggregateSnapshot)

// Scheduler is a single-flight refresh loop.
type Scheduler struct {
	run       CycleFunc
	now       func() time.Time
	snapshot  atomic.Pointer[models.AggregateSnapshot]
	stopChan  chan struct{}
	onPublish []PublishFunc
	wg        sync.WaitGroup
	interval  time.Duration
	running   atomic.Bool
	stopOnce  sync.Once
}

// New creates a Scheduler. Register observers with OnPublish before Start.
func New(run CycleFunc, interval time.Duration) *Scheduler {
	return &Scheduler{
		run:      run,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// OnPublish registers an observer. Not safe to call once the scheduler runs.
func (s *Scheduler) OnPublish(fn PublishFunc) {
	s.onPublish = append(s.onPublish, fn)
}

// Start runs one cycle immediately and then one per interval until ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.Trigger(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Trigger(ctx)
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Trigger runs a cycle and waits for it. It returns false without running
// anything when a cycle is already in progress.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		logger.Info("Refresh cycle already running, skipping trigger")
		return false
	}
	s.execute(ctx)
	return true
}

// TriggerAsync starts a cycle in the background. It returns false when a
// cycle is already in progress.
func (s *Scheduler) TriggerAsync(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		logger.Info("Refresh cycle already running, skipping trigger")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx)
	}()
	return true
}

// execute runs one cycle. The caller must hold the running flag.
func (s *Scheduler) execute(ctx context.Context) {
	defer s.running.Store(false)

	start := s.now()
	next, err := s.run(ctx)
	if err != nil {
		logger.Error("Refresh cycle failed, keeping previous snapshot", "error", err)
		return
	}
	if next == nil {
		return
	}

	// CompletedAt is the only record of the publish time.
	completed := s.now()
	next.CompletedAt = completed
	prev := s.snapshot.Swap(next)

	logger.Debug("Published snapshot", "cycle", next.CycleID, "profiles", len(next.Metrics), "duration", completed.Sub(start))

	for _, fn := range s.onPublish {
		fn(prev, next)
	}
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Snapshot returns the last published snapshot, or nil before the first cycle.
func (s *Scheduler) Snapshot() *models.AggregateSnapshot {
	return s.snapshot.Load()
}

// LastUpdated returns the completion time of the last successful cycle.
// Callers that also need the snapshot should read CompletedAt from it instead.
func (s *Scheduler) LastUpdated() (time.Time, bool) {
	snap := s.snapshot.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.CompletedAt, true
}

// Stop ends the interval loop and waits for in-flight cycles.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
