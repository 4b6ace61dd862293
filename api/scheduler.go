/*
scheduler.go - Background snapshot refresher

PURPOSE:
  Periodically recomputes the daily sales snapshots of every branch in the
  directory so dashboards reading /snapshots rarely pay for a recompute.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each pass refreshes today and, during the first hour of a day, yesterday
    (late journals for the previous trading day are posted after midnight)
  - A failing branch is logged and skipped; the next pass retries it

CONFIGURATION:
  - Interval: How often to refresh (default: SNAPSHOT_MAX_AGE)
  - Enabled: Whether the scheduler runs (default: true when Interval > 0)

USAGE:
  scheduler := NewSnapshotScheduler(handler, cfg.SnapshotMaxAge)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - snapshot/snapshot.go: Cache.Refresh
  - handlers.go: manual refresh endpoints
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/ovenline/sales-targets/snapshot"
	"github.com/sirupsen/logrus"
)

// SnapshotScheduler refreshes branch snapshots on a timer.
type SnapshotScheduler struct {
	Cache     *snapshot.Cache
	Directory sales.Directory
	Interval  time.Duration
	Enabled   bool
	Log       logrus.FieldLogger
	Now       func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a scheduler over the handler's cache and store.
func NewSnapshotScheduler(h *Handler, interval time.Duration) *SnapshotScheduler {
	return &SnapshotScheduler{
		Cache:     h.Snapshots,
		Directory: h.Store,
		Interval:  interval,
		Enabled:   interval > 0,
		Log:       h.Log,
		Now:       time.Now,
	}
}

// Start begins the scheduler.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("snapshot scheduler disabled")
		return
	}
	if s.ticker != nil {
		s.Log.Debug("snapshot scheduler already running")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Log.WithField("interval", s.Interval.String()).Info("snapshot scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Log.Info("snapshot scheduler stopped")
	}
}

func (s *SnapshotScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// Running reports whether the background loop is active.
func (s *SnapshotScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// RunOnce performs a single refresh pass and returns how many snapshots were
// written.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) int {
	now := s.Now()
	days := []model.Date{model.DateOf(now)}
	if now.Hour() == 0 {
		days = append(days, model.DateOf(now).AddDays(-1))
	}

	branches, err := s.Directory.ListBranches(ctx)
	if err != nil {
		s.Log.WithError(err).Error("snapshot scheduler: list branches")
		return 0
	}

	refreshed := 0
	for _, b := range branches {
		for _, day := range days {
			if _, err := s.Cache.Refresh(ctx, b.ID, day); err != nil {
				s.Log.WithError(err).WithFields(logrus.Fields{
					"branch_id": b.ID, "date": day.String(),
				}).Warn("snapshot scheduler: refresh failed")
				continue
			}
			refreshed++
		}
	}

	if refreshed > 0 {
		s.Log.WithFields(logrus.Fields{"branches": len(branches), "snapshots": refreshed}).Debug("snapshot pass completed")
	}
	return refreshed
}
