package basket

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Sweeper runs ClearExpired on a cron schedule, in addition to the sweep
// triggered by requests. Overlapping runs are skipped.
type Sweeper struct {
	cron    *cron.Cron
	svc     *Service
	running atomic.Bool
}

// NewSweeper parses schedule (standard five-field cron or a descriptor
// such as "@every 1m") and registers the sweep.
func NewSweeper(schedule string, svc *Service) (*Sweeper, error) {
	s := &Sweeper{cron: cron.New(), svc: svc}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("basket sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	if _, err := s.svc.ClearExpired(); err != nil {
		slog.Warn("scheduled basket sweep failed", "error", err)
	}
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
