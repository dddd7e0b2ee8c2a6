package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openmedicaid/claimlens/internal/logger"
)

// Scheduler refreshes an engine on a cron schedule. Runs that would overlap a
// refresh still in progress are skipped.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	timeout time.Duration
}

// NewScheduler parses spec (five-field cron or a descriptor such as
// "@every 1h") and prepares the job.
func NewScheduler(e *Engine, spec string, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		engine:  e,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	logger.Debug("Starting scheduled report refresh")
	// Refresh logs its own failures.
	_, _ = s.engine.Refresh(ctx)
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
