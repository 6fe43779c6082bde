// Package snapshot runs the periodic NAV-per-share sampler that feeds the
// performance views.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Target takes one NAV-per-share sample of every vault.
type Target interface {
	SampleNAV(ctx context.Context) (int, error)
}

// Sampler invokes Target on a cron schedule.
type Sampler struct {
	cron    *cron.Cron
	target  Target
	baseCtx context.Context
	timeout time.Duration
}

// New creates a sampler for schedule, which accepts standard cron
// expressions and descriptors such as "@every 1h" or "@daily".
func New(baseCtx context.Context, target Target, schedule string) (*Sampler, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Sampler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		baseCtx: baseCtx,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("snapshot schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce takes a sample immediately and returns how many vaults were sampled.
func (s *Sampler) RunOnce() int {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.target.SampleNAV(ctx)
	if err != nil {
		slog.Error("nav sampling incomplete", "sampled", n, "err", err)
		return n
	}
	slog.Info("nav sampled", "vaults", n, "duration", time.Since(start))
	return n
}

// Start begins scheduling in the background.
func (s *Sampler) Start() {
	slog.Info("nav sampler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sample to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("nav sampler stopped")
}
