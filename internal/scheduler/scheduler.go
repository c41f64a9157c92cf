// Package scheduler drives a migration phase in the background, running one
// batch per cron tick until the phase completes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akrishnanDG/ct1-migrate/internal/migrator"
	"github.com/robfig/cron/v3"
)

// Runner runs migration batches
type Runner interface {
	RunBatch(ctx context.Context) (*migrator.BatchResult, error)
}

// BatchCallback is called after every batch that ran
type BatchCallback func(res *migrator.BatchResult)

// Scheduler runs batches on a schedule
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	logger   *slog.Logger
	onBatch  BatchCallback
}

// New creates a scheduler from a standard cron expression or descriptor
// such as "@every 1m"
func New(runner Runner, expr string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return NewWithSchedule(runner, schedule, logger), nil
}

// NewWithSchedule creates a scheduler for an already parsed schedule
func NewWithSchedule(runner Runner, schedule cron.Schedule, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
	}
}

// OnBatch sets a callback run after every batch
func (s *Scheduler) OnBatch(cb BatchCallback) {
	s.onBatch = cb
}

// Run blocks until the phase completes, ctx is canceled or a batch fails
// with a bookkeeping error. A tick that finds the migration locked is
// skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	result := make(chan error, 1)
	finish := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		done, err := s.Tick(ctx)
		if err != nil || done {
			finish(err)
		}
	}))

	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// Tick runs one batch and reports whether there is nothing left to run
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	res, err := s.runner.RunBatch(ctx)
	switch {
	case errors.Is(err, migrator.ErrLocked):
		s.logger.Info("migration locked, skipping tick")
		return false, nil
	case errors.Is(err, migrator.ErrNoRun):
		s.logger.Info("no migration phase in progress")
		return true, nil
	case err != nil:
		return false, err
	}

	s.logger.Debug("ran batch",
		"phase", res.Phase,
		"processed", res.Processed,
		"failed", res.Failed,
		"done", res.Done,
	)
	if s.onBatch != nil {
		s.onBatch(res)
	}
	return res.Done, nil
}
