// Package migrator drives a site migration in resumable batches.
//
// A run is started for a phase (preview or migration) and then advanced by
// repeated RunBatch calls, each processing a bounded number of legacy events
// under the site-wide lock. The site report is checkpointed after every batch
// so a run survives process restarts.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
	"github.com/akrishnanDG/ct1-migrate/internal/store"
	"github.com/akrishnanDG/ct1-migrate/internal/strategy"
	"github.com/akrishnanDG/ct1-migrate/internal/validator"
	"github.com/akrishnanDG/ct1-migrate/internal/worker"
	"github.com/akrishnanDG/ct1-migrate/pkg/config"
	"github.com/google/uuid"
)

// LockName is the name of the site-wide migration lock
const LockName = "ct1-migration"

var (
	// ErrLocked is returned when another process holds the migration lock
	ErrLocked = errors.New("migration is locked by another process")
	// ErrMigrationBlocked is returned when the preview must be fixed first
	ErrMigrationBlocked = errors.New("migration blocked by preview")
	// ErrNoRun is returned when no phase is in progress
	ErrNoRun = errors.New("no migration phase in progress")
	// ErrWrongPhase is returned when an operation is not allowed in the current phase
	ErrWrongPhase = errors.New("operation not allowed in current phase")
)

// Migrator orchestrates the migration of a site's legacy events
type Migrator struct {
	config     *config.Config
	store      *store.Store
	registry   *strategy.Registry
	expander   recurrence.Expander
	validator  *validator.Validator
	workerPool *worker.Pool
	limiter    *worker.RateLimiter
	checkpoint *worker.CheckpointManager
	logger     *slog.Logger
	now        func() time.Time
	owner      string

	mu     sync.Mutex
	report *models.SiteReport
}

// Option configures a Migrator
type Option func(*Migrator)

// WithRegistry sets the strategy registry
func WithRegistry(r *strategy.Registry) Option {
	return func(m *Migrator) { m.registry = r }
}

// WithCheckpoint sets the checkpoint manager. A nil manager keeps the site
// report in memory only.
func WithCheckpoint(c *worker.CheckpointManager) Option {
	return func(m *Migrator) { m.checkpoint = c }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithRateLimiter sets the events per second throttle
func WithRateLimiter(l *worker.RateLimiter) Option {
	return func(m *Migrator) { m.limiter = l }
}

// WithValidator sets the preflight validator
func WithValidator(v *validator.Validator) Option {
	return func(m *Migrator) { m.validator = v }
}

// WithPool sets the worker pool used to prefetch posts
func WithPool(p *worker.Pool) Option {
	return func(m *Migrator) { m.workerPool = p }
}

// WithLockOwner sets the identity written to the migration lock
func WithLockOwner(owner string) Option {
	return func(m *Migrator) { m.owner = owner }
}

// New creates a new Migrator. The site report is restored from the
// checkpoint when one exists.
func New(cfg *config.Config, st *store.Store, opts ...Option) (*Migrator, error) {
	m := &Migrator{
		config:     cfg,
		store:      st,
		registry:   strategy.DefaultRegistry(),
		expander:   recurrence.NewExpander(cfg.Migration.HorizonMonths, cfg.Migration.MaxOccurrences),
		validator:  validator.New(cfg),
		workerPool: worker.NewPool(cfg),
		limiter:    worker.NewRateLimiter(cfg.Concurrency.EventsPerSecond),
		logger:     slog.Default(),
		now:        time.Now,
		owner:      uuid.NewString(),
	}
	if cfg.Checkpoint.File != "" {
		m.checkpoint = worker.NewCheckpointManager(cfg.Checkpoint.File)
	}
	for _, opt := range opts {
		opt(m)
	}

	report, err := m.restore()
	if err != nil {
		return nil, err
	}
	m.report = report
	return m, nil
}

func (m *Migrator) restore() (*models.SiteReport, error) {
	fresh := models.NewSiteReport("", models.PhasePreviewPrompt)
	if m.checkpoint == nil {
		return fresh, nil
	}
	report, err := m.checkpoint.Load()
	if errors.Is(err, os.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if _, err := models.ParsePhase(string(report.Phase)); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	m.logger.Info("resumed site report",
		"run_id", report.RunID,
		"phase", report.Phase,
		"processed", report.Processed(),
		"total", report.TotalEvents,
	)
	return report, nil
}

// Status returns the current site report. Callers must not modify it.
func (m *Migrator) Status() *models.SiteReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report
}

// Start begins a preview or a migration, resetting the site report. A
// migration requires a preview without failures unless force is set.
func (m *Migrator) Start(ctx context.Context, phase models.Phase, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch phase {
	case models.PhasePreviewInProgress:
		switch m.report.Phase {
		case models.PhaseMigrationInProgress, models.PhaseMigrationComplete,
			models.PhaseCancelInProgress, models.PhaseRevertInProgress:
			return fmt.Errorf("%w: cannot preview during %s", ErrWrongPhase, m.report.Phase)
		}
	case models.PhaseMigrationInProgress:
		if err := m.checkMigrationAllowed(force); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: cannot start %s", ErrWrongPhase, phase)
	}

	return m.withLock(ctx, func() error {
		total, err := m.store.CountEvents(ctx, m.config.Migration.PostType)
		if err != nil {
			return fmt.Errorf("failed to count events: %w", err)
		}

		report := models.NewSiteReport(uuid.NewString(), phase)
		report.StartedAt = m.now()
		report.TotalEvents = total
		report.EstimateHours(m.config.Migration.SecondsPerEvent)
		m.report = report

		m.logger.Info("started migration phase",
			"run_id", report.RunID,
			"phase", phase,
			"events", total,
			"estimated_hours", report.EstimatedTimeInHours,
		)
		return m.save()
	})
}

func (m *Migrator) checkMigrationAllowed(force bool) error {
	switch m.report.Phase {
	case models.PhaseMigrationInProgress, models.PhaseMigrationComplete,
		models.PhaseCancelInProgress, models.PhaseRevertInProgress:
		return fmt.Errorf("%w: cannot migrate during %s", ErrWrongPhase, m.report.Phase)
	}
	if force {
		return nil
	}
	if m.report.Phase != models.PhasePreviewComplete {
		return fmt.Errorf("%w: run a preview first", ErrMigrationBlocked)
	}
	if m.config.Migration.BlockOnPreviewErrors && m.report.HasErrors() {
		return fmt.Errorf("%w: %d events failed to preview", ErrMigrationBlocked, m.report.Failed())
	}
	return nil
}

// Cancel stops the phase in progress. A canceled preview is discarded; a
// canceled migration reverses every event migrated so far in the following
// batches.
func (m *Migrator) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.report.Phase {
	case models.PhasePreviewInProgress:
		return m.withLock(ctx, func() error {
			m.logger.Info("canceled preview", "run_id", m.report.RunID)
			m.report = models.NewSiteReport("", models.PhasePreviewPrompt)
			return m.save()
		})
	case models.PhaseMigrationInProgress:
		return m.withLock(ctx, func() error {
			m.beginReversal(models.PhaseCancelInProgress)
			return m.save()
		})
	}
	return fmt.Errorf("%w: cannot cancel during %s", ErrWrongPhase, m.report.Phase)
}

// Revert undoes a completed migration in the following batches
func (m *Migrator) Revert(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.report.Phase != models.PhaseMigrationComplete {
		return fmt.Errorf("%w: cannot revert during %s", ErrWrongPhase, m.report.Phase)
	}
	return m.withLock(ctx, func() error {
		m.beginReversal(models.PhaseRevertInProgress)
		return m.save()
	})
}

func (m *Migrator) beginReversal(phase models.Phase) {
	// Events that failed to migrate have nothing to reverse.
	for id, r := range m.report.EventReports {
		if !r.Succeeded() {
			delete(m.report.EventReports, id)
		}
	}
	m.report.Phase = phase
	m.report.CompletedAt = nil
	m.report.Reverted = 0
	m.report.RevertFailed = 0
	m.report.RevertCursor = 0
	m.logger.Info("reversing migration",
		"run_id", m.report.RunID,
		"phase", phase,
		"events", m.report.Succeeded(),
	)
}

// withLock runs fn holding the site-wide lock. It must not be called inside
// a store transaction.
func (m *Migrator) withLock(ctx context.Context, fn func() error) error {
	ok, err := m.store.AcquireLock(ctx, LockName, m.owner, m.config.Lock.TTL)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		// A background context so the lock is released after cancellation.
		if err := m.store.ReleaseLock(context.Background(), LockName, m.owner); err != nil {
			m.logger.Warn("failed to release lock", "error", err)
		}
	}()
	return fn()
}

func (m *Migrator) save() error {
	if m.checkpoint == nil {
		return nil
	}
	if err := m.checkpoint.Save(m.report); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	m.logger.Debug("checkpoint saved", "file", m.checkpoint.Path(), "phase", m.report.Phase)
	return nil
}

// Reset discards the site report of a finished run and removes the
// checkpoint, returning the site to preview-prompt. Migrated events are left
// as they are.
func (m *Migrator) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.report.IsRunning() {
		return fmt.Errorf("%w: cannot reset during %s", ErrWrongPhase, m.report.Phase)
	}
	return m.withLock(ctx, func() error {
		if m.checkpoint != nil {
			if err := m.checkpoint.Delete(); err != nil {
				return fmt.Errorf("failed to delete checkpoint: %w", err)
			}
		}
		m.report = models.NewSiteReport("", models.PhasePreviewPrompt)
		return nil
	})
}

// deps binds strategies to a store, which is transaction-bound inside a step
func (m *Migrator) deps(s *store.Store) strategy.Deps {
	return strategy.Deps{
		Store:    s,
		Posts:    s,
		Expander: m.expander,
		PostType: m.config.Migration.PostType,
		Logger:   m.logger,
	}
}
