package migrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/store"
)

// BatchResult summarizes one RunBatch call
type BatchResult struct {
	Phase     models.Phase
	Processed int
	Succeeded int
	Failed    int
	Done      bool
}

type handler func(m *Migrator, ctx context.Context, res *BatchResult) error

var handlers = map[models.Phase]handler{
	models.PhasePreviewInProgress:   (*Migrator).migrateBatch,
	models.PhaseMigrationInProgress: (*Migrator).migrateBatch,
	models.PhaseCancelInProgress:    (*Migrator).reverseBatch,
	models.PhaseRevertInProgress:    (*Migrator).reverseBatch,
}

// RunBatch processes the next batch of the phase in progress. Per-event
// failures are recorded on the site report; only bookkeeping failures are
// returned.
func (m *Migrator) RunBatch(ctx context.Context) (*BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := handlers[m.report.Phase]
	if !ok {
		return nil, fmt.Errorf("%w: phase is %s", ErrNoRun, m.report.Phase)
	}

	res := &BatchResult{Phase: m.report.Phase}
	err := m.withLock(ctx, func() error {
		herr := h(m, ctx, res)
		// Whatever was processed is kept, even when the batch stopped early.
		if err := m.save(); err != nil {
			return err
		}
		return herr
	})
	if err != nil {
		return res, err
	}
	res.Phase = m.report.Phase
	return res, nil
}

func (m *Migrator) batchSize() int {
	if m.config.Migration.BatchSize < 1 {
		return 1
	}
	return m.config.Migration.BatchSize
}

func (m *Migrator) migrateBatch(ctx context.Context, res *BatchResult) error {
	report := m.report
	dryRun := report.Phase.DryRun()
	size := m.batchSize()

	ids, err := m.store.ListEventIDs(ctx, m.config.Migration.PostType, report.Cursor, size)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	posts, loadErrs := m.workerPool.Prefetch(ctx, ids, m.store.GetPost)
	for i, id := range ids {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		er := m.migrateEvent(ctx, id, posts[i], loadErrs[i], dryRun)
		report.Record(er)
		report.Cursor = id
		res.Processed++
		if er.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
			m.logger.Warn("event migration failed",
				"post_id", id,
				"strategy", er.Strategy(),
				"error", er.Error,
			)
		}
	}

	report.MeasureAverage()
	report.EstimateHours(m.config.Migration.SecondsPerEvent)

	if len(ids) < size {
		report.Complete(m.now())
		res.Done = true
		m.logger.Info("migration phase complete",
			"run_id", report.RunID,
			"phase", report.Phase,
			"succeeded", report.Succeeded(),
			"failed", report.Failed(),
		)
	}
	return nil
}

// migrateEvent runs one event in a failure-isolated step
func (m *Migrator) migrateEvent(ctx context.Context, postID int64, post *models.Post, loadErr error, dryRun bool) (report *models.EventReport) {
	report = models.NewEventReport(post)
	report.PostID = postID

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("strategy panicked", "post_id", postID, "panic", r)
			report.MarkFailure(fmt.Sprintf("post %d: unexpected failure: %v", postID, r))
		}
	}()

	if loadErr != nil {
		return report.MarkFailure(fmt.Sprintf("post %d: cannot load post: %v", postID, loadErr))
	}
	if post == nil {
		return report.MarkFailure(fmt.Sprintf("post %d: post does not exist", postID))
	}

	errs, warns := m.validator.ValidatePost(post)
	for _, w := range warns {
		report.AddWarning(w.Message)
	}
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return report.MarkFailure(fmt.Sprintf("post %d: %s", postID, strings.Join(msgs, "; ")))
	}

	if !m.store.TransactionsSupported() {
		if err := m.applyWithoutTx(ctx, post, report, dryRun); err != nil {
			return report.MarkFailure(err.Error())
		}
		return report.MarkSuccess()
	}

	// The strategy writes a scratch report. It is kept only once the
	// transaction it describes has committed or, in a dry run, rolled back.
	scratch := *report
	err := m.store.InTx(ctx, !dryRun, func(s *store.Store) error {
		return m.apply(ctx, s, post, &scratch, dryRun)
	})
	if err != nil {
		for _, slug := range scratch.Strategies {
			report.AddStrategy(slug)
		}
		return report.MarkFailure(err.Error())
	}
	scratch.Status = models.EventStatusPending
	*report = scratch
	return report.MarkSuccess()
}

func (m *Migrator) apply(ctx context.Context, s *store.Store, post *models.Post, report *models.EventReport, dryRun bool) error {
	strat, err := m.registry.Build(ctx, m.deps(s), post, dryRun)
	if err != nil {
		return err
	}
	_, err = strat.Apply(ctx, report)
	return err
}

// applyWithoutTx runs a strategy against a store that cannot roll back.
// Writes of a dry run, and of a failed migration, are reversed with Cancel
// unless the event was migrated before this step.
func (m *Migrator) applyWithoutTx(ctx context.Context, post *models.Post, report *models.EventReport, dryRun bool) error {
	existing, err := m.store.FindEvent(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("post %d: %w", post.ID, err)
	}

	// Writes over an event migrated earlier cannot be told apart from it,
	// so such a preview only reports the strategy.
	if dryRun && existing != nil {
		v, _ := m.registry.Select(post)
		report.AddStrategy(v.Slug).
			AddWarning("preview without transactions: event already migrated, strategy not run")
		return nil
	}

	strat, err := m.registry.Build(ctx, m.deps(m.store), post, dryRun)
	if err != nil {
		return err
	}
	_, applyErr := strat.Apply(ctx, report)

	if existing == nil && (dryRun || applyErr != nil) {
		if _, err := strat.Cancel(ctx); err != nil {
			m.logger.Warn("failed to reverse event writes", "post_id", post.ID, "strategy", strat.Slug(), "error", err)
			report.AddWarning(fmt.Sprintf("writes could not be reversed: %v", err))
		}
	}
	return applyErr
}

func (m *Migrator) reverseBatch(ctx context.Context, res *BatchResult) error {
	report := m.report
	size := m.batchSize()

	ids := report.SuccessfulPostIDs(report.RevertCursor)
	done := len(ids) <= size
	if !done {
		ids = ids[:size]
	}

	for _, id := range ids {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		er, _ := report.Report(id)
		slug := er.Strategy()
		if err := m.reverseEvent(ctx, id, slug); err != nil {
			report.RevertFailed++
			res.Failed++
			// The event stays migrated; its report is replaced by the
			// reversal failure, which outlives the phase.
			failure := models.NewEventReport(nil)
			failure.PostID = id
			failure.Title = er.Title
			report.Record(failure.AddStrategy(slug).MarkFailure(fmt.Sprintf("reversal failed: %v", err)))
			m.logger.Warn("event reversal failed", "post_id", id, "strategy", slug, "error", err)
		} else {
			report.Reverted++
			res.Succeeded++
		}
		report.RevertCursor = id
		res.Processed++
	}

	if done {
		m.finishReversal()
		res.Done = true
	}
	return nil
}

// reverseEvent runs Cancel or Undo of the strategy recorded for an event
func (m *Migrator) reverseEvent(ctx context.Context, postID int64, slug string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("post %d: unexpected failure: %v", postID, r)
		}
	}()

	undo := m.report.Phase == models.PhaseRevertInProgress
	return m.store.InTx(ctx, true, func(s *store.Store) error {
		strat, err := m.registry.BuildBySlug(ctx, slug, m.deps(s), postID, false)
		if err != nil {
			return err
		}
		if undo {
			_, err = strat.Undo(ctx)
		} else {
			_, err = strat.Cancel(ctx)
		}
		return err
	})
}

// finishReversal resets the site report once every event was reversed
func (m *Migrator) finishReversal() {
	old := m.report
	fresh := models.NewSiteReport(old.RunID, old.Phase)
	fresh.StartedAt = old.StartedAt
	fresh.TotalEvents = old.TotalEvents
	fresh.Reverted = old.Reverted
	fresh.RevertFailed = old.RevertFailed
	for _, r := range old.EventReports {
		if r.Failed() {
			fresh.Record(r)
		}
	}
	fresh.Complete(m.now())
	m.report = fresh

	m.logger.Info("migration reversed",
		"run_id", fresh.RunID,
		"phase", fresh.Phase,
		"reverted", fresh.Reverted,
		"failed", fresh.RevertFailed,
	)
}
