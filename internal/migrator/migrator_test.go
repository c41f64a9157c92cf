package migrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
	"github.com/akrishnanDG/ct1-migrate/internal/store"
	"github.com/akrishnanDG/ct1-migrate/internal/strategy"
	"github.com/akrishnanDG/ct1-migrate/pkg/config"
)

var threeSeries = []string{
	"FREQ=WEEKLY;BYDAY=MO;COUNT=4",
	"FREQ=WEEKLY;BYDAY=WE;COUNT=3",
	"FREQ=MONTHLY;BYMONTHDAY=20;COUNT=2",
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Migration.BatchSize = 2
	cfg.Concurrency.Workers = 2
	cfg.Concurrency.RetryAttempts = 0
	cfg.Concurrency.RetryDelay = time.Millisecond
	cfg.Checkpoint.File = filepath.Join(t.TempDir(), "checkpoint.json")
	return cfg
}

func setupStore(t *testing.T, transactions bool) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", store.Options{Transactions: transactions})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMigrator(t *testing.T, cfg *config.Config, s *store.Store, opts ...Option) *Migrator {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	m, err := New(cfg, s, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func rules(t *testing.T, rr ...string) string {
	t.Helper()
	var m recurrence.Meta
	for _, r := range rr {
		m.Rules = append(m.Rules, recurrence.RuleMeta{RRule: r})
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	return string(b)
}

func insertEvent(t *testing.T, s *store.Store, id int64, recurrenceRaw string) {
	t.Helper()
	meta := map[string]string{
		models.MetaStartDate: "2026-01-05 10:00:00",
		models.MetaEndDate:   "2026-01-05 11:30:00",
		models.MetaTimezone:  "UTC",
	}
	if recurrenceRaw != "" {
		meta[models.MetaRecurrence] = recurrenceRaw
	}
	_, err := s.InsertPost(context.Background(), &models.Post{
		ID:    id,
		Type:  models.DefaultPostType,
		Title: "Event",
		Meta:  meta,
	})
	if err != nil {
		t.Fatalf("insert post %d: %v", id, err)
	}
}

// seedSite inserts a single, a recurring and a split event
func seedSite(t *testing.T, s *store.Store) {
	t.Helper()
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 43, rules(t, "FREQ=DAILY;COUNT=3"))
	insertEvent(t, s, 44, rules(t, threeSeries...))
}

func runAll(t *testing.T, m *Migrator) {
	t.Helper()
	for i := 0; i < 20; i++ {
		res, err := m.RunBatch(context.Background())
		if err != nil {
			t.Fatalf("RunBatch() error = %v", err)
		}
		if res.Done {
			return
		}
	}
	t.Fatal("phase did not complete")
}

func occurrences(t *testing.T, s *store.Store, postID int64) int {
	t.Helper()
	n, err := s.CountOccurrences(context.Background(), postID)
	if err != nil {
		t.Fatalf("count occurrences: %v", err)
	}
	return n
}

func TestPreview_RollsBack(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	m := newTestMigrator(t, newTestConfig(t), s)

	if err := m.Start(context.Background(), models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Phase != models.PhasePreviewComplete {
		t.Errorf("Phase = %s, want preview-complete", report.Phase)
	}
	if report.TotalEvents != 3 || report.Succeeded() != 3 {
		t.Errorf("total/succeeded = %d/%d, want 3/3", report.TotalEvents, report.Succeeded())
	}

	wantStrategy := map[int64]string{
		42: strategy.SlugSingle,
		43: strategy.SlugRecurring,
		44: strategy.SlugSplit,
	}
	for id, slug := range wantStrategy {
		r, ok := report.Report(id)
		if !ok {
			t.Fatalf("no report for post %d", id)
		}
		if r.Strategy() != slug {
			t.Errorf("post %d strategy = %q, want %q", id, r.Strategy(), slug)
		}
		if got := occurrences(t, s, id); got != 0 {
			t.Errorf("post %d has %d occurrences after preview, want 0", id, got)
		}
	}
	if r, _ := report.Report(44); len(r.CreatedEvents) != 3 {
		t.Errorf("split preview created events = %d, want 3", len(r.CreatedEvents))
	}
}

func TestPreview_WithoutTransactions(t *testing.T) {
	s := setupStore(t, false)
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 43, rules(t, "FREQ=DAILY;COUNT=3"))
	m := newTestMigrator(t, newTestConfig(t), s)

	if err := m.Start(context.Background(), models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Succeeded() != 2 {
		t.Errorf("succeeded = %d, want 2", report.Succeeded())
	}
	for _, id := range []int64{42, 43} {
		e, err := s.FindEvent(context.Background(), id)
		if err != nil {
			t.Fatalf("FindEvent() error = %v", err)
		}
		if e != nil {
			t.Errorf("post %d left an event after a dry run", id)
		}
	}
}

func TestMigrate(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	m := newTestMigrator(t, newTestConfig(t), s)
	ctx := context.Background()

	if err := m.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start(preview) error = %v", err)
	}
	runAll(t, m)
	if err := m.Start(ctx, models.PhaseMigrationInProgress, false); err != nil {
		t.Fatalf("Start(migration) error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Phase != models.PhaseMigrationComplete {
		t.Errorf("Phase = %s, want migration-complete", report.Phase)
	}
	if report.Failed() != 0 {
		t.Errorf("failed = %d, want 0", report.Failed())
	}
	if got := occurrences(t, s, 42); got != 1 {
		t.Errorf("post 42 occurrences = %d, want 1", got)
	}
	if got := occurrences(t, s, 43); got != 3 {
		t.Errorf("post 43 occurrences = %d, want 3", got)
	}

	series, err := s.FindSeries(ctx, 44)
	if err != nil || series == nil {
		t.Fatalf("FindSeries() = %v, %v", series, err)
	}
	if len(series.Members) != 3 {
		t.Errorf("series members = %d, want 3", len(series.Members))
	}
}

func TestMigrate_RecurringEventWithSingleStrategy(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 99, rules(t, "FREQ=DAILY;COUNT=3"))

	registry := strategy.NewRegistry()
	err := registry.Register(strategy.Variant{
		Slug:    strategy.SlugSingle,
		Matches: func(strategy.Classification) bool { return true },
		New: func(ctx context.Context, d strategy.Deps, id int64, dry bool) (strategy.Strategy, error) {
			return strategy.NewSingle(ctx, d, id, dry)
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m := newTestMigrator(t, newTestConfig(t), s, WithRegistry(registry))
	if err := m.Start(context.Background(), models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	r, ok := report.Report(99)
	if !ok {
		t.Fatal("no report for post 99")
	}
	if !r.Failed() {
		t.Errorf("post 99 status = %s, want failure", r.Status)
	}
	if !strings.Contains(r.Error, "recurring event") {
		t.Errorf("post 99 error = %q, want recurring event failure", r.Error)
	}
	if got := occurrences(t, s, 99); got != 0 {
		t.Errorf("post 99 occurrences = %d, want 0", got)
	}
	if r, _ := report.Report(42); !r.Succeeded() {
		t.Errorf("post 42 status = %s, want success", r.Status)
	}
}

type panicStrategy struct{}

func (panicStrategy) Slug() string { return "panics" }

func (panicStrategy) Apply(context.Context, *models.EventReport) (*models.EventReport, error) {
	panic("boom")
}

func (panicStrategy) Cancel(context.Context) (*models.EventReport, error) { return nil, nil }
func (panicStrategy) Undo(context.Context) (*models.EventReport, error)   { return nil, nil }

func TestRunBatch_IsolatesPanics(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 43, "")
	insertEvent(t, s, 45, "")

	registry := strategy.NewRegistry()
	err := registry.Register(strategy.Variant{
		Slug:    "panics-on-43",
		Matches: func(strategy.Classification) bool { return true },
		New: func(ctx context.Context, d strategy.Deps, id int64, dry bool) (strategy.Strategy, error) {
			if id == 43 {
				return panicStrategy{}, nil
			}
			return strategy.NewSingle(ctx, d, id, dry)
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m := newTestMigrator(t, newTestConfig(t), s, WithRegistry(registry))
	if err := m.Start(context.Background(), models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Succeeded() != 2 || report.Failed() != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", report.Succeeded(), report.Failed())
	}
	r, _ := report.Report(43)
	if !strings.Contains(r.Error, "boom") {
		t.Errorf("post 43 error = %q, want panic value", r.Error)
	}
	if got := occurrences(t, s, 45); got != 1 {
		t.Errorf("post 45 occurrences = %d, want 1", got)
	}
}

func TestStart_MigrationBlocked(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 50, "{{not json")
	m := newTestMigrator(t, newTestConfig(t), s)
	ctx := context.Background()

	if err := m.Start(ctx, models.PhaseMigrationInProgress, false); !errors.Is(err, ErrMigrationBlocked) {
		t.Fatalf("Start() before preview error = %v, want ErrMigrationBlocked", err)
	}

	if err := m.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start(preview) error = %v", err)
	}
	runAll(t, m)

	r, _ := m.Status().Report(50)
	if r.Strategy() != strategy.SlugUnknown || !r.Failed() {
		t.Errorf("post 50 = %s/%s, want failed unknown", r.Strategy(), r.Status)
	}

	if err := m.Start(ctx, models.PhaseMigrationInProgress, false); !errors.Is(err, ErrMigrationBlocked) {
		t.Fatalf("Start() after failed preview error = %v, want ErrMigrationBlocked", err)
	}
	if err := m.Start(ctx, models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start(force) error = %v", err)
	}
}

func TestCancel_ReversesMigratedEvents(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	cfg := newTestConfig(t)
	cfg.Migration.BatchSize = 1
	m := newTestMigrator(t, cfg, s)
	ctx := context.Background()

	if err := m.Start(ctx, models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := m.RunBatch(ctx); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if got := occurrences(t, s, 42); got != 1 {
		t.Fatalf("post 42 occurrences = %d, want 1", got)
	}

	if err := m.Cancel(ctx); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Phase != models.PhaseCancelComplete {
		t.Errorf("Phase = %s, want cancel-complete", report.Phase)
	}
	if report.Reverted != 1 || report.RevertFailed != 0 {
		t.Errorf("reverted/failed = %d/%d, want 1/0", report.Reverted, report.RevertFailed)
	}
	if len(report.EventReports) != 0 {
		t.Errorf("event reports = %d, want reset", len(report.EventReports))
	}
	if e, _ := s.FindEvent(ctx, 42); e != nil {
		t.Error("post 42 still has an event after cancel")
	}
}

func TestRevert_UndoesCompletedMigration(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	m := newTestMigrator(t, newTestConfig(t), s)
	ctx := context.Background()

	if err := m.Revert(ctx); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("Revert() before migration error = %v, want ErrWrongPhase", err)
	}

	if err := m.Start(ctx, models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)
	if err := m.Revert(ctx); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Phase != models.PhaseRevertComplete {
		t.Errorf("Phase = %s, want revert-complete", report.Phase)
	}
	if report.Reverted != 3 {
		t.Errorf("reverted = %d, want 3", report.Reverted)
	}
	for _, id := range []int64{42, 43, 44} {
		if got := occurrences(t, s, id); got != 0 {
			t.Errorf("post %d occurrences = %d after revert, want 0", id, got)
		}
	}
	clones, err := s.ListClones(ctx, 44)
	if err != nil {
		t.Fatalf("ListClones() error = %v", err)
	}
	if len(clones) != 0 {
		t.Errorf("clones = %v after revert, want none", clones)
	}
	if post, _ := s.GetPost(ctx, 44); post == nil {
		t.Error("origin post 44 deleted by revert")
	}
}

func TestRunBatch_ResumesFromCheckpoint(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	cfg := newTestConfig(t)
	cfg.Migration.BatchSize = 1
	ctx := context.Background()

	first := newTestMigrator(t, cfg, s)
	if err := first.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := first.RunBatch(ctx); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	second := newTestMigrator(t, cfg, s)
	report := second.Status()
	if report.RunID != first.Status().RunID {
		t.Errorf("RunID = %q, want %q", report.RunID, first.Status().RunID)
	}
	if report.Cursor != 42 || report.Processed() != 1 {
		t.Errorf("cursor/processed = %d/%d, want 42/1", report.Cursor, report.Processed())
	}

	runAll(t, second)
	if got := second.Status().Processed(); got != 3 {
		t.Errorf("processed = %d, want 3", got)
	}
}

func TestRunBatch_Locked(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	cfg := newTestConfig(t)
	m := newTestMigrator(t, cfg, s)
	ctx := context.Background()

	if err := m.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ok, err := s.AcquireLock(ctx, LockName, "someone-else", time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireLock() = %v, %v", ok, err)
	}
	if _, err := m.RunBatch(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("RunBatch() error = %v, want ErrLocked", err)
	}

	if err := s.ReleaseLock(ctx, LockName, "someone-else"); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	if _, err := m.RunBatch(ctx); err != nil {
		t.Fatalf("RunBatch() after release error = %v", err)
	}
}

func TestRunBatch_NoRun(t *testing.T) {
	m := newTestMigrator(t, newTestConfig(t), setupStore(t, true))

	if _, err := m.RunBatch(context.Background()); !errors.Is(err, ErrNoRun) {
		t.Fatalf("RunBatch() error = %v, want ErrNoRun", err)
	}
}

func TestStart_Estimate(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	cfg := newTestConfig(t)
	cfg.Migration.SecondsPerEvent = 3600
	m := newTestMigrator(t, cfg, s)

	if err := m.Start(context.Background(), models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := m.Status().EstimatedTimeInHours; got != 3 {
		t.Errorf("EstimatedTimeInHours = %v, want 3", got)
	}
}

func TestReset(t *testing.T) {
	s := setupStore(t, true)
	seedSite(t, s)
	cfg := newTestConfig(t)
	m := newTestMigrator(t, cfg, s)
	ctx := context.Background()

	if err := m.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Reset(ctx); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("Reset() during preview error = %v, want ErrWrongPhase", err)
	}

	runAll(t, m)
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got := m.Status().Phase; got != models.PhasePreviewPrompt {
		t.Errorf("phase = %s, want %s", got, models.PhasePreviewPrompt)
	}
	if _, err := os.Stat(cfg.Checkpoint.File); !os.IsNotExist(err) {
		t.Errorf("checkpoint still present: %v", err)
	}
}

// cancelAfterApply cancels the step's context once the wrapped strategy
// applied, so the transaction cannot commit
type cancelAfterApply struct {
	strategy.Strategy
	cancel context.CancelFunc
}

func (s cancelAfterApply) Apply(ctx context.Context, r *models.EventReport) (*models.EventReport, error) {
	r, err := s.Strategy.Apply(ctx, r)
	s.cancel()
	return r, err
}

func TestMigrate_CommitFailureRecordsFailure(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := strategy.NewRegistry()
	err := registry.Register(strategy.Variant{
		Slug:    "cancels-before-commit",
		Matches: func(strategy.Classification) bool { return true },
		New: func(ctx context.Context, d strategy.Deps, id int64, dry bool) (strategy.Strategy, error) {
			single, err := strategy.NewSingle(ctx, d, id, dry)
			if err != nil {
				return nil, err
			}
			return cancelAfterApply{Strategy: single, cancel: cancel}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m := newTestMigrator(t, newTestConfig(t), s, WithRegistry(registry))
	if err := m.Start(ctx, models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := m.RunBatch(ctx); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	r, ok := m.Status().Report(42)
	if !ok {
		t.Fatal("no report for post 42")
	}
	if !r.Failed() || r.Error == "" {
		t.Errorf("report status = %s, error = %q, want failure", r.Status, r.Error)
	}
	if r.Strategy() != strategy.SlugSingle {
		t.Errorf("strategy = %q, want %q", r.Strategy(), strategy.SlugSingle)
	}
	if got := occurrences(t, s, 42); got != 0 {
		t.Errorf("occurrences = %d, want 0 after failed commit", got)
	}
}

// undoFails migrates like the wrapped strategy but cannot undo post 43
type undoFails struct {
	strategy.Strategy
	postID int64
}

const slugUndoFails = "undo-fails-on-43"

func (s undoFails) Slug() string { return slugUndoFails }

func (s undoFails) Apply(ctx context.Context, r *models.EventReport) (*models.EventReport, error) {
	return s.Strategy.Apply(ctx, r.AddStrategy(slugUndoFails))
}

func (s undoFails) Undo(ctx context.Context) (*models.EventReport, error) {
	if s.postID == 43 {
		return nil, errors.New("storage unavailable")
	}
	return s.Strategy.Undo(ctx)
}

func TestRevert_KeepsReversalFailures(t *testing.T) {
	s := setupStore(t, true)
	insertEvent(t, s, 42, "")
	insertEvent(t, s, 43, "")
	ctx := context.Background()

	registry := strategy.NewRegistry()
	err := registry.Register(strategy.Variant{
		Slug:    slugUndoFails,
		Matches: func(strategy.Classification) bool { return true },
		New: func(ctx context.Context, d strategy.Deps, id int64, dry bool) (strategy.Strategy, error) {
			single, err := strategy.NewSingle(ctx, d, id, dry)
			if err != nil {
				return nil, err
			}
			return undoFails{Strategy: single, postID: id}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m := newTestMigrator(t, newTestConfig(t), s, WithRegistry(registry))
	if err := m.Start(ctx, models.PhaseMigrationInProgress, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)
	if err := m.Revert(ctx); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	runAll(t, m)

	report := m.Status()
	if report.Phase != models.PhaseRevertComplete {
		t.Errorf("Phase = %s, want revert-complete", report.Phase)
	}
	if report.Reverted != 1 || report.RevertFailed != 1 {
		t.Errorf("reverted/failed = %d/%d, want 1/1", report.Reverted, report.RevertFailed)
	}

	r, ok := report.Report(43)
	if !ok {
		t.Fatal("reversal failure of post 43 missing from the report")
	}
	if !r.Failed() || !strings.Contains(r.Error, "storage unavailable") {
		t.Errorf("post 43 report = %s/%q, want failure with cause", r.Status, r.Error)
	}
	if r.Strategy() != slugUndoFails {
		t.Errorf("post 43 strategy = %q, want %q", r.Strategy(), slugUndoFails)
	}
	if _, ok := report.Report(42); ok {
		t.Error("reverted post 42 should not keep a report")
	}
	if got := occurrences(t, s, 43); got != 1 {
		t.Errorf("post 43 occurrences = %d, want 1", got)
	}

	// The failure survives a restart.
	restored := newTestMigrator(t, m.config, s, WithRegistry(registry))
	if _, ok := restored.Status().Report(43); !ok {
		t.Error("reversal failure not checkpointed")
	}
}

func TestPreview_WithoutTransactionsKeepsMigratedEvent(t *testing.T) {
	s := setupStore(t, false)
	insertEvent(t, s, 42, "")
	ctx := context.Background()

	// A migrated event that no longer matches its legacy data.
	start := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	if _, err := s.UpsertEvent(ctx, &models.Event{
		PostID:       42,
		StartDate:    start,
		EndDate:      start.Add(time.Hour),
		StartDateUTC: start,
		EndDateUTC:   start.Add(time.Hour),
		Timezone:     "UTC",
		Duration:     3600,
	}); err != nil {
		t.Fatalf("UpsertEvent() error = %v", err)
	}

	m := newTestMigrator(t, newTestConfig(t), s)
	if err := m.Start(ctx, models.PhasePreviewInProgress, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runAll(t, m)

	r, _ := m.Status().Report(42)
	if r == nil || !r.Succeeded() || r.Strategy() != strategy.SlugSingle {
		t.Fatalf("report = %+v, want single-event success", r)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a warning for the skipped preview")
	}

	e, err := s.FindEvent(ctx, 42)
	if err != nil || e == nil {
		t.Fatalf("FindEvent() = %v, %v", e, err)
	}
	if !e.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, preview overwrote the migrated event", e.StartDate)
	}
	if got := occurrences(t, s, 42); got != 0 {
		t.Errorf("occurrences = %d, preview wrote occurrences", got)
	}
}
