package strategy

import (
	"context"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// SlugSingle identifies the single event strategy
const SlugSingle = "tec-single-event-strategy"

// Single migrates a legacy event without recurrence into one event with one
// occurrence
type Single struct {
	deps   Deps
	post   *models.Post
	dryRun bool
}

// NewSingle creates the strategy for a non-recurring event post
func NewSingle(ctx context.Context, d Deps, postID int64, dryRun bool) (*Single, error) {
	post, err := loadEvent(ctx, d, postID)
	if err != nil {
		return nil, err
	}
	if post.HasRecurrence() {
		return nil, newError(KindWrongStrategy, postID, "recurring event cannot be migrated as a single event")
	}
	return &Single{deps: d, post: post, dryRun: dryRun}, nil
}

func (s *Single) Slug() string {
	return SlugSingle
}

func (s *Single) Apply(ctx context.Context, report *models.EventReport) (*models.EventReport, error) {
	e, err := EventFromPost(s.post)
	if err != nil {
		return report, wrapError(KindUpsertFailed, s.post.ID, err, "cannot build event")
	}

	res, err := writeEvent(ctx, s.deps, e, s.dryRun)
	if err != nil {
		return report, err
	}
	if res.skipped {
		return report.AddStrategy(SlugSingle).SetSingle(true).MarkSuccess(), nil
	}
	if res.occurrences != 1 {
		me := newError(KindUnexpectedOccurrenceCount, s.post.ID, "expected 1 occurrence, found %d", res.occurrences)
		me.Count = res.occurrences
		return report, me
	}

	s.deps.logger().Debug("migrated single event", "post_id", s.post.ID, "event_id", res.event.EventID)
	return report.
		AddStrategy(SlugSingle).
		SetSingle(true).
		AddCreatedEvent(s.post.ID, 1).
		MarkSuccess(), nil
}

func (s *Single) Cancel(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Single) Undo(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Single) revert(ctx context.Context) (*models.EventReport, error) {
	r := reversal(s.post, SlugSingle)
	if err := removeEvent(ctx, s.deps, s.post.ID); err != nil {
		return r.MarkFailure(err.Error()), err
	}
	return r.SetSingle(true).MarkSuccess(), nil
}
