package strategy

import (
	"context"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// SlugUnknown identifies the fallback strategy
const SlugUnknown = "unknown"

// Unknown is selected for events no other strategy can migrate. Apply always
// fails so the event shows up as a failure in the report.
type Unknown struct {
	deps   Deps
	post   *models.Post
	reason string
}

// NewUnknown creates the fallback strategy for an event post
func NewUnknown(ctx context.Context, d Deps, postID int64, dryRun bool) (*Unknown, error) {
	post, err := loadEvent(ctx, d, postID)
	if err != nil {
		return nil, err
	}
	reason := Classify(post).Reason
	if reason == "" {
		reason = "no strategy matches the event"
	}
	return &Unknown{deps: d, post: post, reason: reason}, nil
}

func (s *Unknown) Slug() string {
	return SlugUnknown
}

func (s *Unknown) Apply(ctx context.Context, report *models.EventReport) (*models.EventReport, error) {
	report.AddStrategy(SlugUnknown)
	return report, newError(KindUnknownStrategy, s.post.ID, "cannot migrate event: %s", s.reason)
}

// Cancel removes any event left for the post by an earlier run
func (s *Unknown) Cancel(ctx context.Context) (*models.EventReport, error) {
	r := reversal(s.post, SlugUnknown)
	if err := removeEvent(ctx, s.deps, s.post.ID); err != nil {
		return r.MarkFailure(err.Error()), err
	}
	return r.MarkSuccess(), nil
}

func (s *Unknown) Undo(ctx context.Context) (*models.EventReport, error) {
	return s.Cancel(ctx)
}
