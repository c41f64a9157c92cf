package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
)

// SlugSplit identifies the split strategy
const SlugSplit = "split"

// Split migrates a legacy event with several recurrence rules into one
// event per rule, grouped in a series. The first event keeps the legacy
// post; the others are created on clones of it.
type Split struct {
	deps   Deps
	post   *models.Post
	legacy *recurrence.Legacy
	dryRun bool
}

// NewSplit creates the strategy for an event with two or more rules
func NewSplit(ctx context.Context, d Deps, postID int64, dryRun bool) (*Split, error) {
	post, err := loadEvent(ctx, d, postID)
	if err != nil {
		return nil, err
	}
	c := Classify(post)
	if err := expectShape(post.ID, c, ShapeSplit); err != nil {
		return nil, err
	}
	return &Split{deps: d, post: post, legacy: c.Legacy, dryRun: dryRun}, nil
}

func (s *Split) Slug() string {
	return SlugSplit
}

func (s *Split) Apply(ctx context.Context, report *models.EventReport) (*models.EventReport, error) {
	base, err := EventFromPost(s.post)
	if err != nil {
		return report, wrapError(KindUpsertFailed, s.post.ID, err, "cannot build event")
	}

	plans := make([]*recurrencePlan, 0, len(s.legacy.Rules))
	for i, r := range s.legacy.Rules {
		p, err := planRecurrence(s.deps.Expander, base.StartDate, []*recurrence.Rule{r}, s.legacy)
		if err != nil {
			return report, wrapError(KindInvalidRecurrence, s.post.ID, err, "cannot normalize rule %d", i)
		}
		if p.expected == 0 {
			return report, newError(KindInvalidRecurrence, s.post.ID, "rule %d produces no occurrences", i)
		}
		plans = append(plans, p)
	}

	// Cloning posts cannot be undone by a rollback here, so the preview
	// only checks that every rule can be normalized.
	if s.dryRun && !s.deps.Store.TransactionsSupported() {
		report.AddStrategy(SlugSplit).SetSingle(false).AddSeries(models.SeriesRef{Title: s.post.Title})
		for i, p := range plans {
			var id int64
			if i == 0 {
				id = s.post.ID
			}
			report.AddCreatedEvent(id, p.expected)
		}
		report.AddModification(splitMessage(len(plans)))
		report.AddWarning("preview without transactions: series events were not created")
		return report.MarkSuccess(), nil
	}

	if err := s.cleanup(ctx); err != nil {
		return report, wrapError(KindSplitFailed, s.post.ID, err, "cannot remove previous series")
	}

	series, err := s.write(ctx, base, plans)
	if err != nil {
		return report, s.fail(ctx, err)
	}

	report.AddStrategy(SlugSplit).
		SetSingle(false).
		AddSeries(models.SeriesRef{SeriesID: series.SeriesID, Title: series.Title})
	for i, m := range series.Members {
		report.AddCreatedEvent(m.PostID, plans[i].expected)
	}
	report.AddModification(splitMessage(len(plans)))
	for _, p := range plans {
		for _, m := range p.modifications {
			report.AddModification(m)
		}
	}

	s.deps.logger().Debug("split recurring event", "post_id", s.post.ID, "series_id", series.SeriesID, "events", len(series.Members))
	return report.MarkSuccess(), nil
}

// write creates one event per plan and the series grouping them
func (s *Split) write(ctx context.Context, base *models.Event, plans []*recurrencePlan) (*models.Series, error) {
	series := &models.Series{OriginPostID: s.post.ID, Title: s.post.Title}
	want := 0
	for i, p := range plans {
		postID := s.post.ID
		if i > 0 {
			id, err := s.deps.Posts.ClonePost(ctx, s.post.ID)
			if err != nil {
				return series, wrapError(KindSplitFailed, s.post.ID, err, "cannot create post for rule %d", i)
			}
			postID = id
		}
		e := *base
		e.PostID = postID
		e.RSet = p.rset.String()

		res, err := writeEvent(ctx, s.deps, &e, s.dryRun)
		if err != nil {
			var me *MigrationError
			if errors.As(err, &me) && postID != s.post.ID {
				me.PostID = s.post.ID
				me.Message = fmt.Sprintf("rule %d, split post %d: %s", i, postID, me.Message)
			}
			return series, err
		}
		if res.occurrences != p.expected {
			me := newError(KindOccurrenceMismatch, s.post.ID, "rule %d has %d occurrences, migrated event %d has %d", i, p.expected, postID, res.occurrences)
			me.Count = res.occurrences
			return series, me
		}
		series.Members = append(series.Members, models.SeriesMember{PostID: postID, EventID: res.event.EventID})
		want += p.expected
	}

	if _, err := s.deps.Store.CreateSeries(ctx, series); err != nil {
		return series, wrapError(KindSplitFailed, s.post.ID, err, "cannot create series")
	}

	got := 0
	for _, m := range series.Members {
		n, err := s.deps.Store.CountOccurrences(ctx, m.PostID)
		if err != nil {
			return series, wrapError(KindSplitFailed, s.post.ID, err, "cannot count occurrences of %d", m.PostID)
		}
		got += n
	}
	if got != want {
		me := newError(KindOccurrenceMismatch, s.post.ID, "series has %d occurrences, expected %d", got, want)
		me.Count = got
		return series, me
	}
	return series, nil
}

// fail handles a failed split. Inside a transaction the caller rolls back;
// otherwise the written members are removed here and a failed removal is
// reported as an inconsistency.
func (s *Split) fail(ctx context.Context, err error) error {
	if s.deps.Store.TransactionsSupported() {
		return err
	}
	if cerr := s.cleanupMembers(ctx); cerr != nil {
		return wrapError(KindSplitFailed, s.post.ID, errors.Join(err, cerr), "split left partially applied")
	}
	return err
}

func (s *Split) Cancel(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Split) Undo(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Split) revert(ctx context.Context) (*models.EventReport, error) {
	r := reversal(s.post, SlugSplit)
	if err := s.cleanup(ctx); err != nil {
		me := wrapError(KindRevertFailed, s.post.ID, err, "cannot remove series")
		return r.MarkFailure(me.Error()), me
	}
	return r.MarkSuccess(), nil
}

// cleanup removes the series of the post, its cloned posts and every event
// written for it. It is a no-op when nothing was written.
func (s *Split) cleanup(ctx context.Context) error {
	series, err := s.deps.Store.FindSeries(ctx, s.post.ID)
	if err != nil {
		return err
	}
	if series != nil {
		for _, m := range series.Members {
			if err := s.removeMember(ctx, m.PostID); err != nil {
				return err
			}
		}
		if err := s.deps.Store.DeleteSeries(ctx, s.post.ID); err != nil {
			return err
		}
	}
	return s.cleanupMembers(ctx)
}

// cleanupMembers removes the origin event and clones not yet grouped in a
// series
func (s *Split) cleanupMembers(ctx context.Context) error {
	ids, err := s.deps.Posts.ListClones(ctx, s.post.ID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.removeMember(ctx, id); err != nil {
			return err
		}
	}
	return removeEvent(ctx, s.deps, s.post.ID)
}

func (s *Split) removeMember(ctx context.Context, postID int64) error {
	if err := removeEvent(ctx, s.deps, postID); err != nil {
		return err
	}
	if postID == s.post.ID {
		return nil
	}
	if err := s.deps.Posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete cloned post %d: %w", postID, err)
	}
	return nil
}

func splitMessage(n int) string {
	return fmt.Sprintf("split into %d events grouped in a series", n)
}
