package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
)

// SlugRecurring identifies the strategy for events whose recurrence is
// stored unchanged
const SlugRecurring = "tec-recurring-event-strategy"

// Recurring migrates a legacy event whose recurrence maps onto one
// normalized recurrence set. The rule-modified and exclusion-modified
// variants share it and differ in the shape they accept.
type Recurring struct {
	slug   string
	deps   Deps
	post   *models.Post
	legacy *recurrence.Legacy
	dryRun bool
}

// NewRecurring creates the strategy for a recurring event stored unchanged
func NewRecurring(ctx context.Context, d Deps, postID int64, dryRun bool) (*Recurring, error) {
	return newRecurring(ctx, d, postID, dryRun, SlugRecurring, ShapeRecurring)
}

func newRecurring(ctx context.Context, d Deps, postID int64, dryRun bool, slug string, shape Shape) (*Recurring, error) {
	post, err := loadEvent(ctx, d, postID)
	if err != nil {
		return nil, err
	}
	c := Classify(post)
	if err := expectShape(post.ID, c, shape); err != nil {
		return nil, err
	}
	return &Recurring{slug: slug, deps: d, post: post, legacy: c.Legacy, dryRun: dryRun}, nil
}

// expectShape fails unless the classified shape is the one a strategy handles
func expectShape(postID int64, c Classification, want Shape) error {
	switch {
	case c.Shape == want:
		return nil
	case c.Shape == ShapeUnknown:
		return newError(KindInvalidRecurrence, postID, "%s", c.Reason)
	default:
		return newError(KindWrongStrategy, postID, "event shape is %s, not %s", c.Shape, want)
	}
}

func (s *Recurring) Slug() string {
	return s.slug
}

func (s *Recurring) Apply(ctx context.Context, report *models.EventReport) (*models.EventReport, error) {
	e, err := EventFromPost(s.post)
	if err != nil {
		return report, wrapError(KindUpsertFailed, s.post.ID, err, "cannot build event")
	}

	p, err := planRecurrence(s.deps.Expander, e.StartDate, s.legacy.Rules, s.legacy)
	if err != nil {
		return report, wrapError(KindInvalidRecurrence, s.post.ID, err, "cannot normalize recurrence")
	}
	if p.expected == 0 {
		return report, newError(KindInvalidRecurrence, s.post.ID, "recurrence produces no occurrences")
	}
	e.RSet = p.rset.String()

	res, err := writeEvent(ctx, s.deps, e, s.dryRun)
	if err != nil {
		return report, err
	}
	if !res.skipped && res.occurrences != p.expected {
		me := newError(KindOccurrenceMismatch, s.post.ID, "legacy recurrence has %d occurrences, migrated event has %d", p.expected, res.occurrences)
		me.Count = res.occurrences
		return report, me
	}

	report.AddStrategy(s.slug).SetSingle(false).AddCreatedEvent(s.post.ID, p.expected)
	for _, m := range p.modifications {
		report.AddModification(m)
	}
	s.deps.logger().Debug("migrated recurring event", "post_id", s.post.ID, "strategy", s.slug, "occurrences", p.expected)
	return report.MarkSuccess(), nil
}

func (s *Recurring) Cancel(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Recurring) Undo(ctx context.Context) (*models.EventReport, error) {
	return s.revert(ctx)
}

func (s *Recurring) revert(ctx context.Context) (*models.EventReport, error) {
	r := reversal(s.post, s.slug)
	if err := removeEvent(ctx, s.deps, s.post.ID); err != nil {
		return r.MarkFailure(err.Error()), err
	}
	return r.MarkSuccess(), nil
}

// recurrencePlan is the normalized form of a set of legacy rules
type recurrencePlan struct {
	rset          recurrence.RSet
	expected      int
	modifications []string
}

// planRecurrence normalizes rules and the exclusions of l into a recurrence
// set producing the same starts as the legacy data
func planRecurrence(x recurrence.Expander, start time.Time, rules []*recurrence.Rule, l *recurrence.Legacy) (*recurrencePlan, error) {
	p := &recurrencePlan{}
	for _, r := range rules {
		text, err := r.Canonical(start)
		if err != nil {
			return nil, err
		}
		p.rset.RRules = append(p.rset.RRules, text)
		p.modifications = append(p.modifications, r.Modifications()...)
	}

	kept, excluded, err := x.ExpandLegacy(start, &recurrence.Legacy{
		Rules:   rules,
		ExRules: l.ExRules,
		ExDays:  l.ExDays,
	})
	if err != nil {
		return nil, err
	}
	p.rset.ExDates = excluded
	p.expected = len(kept)

	if len(l.ExRules) > 0 {
		p.modifications = append(p.modifications, fmt.Sprintf(
			"%d exclusion rule(s) replaced by %d excluded date(s)", len(l.ExRules), len(excluded)))
	}
	return p, nil
}
