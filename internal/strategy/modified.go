package strategy

import (
	"context"
)

// Slugs of the strategies that rewrite recurrence text
const (
	SlugModifiedRules      = "modified-rules"
	SlugModifiedExclusions = "modified-exclusions"
)

// NewRuleModified creates the strategy for an event with one rule the
// custom tables cannot store verbatim. The rule is rewritten without
// changing the dates it produces.
func NewRuleModified(ctx context.Context, d Deps, postID int64, dryRun bool) (*Recurring, error) {
	return newRecurring(ctx, d, postID, dryRun, SlugModifiedRules, ShapeRuleModified)
}

// NewExclusionModified creates the strategy for an event with one rule and
// exclusion rules. The exclusion rules become explicit excluded dates.
func NewExclusionModified(ctx context.Context, d Deps, postID int64, dryRun bool) (*Recurring, error) {
	return newRecurring(ctx, d, postID, dryRun, SlugModifiedExclusions, ShapeExclusionModified)
}
