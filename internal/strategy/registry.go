package strategy

import (
	"context"
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
)

// Shape is the recurrence shape of a legacy event
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeSingle
	ShapeRecurring
	ShapeSplit
	ShapeRuleModified
	ShapeExclusionModified
)

var shapeNames = map[Shape]string{
	ShapeUnknown:           "unknown",
	ShapeSingle:            "single",
	ShapeRecurring:         "recurring",
	ShapeSplit:             "split",
	ShapeRuleModified:      "rule-modified",
	ShapeExclusionModified: "exclusion-modified",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Classification is the result of inspecting a legacy event
type Classification struct {
	Shape  Shape
	Legacy *recurrence.Legacy
	// Reason explains an unknown shape
	Reason string
}

// Classify maps every legacy event to exactly one shape:
//
//  1. no recurrence meta: single
//  2. undecodable meta, no rules or an unparsable rule: unknown
//  3. two or more rules: split
//  4. one rule the custom tables cannot store verbatim: rule-modified
//  5. one rule with exclusion rules: exclusion-modified
//  6. otherwise: recurring
func Classify(post *models.Post) Classification {
	raw := post.Recurrence()
	if raw == "" {
		return Classification{Shape: ShapeSingle}
	}
	l, err := recurrence.Parse(raw)
	if err != nil {
		return Classification{Shape: ShapeUnknown, Reason: err.Error()}
	}
	if l == nil || len(l.Rules) == 0 {
		return Classification{Shape: ShapeUnknown, Reason: "recurrence has no rules"}
	}

	c := Classification{Legacy: l}
	switch {
	case len(l.Rules) >= 2:
		c.Shape = ShapeSplit
	case l.RulesNeedRewrite():
		c.Shape = ShapeRuleModified
	case l.HasExclusionRules():
		c.Shape = ShapeExclusionModified
	default:
		c.Shape = ShapeRecurring
	}
	return c
}

// Constructor builds a strategy for a post
type Constructor func(ctx context.Context, d Deps, postID int64, dryRun bool) (Strategy, error)

// Variant is a strategy the registry can select
type Variant struct {
	Slug    string
	Matches func(Classification) bool
	New     Constructor
}

// Registry selects the strategy of a legacy event. Variants are consulted
// in registration order; the fallback is selected when none matches.
type Registry struct {
	variants []Variant
	bySlug   map[string]Variant
	fallback Variant
}

// NewRegistry creates a registry with the Unknown fallback and no variants
func NewRegistry() *Registry {
	fallback := Variant{
		Slug:    SlugUnknown,
		Matches: func(Classification) bool { return true },
		New: func(ctx context.Context, d Deps, postID int64, dryRun bool) (Strategy, error) {
			return NewUnknown(ctx, d, postID, dryRun)
		},
	}
	return &Registry{
		bySlug:   map[string]Variant{SlugUnknown: fallback},
		fallback: fallback,
	}
}

// DefaultRegistry returns a registry with every built-in strategy
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, v := range []Variant{
		{Slug: SlugSingle, Matches: shapeIs(ShapeSingle), New: func(ctx context.Context, d Deps, id int64, dry bool) (Strategy, error) {
			return NewSingle(ctx, d, id, dry)
		}},
		{Slug: SlugSplit, Matches: shapeIs(ShapeSplit), New: func(ctx context.Context, d Deps, id int64, dry bool) (Strategy, error) {
			return NewSplit(ctx, d, id, dry)
		}},
		{Slug: SlugModifiedRules, Matches: shapeIs(ShapeRuleModified), New: func(ctx context.Context, d Deps, id int64, dry bool) (Strategy, error) {
			return NewRuleModified(ctx, d, id, dry)
		}},
		{Slug: SlugModifiedExclusions, Matches: shapeIs(ShapeExclusionModified), New: func(ctx context.Context, d Deps, id int64, dry bool) (Strategy, error) {
			return NewExclusionModified(ctx, d, id, dry)
		}},
		{Slug: SlugRecurring, Matches: shapeIs(ShapeRecurring), New: func(ctx context.Context, d Deps, id int64, dry bool) (Strategy, error) {
			return NewRecurring(ctx, d, id, dry)
		}},
	} {
		// Built-in slugs are unique.
		_ = r.Register(v)
	}
	return r
}

func shapeIs(s Shape) func(Classification) bool {
	return func(c Classification) bool { return c.Shape == s }
}

// Register adds a variant. Slugs must be unique.
func (r *Registry) Register(v Variant) error {
	if v.Slug == "" || v.Matches == nil || v.New == nil {
		return fmt.Errorf("register strategy %q: slug, matcher and constructor are required", v.Slug)
	}
	if _, ok := r.bySlug[v.Slug]; ok {
		return fmt.Errorf("register strategy %q: slug already registered", v.Slug)
	}
	r.variants = append(r.variants, v)
	r.bySlug[v.Slug] = v
	return nil
}

// Slugs returns the registered slugs in selection order, fallback last
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.variants)+1)
	for _, v := range r.variants {
		out = append(out, v.Slug)
	}
	return append(out, r.fallback.Slug)
}

// Select returns the variant for a post. It always returns a variant.
func (r *Registry) Select(post *models.Post) (Variant, Classification) {
	c := Classify(post)
	for _, v := range r.variants {
		if v.Matches(c) {
			return v, c
		}
	}
	return r.fallback, c
}

// Build selects and constructs the strategy for a post
func (r *Registry) Build(ctx context.Context, d Deps, post *models.Post, dryRun bool) (Strategy, error) {
	v, _ := r.Select(post)
	return v.New(ctx, d, post.ID, dryRun)
}

// BuildBySlug constructs the strategy recorded for a post by an earlier run
func (r *Registry) BuildBySlug(ctx context.Context, slug string, d Deps, postID int64, dryRun bool) (Strategy, error) {
	v, ok := r.bySlug[slug]
	if !ok {
		return nil, newError(KindUnknownStrategy, postID, "no strategy registered as %q", slug)
	}
	return v.New(ctx, d, postID, dryRun)
}
