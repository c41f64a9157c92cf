package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

const (
	defaultHorizonMonths  = 24
	defaultMaxOccurrences = 1000
	dayLayout             = "2006-01-02"
)

// Expander materializes occurrences. Unbounded rules stop at the horizon and
// no rule or event yields more than MaxOccurrences dates.
type Expander struct {
	HorizonMonths  int
	MaxOccurrences int
}

// NewExpander creates an Expander, using defaults for non-positive values
func NewExpander(horizonMonths, maxOccurrences int) Expander {
	if horizonMonths <= 0 {
		horizonMonths = defaultHorizonMonths
	}
	if maxOccurrences <= 0 {
		maxOccurrences = defaultMaxOccurrences
	}
	return Expander{HorizonMonths: horizonMonths, MaxOccurrences: maxOccurrences}
}

func (x Expander) limits() (int, int) {
	h, m := x.HorizonMonths, x.MaxOccurrences
	if h <= 0 {
		h = defaultHorizonMonths
	}
	if m <= 0 {
		m = defaultMaxOccurrences
	}
	return h, m
}

// Expand returns the sorted, unique starts produced by the rules from start
func (x Expander) Expand(start time.Time, rules []*Rule) ([]time.Time, error) {
	out, err := x.expand(start, rules)
	if err != nil {
		return nil, err
	}
	return x.cap(out), nil
}

func (x Expander) expand(start time.Time, rules []*Rule) ([]time.Time, error) {
	months, max := x.limits()
	horizon := start.AddDate(0, months, 0)

	seen := make(map[int64]bool)
	var out []time.Time
	for _, r := range rules {
		rr, err := r.build(start)
		if err != nil {
			return nil, err
		}
		n := 0
		next := rr.Iterator()
		for t, ok := next(); ok; t, ok = next() {
			if r.Count > 0 && n >= r.Count {
				break
			}
			if t.After(horizon) || n >= max {
				break
			}
			n++
			if !seen[t.UnixNano()] {
				seen[t.UnixNano()] = true
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (x Expander) cap(times []time.Time) []time.Time {
	_, max := x.limits()
	if len(times) > max {
		return times[:max]
	}
	return times
}

// ExcludedDays returns the local days excluded by the legacy exclusions
func (x Expander) ExcludedDays(start time.Time, l *Legacy) (map[string]bool, error) {
	days := make(map[string]bool)
	for _, d := range l.ExDays {
		days[d] = true
	}
	if len(l.ExRules) > 0 {
		times, err := x.expand(start, l.ExRules)
		if err != nil {
			return nil, fmt.Errorf("expand exclusion rules: %w", err)
		}
		for _, t := range times {
			days[t.In(start.Location()).Format(dayLayout)] = true
		}
	}
	return days, nil
}

// ExpandLegacy returns the starts a legacy recurrence produces, split into
// kept starts and starts removed by exclusions
func (x Expander) ExpandLegacy(start time.Time, l *Legacy) (kept, excluded []time.Time, err error) {
	times, err := x.expand(start, l.Rules)
	if err != nil {
		return nil, nil, err
	}
	days, err := x.ExcludedDays(start, l)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range times {
		if days[t.In(start.Location()).Format(dayLayout)] {
			excluded = append(excluded, t)
			continue
		}
		kept = append(kept, t)
	}
	return x.cap(kept), excluded, nil
}

// RSet is the normalized recurrence set of an event: rules and exact
// excluded starts
type RSet struct {
	RRules  []string
	ExDates []time.Time
}

// String renders the set as RRULE and EXDATE lines
func (s RSet) String() string {
	var lines []string
	for _, r := range s.RRules {
		lines = append(lines, "RRULE:"+r)
	}
	if len(s.ExDates) > 0 {
		ex := make([]string, 0, len(s.ExDates))
		for _, t := range s.ExDates {
			ex = append(ex, t.UTC().Format(untilLayout))
		}
		lines = append(lines, "EXDATE:"+strings.Join(ex, ","))
	}
	return strings.Join(lines, "\n")
}

// ParseRSet parses the output of RSet.String
func ParseRSet(text string) (*RSet, error) {
	s := &RSet{}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "RRULE:"):
			s.RRules = append(s.RRules, strings.TrimPrefix(line, "RRULE:"))
		case strings.HasPrefix(line, "EXDATE:"):
			for _, v := range strings.Split(strings.TrimPrefix(line, "EXDATE:"), ",") {
				t, err := time.Parse(untilLayout, strings.TrimSpace(v))
				if err != nil {
					return nil, fmt.Errorf("%w: bad EXDATE %q", ErrInvalidRule, v)
				}
				s.ExDates = append(s.ExDates, t)
			}
		default:
			return nil, fmt.Errorf("%w: unexpected line %q", ErrInvalidRule, line)
		}
	}
	if len(s.RRules) == 0 {
		return nil, fmt.Errorf("%w: recurrence set has no rules", ErrInvalidRule)
	}
	return s, nil
}

// ExpandRSet returns the starts a normalized recurrence set produces
func (x Expander) ExpandRSet(start time.Time, s *RSet) ([]time.Time, error) {
	rules := make([]*Rule, 0, len(s.RRules))
	for _, text := range s.RRules {
		r, err := ParseRule(text)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	times, err := x.expand(start, rules)
	if err != nil {
		return nil, err
	}
	ex := make(map[int64]bool, len(s.ExDates))
	for _, t := range s.ExDates {
		ex[t.UnixNano()] = true
	}
	kept := times[:0]
	for _, t := range times {
		if !ex[t.UnixNano()] {
			kept = append(kept, t)
		}
	}
	return x.cap(kept), nil
}

// Occurrences generates the occurrence rows of a normalized event
func (x Expander) Occurrences(e *models.Event) ([]models.Occurrence, error) {
	duration := time.Duration(e.Duration) * time.Second
	if !e.IsRecurring() {
		return []models.Occurrence{newOccurrence(e, e.StartDate, duration, 1, false)}, nil
	}

	rs, err := ParseRSet(e.RSet)
	if err != nil {
		return nil, err
	}
	starts, err := x.ExpandRSet(e.StartDate, rs)
	if err != nil {
		return nil, err
	}
	out := make([]models.Occurrence, 0, len(starts))
	for i, s := range starts {
		out = append(out, newOccurrence(e, s, duration, i+1, true))
	}
	return out, nil
}

func newOccurrence(e *models.Event, start time.Time, d time.Duration, seq int, recurring bool) models.Occurrence {
	end := start.Add(d)
	o := models.Occurrence{
		EventID:       e.EventID,
		PostID:        e.PostID,
		StartDate:     start,
		EndDate:       end,
		StartDateUTC:  start.UTC(),
		EndDateUTC:    end.UTC(),
		Duration:      e.Duration,
		HasRecurrence: recurring,
		Sequence:      seq,
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", e.PostID, o.StartDateUTC.Format(time.RFC3339), o.EndDateUTC.Format(time.RFC3339))))
	o.Hash = hex.EncodeToString(sum[:16])
	return o
}
