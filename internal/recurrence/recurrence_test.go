package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// Monday
var monday = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func mustRule(t *testing.T, text string) *Rule {
	t.Helper()
	r, err := ParseRule(text)
	if err != nil {
		t.Fatalf("ParseRule(%q): %v", text, err)
	}
	return r
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		rewrite  bool
		conflict bool
	}{
		{"plain weekly", "FREQ=WEEKLY;BYDAY=MO;COUNT=4", false, false, false},
		{"rrule prefix", "RRULE:FREQ=DAILY;COUNT=2", false, false, false},
		{"lowercase", "freq=daily;count=2", false, false, false},
		{"utc until", "FREQ=DAILY;UNTIL=20260110T000000Z", false, false, false},
		{"date-only until", "FREQ=DAILY;UNTIL=20260110", false, true, false},
		{"dashed date until", "FREQ=DAILY;UNTIL=2026-01-10", false, true, false},
		{"count and until", "FREQ=DAILY;COUNT=3;UNTIL=20260110T000000Z", false, true, true},
		{"missing freq", "COUNT=3", true, false, false},
		{"bad freq", "FREQ=SOMETIMES", true, false, false},
		{"bad count", "FREQ=DAILY;COUNT=zero", true, false, false},
		{"bad until", "FREQ=DAILY;UNTIL=tomorrow", true, false, false},
		{"malformed part", "FREQ=DAILY;INTERVAL", true, false, false},
		{"empty", "  ", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRule(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRule(%q) expected error", tt.input)
				}
				if !errors.Is(err, ErrInvalidRule) {
					t.Errorf("error = %v, expected ErrInvalidRule", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRule(%q): %v", tt.input, err)
			}
			if r.NeedsRewrite() != tt.rewrite {
				t.Errorf("NeedsRewrite() = %v, expected %v", r.NeedsRewrite(), tt.rewrite)
			}
			if r.CountUntilConflict() != tt.conflict {
				t.Errorf("CountUntilConflict() = %v, expected %v", r.CountUntilConflict(), tt.conflict)
			}
		})
	}
}

func TestCanonical_CountUntilConflict(t *testing.T) {
	r := mustRule(t, "FREQ=DAILY;COUNT=10;UNTIL=20260107T235959Z")

	got, err := r.Canonical(monday)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if got != "FREQ=DAILY;COUNT=3" {
		t.Errorf("Canonical() = %q, expected %q", got, "FREQ=DAILY;COUNT=3")
	}
	if len(r.Modifications()) != 1 {
		t.Errorf("Modifications() = %v, expected one entry", r.Modifications())
	}
}

func TestCanonical_DateOnlyUntil(t *testing.T) {
	r := mustRule(t, "freq=daily;until=20260107")

	got, err := r.Canonical(monday)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if got != "FREQ=DAILY;UNTIL=20260107T235959Z" {
		t.Errorf("Canonical() = %q", got)
	}

	x := NewExpander(24, 100)
	before, err := x.Expand(monday, []*Rule{r})
	if err != nil {
		t.Fatalf("Expand legacy: %v", err)
	}
	after, err := x.Expand(monday, []*Rule{mustRule(t, got)})
	if err != nil {
		t.Fatalf("Expand canonical: %v", err)
	}
	if len(before) != 3 || len(after) != 3 {
		t.Errorf("dates before = %d, after = %d, expected 3 and 3", len(before), len(after))
	}
}

func TestCanonical_Unchanged(t *testing.T) {
	r := mustRule(t, "RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=4")
	got, err := r.Canonical(monday)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if got != "FREQ=WEEKLY;BYDAY=MO;COUNT=4" {
		t.Errorf("Canonical() = %q", got)
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name    string
		rules   []string
		horizon int
		max     int
		want    int
	}{
		{"weekly count", []string{"FREQ=WEEKLY;BYDAY=MO;COUNT=4"}, 24, 100, 4},
		{"unbounded daily stops at horizon", []string{"FREQ=DAILY"}, 1, 1000, 32},
		{"capped", []string{"FREQ=DAILY"}, 24, 10, 10},
		{"union dedupes", []string{"FREQ=DAILY;COUNT=3", "FREQ=WEEKLY;COUNT=2"}, 24, 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rules []*Rule
			for _, s := range tt.rules {
				rules = append(rules, mustRule(t, s))
			}
			got, err := NewExpander(tt.horizon, tt.max).Expand(monday, rules)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, expected %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if !got[i-1].Before(got[i]) {
					t.Fatalf("dates not strictly ascending at %d", i)
				}
			}
		})
	}
}

func TestExpandLegacy_Exclusions(t *testing.T) {
	x := NewExpander(24, 100)

	l := &Legacy{
		Rules:   []*Rule{mustRule(t, "FREQ=DAILY;COUNT=7")},
		ExRules: []*Rule{mustRule(t, "FREQ=WEEKLY;BYDAY=WE;COUNT=1")},
		ExDays:  []string{"2026-01-06"},
	}

	kept, excluded, err := x.ExpandLegacy(monday, l)
	if err != nil {
		t.Fatalf("ExpandLegacy: %v", err)
	}
	if len(kept) != 5 {
		t.Errorf("kept = %d, expected 5", len(kept))
	}
	if len(excluded) != 2 {
		t.Fatalf("excluded = %d, expected 2", len(excluded))
	}
	if excluded[0].Day() != 6 || excluded[1].Day() != 7 {
		t.Errorf("excluded = %v, expected Jan 6 and Jan 7", excluded)
	}
}

func TestRSet_RoundTrip(t *testing.T) {
	ex := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	s := RSet{RRules: []string{"FREQ=DAILY;COUNT=3"}, ExDates: []time.Time{ex}}

	text := s.String()
	if text != "RRULE:FREQ=DAILY;COUNT=3\nEXDATE:20260106T100000Z" {
		t.Errorf("String() = %q", text)
	}

	parsed, err := ParseRSet(text)
	if err != nil {
		t.Fatalf("ParseRSet: %v", err)
	}
	got, err := NewExpander(24, 100).ExpandRSet(monday, parsed)
	if err != nil {
		t.Fatalf("ExpandRSet: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, expected 2", len(got))
	}
}

func TestParseRSet_Invalid(t *testing.T) {
	for _, text := range []string{"", "EXDATE:20260106T100000Z", "RRULE:FREQ=DAILY\nEXDATE:yesterday", "garbage"} {
		if _, err := ParseRSet(text); err == nil {
			t.Errorf("ParseRSet(%q) expected error", text)
		}
	}
}

func TestOccurrences(t *testing.T) {
	x := NewExpander(24, 100)

	single := &models.Event{EventID: 1, PostID: 42, StartDate: monday, EndDate: monday.Add(time.Hour), Duration: 3600}
	occ, err := x.Occurrences(single)
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	if len(occ) != 1 {
		t.Fatalf("single event occurrences = %d, expected 1", len(occ))
	}
	if occ[0].HasRecurrence || occ[0].PostID != 42 || !occ[0].EndDate.Equal(monday.Add(time.Hour)) {
		t.Errorf("unexpected occurrence %+v", occ[0])
	}

	recurring := *single
	recurring.RSet = "RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=4"
	occ, err = x.Occurrences(&recurring)
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	if len(occ) != 4 {
		t.Fatalf("recurring occurrences = %d, expected 4", len(occ))
	}
	seen := make(map[string]bool)
	for i, o := range occ {
		if o.Sequence != i+1 {
			t.Errorf("occ[%d].Sequence = %d", i, o.Sequence)
		}
		if seen[o.Hash] {
			t.Errorf("duplicate hash %s", o.Hash)
		}
		seen[o.Hash] = true
	}
}

func TestParse(t *testing.T) {
	l, err := Parse("")
	if err != nil || l != nil {
		t.Errorf("Parse(\"\") = %v, %v; expected nil, nil", l, err)
	}

	if _, err := Parse("{not json"); !errors.Is(err, ErrInvalidMeta) {
		t.Errorf("undecodable meta error = %v, expected ErrInvalidMeta", err)
	}
	if _, err := Parse(`{"rules":[]}`); !errors.Is(err, ErrInvalidMeta) {
		t.Errorf("no rules error = %v, expected ErrInvalidMeta", err)
	}
	if _, err := Parse(`{"rules":[{"rrule":"NOPE"}]}`); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("bad rule error = %v, expected ErrInvalidRule", err)
	}
	if _, err := Parse(`{"rules":[{"rrule":"FREQ=DAILY"}],"exclusions":[{}]}`); !errors.Is(err, ErrInvalidMeta) {
		t.Errorf("empty exclusion error = %v, expected ErrInvalidMeta", err)
	}

	l, err = Parse(`{"rules":[{"rrule":"FREQ=DAILY;COUNT=3;UNTIL=20260110"}],"exclusions":[{"rrule":"FREQ=WEEKLY"},{"date":"2026-01-06"}]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !l.RulesNeedRewrite() || !l.HasExclusionRules() || len(l.ExDays) != 1 {
		t.Errorf("unexpected legacy recurrence %+v", l)
	}
}
