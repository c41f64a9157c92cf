package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidRule is returned for rules that cannot be parsed
var ErrInvalidRule = errors.New("invalid recurrence rule")

const untilLayout = "20060102T150405Z"

// untilLayouts are the UNTIL formats found in legacy rules, most specific first
var untilLayouts = []struct {
	layout   string
	dateOnly bool
	utc      bool
}{
	{"20060102T150405Z", false, true},
	{"20060102T150405", false, false},
	{"20060102", true, false},
	{"2006-01-02", true, false},
}

type part struct {
	key   string
	value string
}

// Rule is a single legacy recurrence rule
type Rule struct {
	Source        string
	Count         int
	Until         time.Time // zero when the rule has no UNTIL
	UntilDateOnly bool

	parts     []part // every part except COUNT and UNTIL, FREQ first
	untilUTC  bool
	untilText string
}

// ParseRule parses a legacy rule. Legacy rules may carry an RRULE: prefix,
// lowercase keys, a date-only UNTIL and both COUNT and UNTIL.
func ParseRule(text string) (*Rule, error) {
	src := strings.TrimSpace(text)
	body := src
	if len(body) >= 6 && strings.EqualFold(body[:6], "RRULE:") {
		body = body[6:]
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}
	if strings.ContainsAny(body, "\r\n") {
		return nil, fmt.Errorf("%w: multi-line rule", ErrInvalidRule)
	}

	r := &Rule{Source: src}
	var freq *part
	for _, raw := range strings.Split(body, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kv := strings.SplitN(raw, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("%w: malformed part %q", ErrInvalidRule, raw)
		}
		key := strings.ToUpper(strings.TrimSpace(kv[0]))
		value := strings.ToUpper(strings.TrimSpace(kv[1]))

		switch key {
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: bad COUNT %q", ErrInvalidRule, value)
			}
			r.Count = n
		case "UNTIL":
			if err := r.parseUntil(value); err != nil {
				return nil, err
			}
		case "DTSTART":
			// The event start is the rule start.
		case "FREQ":
			freq = &part{key: key, value: value}
		default:
			r.parts = append(r.parts, part{key: key, value: value})
		}
	}
	if freq == nil {
		return nil, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	r.parts = append([]part{*freq}, r.parts...)

	// Let rrule-go reject anything it cannot iterate.
	if _, err := rrule.StrToROption(r.body(false)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return r, nil
}

func (r *Rule) parseUntil(value string) error {
	for _, l := range untilLayouts {
		if t, err := time.Parse(l.layout, value); err == nil {
			r.Until = t
			r.UntilDateOnly = l.dateOnly
			r.untilUTC = l.utc
			r.untilText = value
			return nil
		}
	}
	return fmt.Errorf("%w: bad UNTIL %q", ErrInvalidRule, value)
}

// body renders the rule parts, without COUNT and UNTIL unless withEnd is set
func (r *Rule) body(withEnd bool) string {
	ss := make([]string, 0, len(r.parts)+2)
	for _, p := range r.parts {
		ss = append(ss, p.key+"="+p.value)
	}
	if withEnd {
		if r.Count > 0 {
			ss = append(ss, "COUNT="+strconv.Itoa(r.Count))
		}
		if r.untilText != "" {
			ss = append(ss, "UNTIL="+r.untilText)
		}
	}
	return strings.Join(ss, ";")
}

// Bounded reports whether the rule ends by itself
func (r *Rule) Bounded() bool {
	return r.Count > 0 || !r.Until.IsZero()
}

// CountUntilConflict reports whether the rule sets both COUNT and UNTIL
func (r *Rule) CountUntilConflict() bool {
	return r.Count > 0 && !r.Until.IsZero()
}

// NeedsRewrite reports whether the rule cannot be stored verbatim in the
// normalized schema
func (r *Rule) NeedsRewrite() bool {
	return r.UntilDateOnly || r.CountUntilConflict()
}

// Modifications describes the rewrites Canonical applies to the rule
func (r *Rule) Modifications() []string {
	var out []string
	if r.CountUntilConflict() {
		out = append(out, fmt.Sprintf("rule %q sets both COUNT and UNTIL: rewritten to the COUNT of dates it produces", r.Source))
	}
	if r.UntilDateOnly {
		out = append(out, fmt.Sprintf("rule %q has a date-only UNTIL: rewritten to the end of that day in UTC", r.Source))
	}
	return out
}

// untilAt resolves UNTIL relative to the event start location. Date-only
// values include the whole day; floating values are wall-clock in loc.
func (r *Rule) untilAt(loc *time.Location) time.Time {
	if r.Until.IsZero() {
		return time.Time{}
	}
	if r.untilUTC {
		return r.Until
	}
	u := r.Until
	if r.UntilDateOnly {
		return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, loc)
	}
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, loc)
}

// build returns an rrule-go rule starting at start, bounded by UNTIL only.
// COUNT is applied by the iteration.
func (r *Rule) build(start time.Time) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(r.body(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	opt.Dtstart = start
	if until := r.untilAt(start.Location()); !until.IsZero() {
		opt.Until = until
	}
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return rr, nil
}

// Canonical returns rule text the normalized schema stores verbatim and that
// produces the same dates from start as the legacy rule.
func (r *Rule) Canonical(start time.Time) (string, error) {
	if !r.NeedsRewrite() {
		return r.body(true), nil
	}
	if r.CountUntilConflict() {
		rr, err := r.build(start)
		if err != nil {
			return "", err
		}
		n := 0
		next := rr.Iterator()
		for _, ok := next(); ok && n < r.Count; _, ok = next() {
			n++
		}
		if n == 0 {
			return "", fmt.Errorf("%w: rule %q produces no dates", ErrInvalidRule, r.Source)
		}
		return r.body(false) + ";COUNT=" + strconv.Itoa(n), nil
	}
	until := r.untilAt(start.Location()).UTC().Format(untilLayout)
	return r.body(false) + ";UNTIL=" + until, nil
}
