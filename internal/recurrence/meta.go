package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMeta is returned when the legacy recurrence meta cannot be decoded
var ErrInvalidMeta = errors.New("invalid recurrence meta")

// Meta is the decoded legacy _EventRecurrence meta value
type Meta struct {
	Rules      []RuleMeta      `json:"rules"`
	Exclusions []ExclusionMeta `json:"exclusions,omitempty"`
}

// RuleMeta is one legacy recurrence rule
type RuleMeta struct {
	RRule string `json:"rrule"`
}

// ExclusionMeta is one legacy exclusion, either a rule or a single date
type ExclusionMeta struct {
	RRule string `json:"rrule,omitempty"`
	Date  string `json:"date,omitempty"`
}

// Decode decodes a raw meta value. An empty value decodes to nil.
func Decode(raw string) (*Meta, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m Meta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	return &m, nil
}

// Legacy is the parsed recurrence of a legacy event
type Legacy struct {
	Rules   []*Rule
	ExRules []*Rule
	ExDays  []string // YYYY-MM-DD, local to the event
}

// Parse decodes and parses a raw meta value. It returns nil for an empty
// value and an error when the meta is undecodable, has no rules or holds a
// rule that does not parse.
func Parse(raw string) (*Legacy, error) {
	m, err := Decode(raw)
	if err != nil || m == nil {
		return nil, err
	}
	if len(m.Rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidMeta)
	}

	l := &Legacy{}
	for i, rm := range m.Rules {
		r, err := ParseRule(rm.RRule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		l.Rules = append(l.Rules, r)
	}
	for i, em := range m.Exclusions {
		switch {
		case em.RRule != "":
			r, err := ParseRule(em.RRule)
			if err != nil {
				return nil, fmt.Errorf("exclusion %d: %w", i, err)
			}
			l.ExRules = append(l.ExRules, r)
		case em.Date != "":
			d, err := time.Parse("2006-01-02", strings.TrimSpace(em.Date))
			if err != nil {
				return nil, fmt.Errorf("%w: exclusion %d: bad date %q", ErrInvalidMeta, i, em.Date)
			}
			l.ExDays = append(l.ExDays, d.Format("2006-01-02"))
		default:
			return nil, fmt.Errorf("%w: exclusion %d is empty", ErrInvalidMeta, i)
		}
	}
	return l, nil
}

// RulesNeedRewrite reports whether any rule needs a rewrite
func (l *Legacy) RulesNeedRewrite() bool {
	for _, r := range l.Rules {
		if r.NeedsRewrite() {
			return true
		}
	}
	return false
}

// HasExclusionRules reports whether any exclusion is expressed as a rule
func (l *Legacy) HasExclusionRules() bool {
	return len(l.ExRules) > 0
}
