package models

import (
	"time"
)

// EventStatus represents the outcome of an event migration step
type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// CreatedEvent represents an event created by a migration strategy
type CreatedEvent struct {
	PostID      int64 `json:"post_id"`
	Occurrences int   `json:"occurrences"`
}

// SeriesRef references the series an event was grouped into
type SeriesRef struct {
	SeriesID int64  `json:"series_id"`
	Title    string `json:"title"`
}

// EventReport represents the outcome of migrating a single legacy event.
// Strategy slugs are recorded once and the first recorded outcome wins.
type EventReport struct {
	PostID        int64          `json:"post_id"`
	Title         string         `json:"title"`
	Status        EventStatus    `json:"status"`
	Strategies    []string       `json:"strategies"`
	IsSingle      bool           `json:"is_single"`
	Series        []SeriesRef    `json:"series,omitempty"`
	CreatedEvents []CreatedEvent `json:"created_events,omitempty"`
	Modifications []string       `json:"modifications,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
}

// NewEventReport creates a pending report for a post
func NewEventReport(post *Post) *EventReport {
	r := &EventReport{
		Status:    EventStatusPending,
		StartedAt: time.Now(),
	}
	if post != nil {
		r.PostID = post.ID
		r.Title = post.Title
	}
	return r
}

// AddStrategy records the slug of a strategy applied to the event
func (r *EventReport) AddStrategy(slug string) *EventReport {
	for _, s := range r.Strategies {
		if s == slug {
			return r
		}
	}
	r.Strategies = append(r.Strategies, slug)
	return r
}

// SetSingle marks whether the event migrated as a single event
func (r *EventReport) SetSingle(single bool) *EventReport {
	r.IsSingle = single
	return r
}

// AddSeries records the series the event was grouped into
func (r *EventReport) AddSeries(ref SeriesRef) *EventReport {
	r.Series = append(r.Series, ref)
	return r
}

// AddCreatedEvent records an event created by the migration
func (r *EventReport) AddCreatedEvent(postID int64, occurrences int) *EventReport {
	r.CreatedEvents = append(r.CreatedEvents, CreatedEvent{PostID: postID, Occurrences: occurrences})
	return r
}

// AddModification records a change applied to the event data
func (r *EventReport) AddModification(msg string) *EventReport {
	r.Modifications = append(r.Modifications, msg)
	return r
}

// AddWarning records a non-fatal issue found with the event
func (r *EventReport) AddWarning(msg string) *EventReport {
	r.Warnings = append(r.Warnings, msg)
	return r
}

// MarkSuccess records a successful outcome
func (r *EventReport) MarkSuccess() *EventReport {
	if r.Status != EventStatusPending && r.Status != "" {
		return r
	}
	r.Status = EventStatusSuccess
	r.EndedAt = time.Now()
	return r
}

// MarkFailure records a failed outcome with its reason
func (r *EventReport) MarkFailure(reason string) *EventReport {
	if r.Status != EventStatusPending && r.Status != "" {
		return r
	}
	r.Status = EventStatusFailure
	r.Error = reason
	r.EndedAt = time.Now()
	return r
}

// Succeeded reports whether the migration of the event succeeded
func (r *EventReport) Succeeded() bool {
	return r.Status == EventStatusSuccess
}

// Failed reports whether the migration of the event failed
func (r *EventReport) Failed() bool {
	return r.Status == EventStatusFailure
}

// Strategy returns the first strategy slug applied, or an empty string
func (r *EventReport) Strategy() string {
	if len(r.Strategies) == 0 {
		return ""
	}
	return r.Strategies[0]
}

// HasChanges reports whether migrating the event changes its data or shape
func (r *EventReport) HasChanges() bool {
	return len(r.Modifications) > 0 || len(r.CreatedEvents) > 1
}

// Duration returns the time the migration step took
func (r *EventReport) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
