package models

import (
	"strings"
	"time"
)

// Legacy postmeta keys read by the migration
const (
	MetaStartDate  = "_EventStartDate"
	MetaEndDate    = "_EventEndDate"
	MetaTimezone   = "_EventTimezone"
	MetaAllDay     = "_EventAllDay"
	MetaRecurrence = "_EventRecurrence"
)

// DefaultPostType is the post type of legacy events
const DefaultPostType = "tribe_events"

// LegacyDateLayout is the layout of legacy start/end date meta values
const LegacyDateLayout = "2006-01-02 15:04:05"

// Post represents a legacy event post and its meta
type Post struct {
	ID      int64             `json:"id"`
	Type    string            `json:"type"`
	Status  string            `json:"status"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta"`
}

// IsEvent reports whether the post is of the given event post type
func (p *Post) IsEvent(postType string) bool {
	return p != nil && p.Type == postType
}

// Recurrence returns the raw recurrence meta, trimmed
func (p *Post) Recurrence() string {
	if p == nil || p.Meta == nil {
		return ""
	}
	return strings.TrimSpace(p.Meta[MetaRecurrence])
}

// HasRecurrence reports whether the post carries recurrence meta
func (p *Post) HasRecurrence() bool {
	return p.Recurrence() != ""
}

// Event represents a row of the normalized events table
type Event struct {
	EventID      int64     `json:"event_id"`
	PostID       int64     `json:"post_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	StartDateUTC time.Time `json:"start_date_utc"`
	EndDateUTC   time.Time `json:"end_date_utc"`
	Timezone     string    `json:"timezone"`
	Duration     int64     `json:"duration"` // seconds
	AllDay       bool      `json:"all_day"`
	RSet         string    `json:"rset,omitempty"`
	Hash         string    `json:"hash"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsRecurring reports whether the event carries a recurrence set
func (e *Event) IsRecurring() bool {
	return e.RSet != ""
}

// Occurrence represents a row of the normalized occurrences table
type Occurrence struct {
	OccurrenceID  int64     `json:"occurrence_id"`
	EventID       int64     `json:"event_id"`
	PostID        int64     `json:"post_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	StartDateUTC  time.Time `json:"start_date_utc"`
	EndDateUTC    time.Time `json:"end_date_utc"`
	Duration      int64     `json:"duration"`
	HasRecurrence bool      `json:"has_recurrence"`
	Sequence      int       `json:"sequence"`
	Hash          string    `json:"hash"`
}

// Series groups the events a split legacy event was decomposed into
type Series struct {
	SeriesID     int64          `json:"series_id"`
	OriginPostID int64          `json:"origin_post_id"`
	Title        string         `json:"title"`
	Members      []SeriesMember `json:"members"`
}

// SeriesMember is one event of a series
type SeriesMember struct {
	PostID  int64 `json:"post_id"`
	EventID int64 `json:"event_id"`
}

// MemberPostIDs returns the post IDs of the series members in order
func (s *Series) MemberPostIDs() []int64 {
	ids := make([]int64, 0, len(s.Members))
	for _, m := range s.Members {
		ids = append(ids, m.PostID)
	}
	return ids
}
