package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Phase represents the phase of a site migration
type Phase string

const (
	PhasePreviewPrompt       Phase = "preview-prompt"
	PhasePreviewInProgress   Phase = "preview-in-progress"
	PhasePreviewComplete     Phase = "preview-complete"
	PhaseMigrationInProgress Phase = "migration-in-progress"
	PhaseMigrationComplete   Phase = "migration-complete"
	PhaseCancelInProgress    Phase = "cancel-in-progress"
	PhaseCancelComplete      Phase = "cancel-complete"
	PhaseRevertInProgress    Phase = "revert-in-progress"
	PhaseRevertComplete      Phase = "revert-complete"
)

var phases = map[Phase]bool{
	PhasePreviewPrompt:       true,
	PhasePreviewInProgress:   true,
	PhasePreviewComplete:     true,
	PhaseMigrationInProgress: true,
	PhaseMigrationComplete:   true,
	PhaseCancelInProgress:    true,
	PhaseCancelComplete:      true,
	PhaseRevertInProgress:    true,
	PhaseRevertComplete:      true,
}

// ParsePhase parses a phase name, rejecting unknown values
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !phases[p] {
		return "", fmt.Errorf("unknown migration phase %q", s)
	}
	return p, nil
}

// InProgress reports whether the phase is processed in batches
func (p Phase) InProgress() bool {
	switch p {
	case PhasePreviewInProgress, PhaseMigrationInProgress, PhaseCancelInProgress, PhaseRevertInProgress:
		return true
	}
	return false
}

// DryRun reports whether events are migrated without committing in the phase
func (p Phase) DryRun() bool {
	return p == PhasePreviewInProgress || p == PhasePreviewComplete
}

// Completed returns the phase reached when an in-progress phase finishes
func (p Phase) Completed() Phase {
	switch p {
	case PhasePreviewInProgress:
		return PhasePreviewComplete
	case PhaseMigrationInProgress:
		return PhaseMigrationComplete
	case PhaseCancelInProgress:
		return PhaseCancelComplete
	case PhaseRevertInProgress:
		return PhaseRevertComplete
	}
	return p
}

// SiteReport aggregates the event reports of a migration run. It is the
// state checkpointed between batches.
type SiteReport struct {
	RunID       string     `json:"run_id"`
	Phase       Phase      `json:"phase"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Progress
	TotalEvents int   `json:"total_events"`
	Cursor      int64 `json:"cursor"`

	// Reversal progress for cancel and revert
	Reverted     int   `json:"reverted"`
	RevertFailed int   `json:"revert_failed"`
	RevertCursor int64 `json:"revert_cursor"`

	// Estimates
	EstimatedTimeInHours float64 `json:"estimated_time_in_hours"`
	AverageSeconds       float64 `json:"average_seconds"`

	EventReports map[int64]*EventReport `json:"event_reports"`
}

// NewSiteReport creates an empty site report for a phase
func NewSiteReport(runID string, phase Phase) *SiteReport {
	return &SiteReport{
		RunID:        runID,
		Phase:        phase,
		StartedAt:    time.Now(),
		EventReports: make(map[int64]*EventReport),
	}
}

// Record stores an event report, replacing any previous one for the post
func (s *SiteReport) Record(r *EventReport) {
	if s.EventReports == nil {
		s.EventReports = make(map[int64]*EventReport)
	}
	s.EventReports[r.PostID] = r
}

// Report returns the event report for a post
func (s *SiteReport) Report(postID int64) (*EventReport, bool) {
	r, ok := s.EventReports[postID]
	return r, ok
}

// Processed returns the number of events with a recorded outcome
func (s *SiteReport) Processed() int {
	n := 0
	for _, r := range s.EventReports {
		if r.Succeeded() || r.Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of events migrated successfully
func (s *SiteReport) Succeeded() int {
	n := 0
	for _, r := range s.EventReports {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of events that failed to migrate
func (s *SiteReport) Failed() int {
	n := 0
	for _, r := range s.EventReports {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Remaining returns the number of events not processed yet
func (s *SiteReport) Remaining() int {
	rem := s.TotalEvents - s.Processed()
	if rem < 0 {
		return 0
	}
	return rem
}

// HasErrors reports whether any event failed
func (s *SiteReport) HasErrors() bool {
	return s.Failed() > 0
}

// HasChanges reports whether any event will be modified by the migration
func (s *SiteReport) HasChanges() bool {
	for _, r := range s.EventReports {
		if r.Succeeded() && r.HasChanges() {
			return true
		}
	}
	return false
}

// IsRunning reports whether the report's phase is still being processed
func (s *SiteReport) IsRunning() bool {
	return s.Phase.InProgress()
}

// IsCompleted reports whether the report's phase reached completion
func (s *SiteReport) IsCompleted() bool {
	return s.CompletedAt != nil
}

// Progress returns the progress percentage
func (s *SiteReport) Progress() float64 {
	if s.TotalEvents == 0 {
		return 0
	}
	return float64(s.Processed()) / float64(s.TotalEvents) * 100
}

// Complete marks the phase as done
func (s *SiteReport) Complete(at time.Time) {
	s.Phase = s.Phase.Completed()
	s.CompletedAt = &at
}

// SortedReports returns the event reports ordered by post ID
func (s *SiteReport) SortedReports() []*EventReport {
	out := make([]*EventReport, 0, len(s.EventReports))
	for _, r := range s.EventReports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out
}

// SuccessfulPostIDs returns the post IDs of successful events after a cursor,
// in ascending order
func (s *SiteReport) SuccessfulPostIDs(after int64) []int64 {
	var ids []int64
	for id, r := range s.EventReports {
		if id > after && r.Succeeded() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MeasureAverage updates the average time per processed event
func (s *SiteReport) MeasureAverage() {
	var total time.Duration
	n := 0
	for _, r := range s.EventReports {
		if d := r.Duration(); d > 0 {
			total += d
			n++
		}
	}
	if n == 0 {
		return
	}
	s.AverageSeconds = total.Seconds() / float64(n)
}

// EstimateHours updates the estimated time to migrate all events. The
// measured average is used when available, else secondsPerEvent.
func (s *SiteReport) EstimateHours(secondsPerEvent float64) float64 {
	perEvent := secondsPerEvent
	if s.AverageSeconds > 0 {
		perEvent = s.AverageSeconds
	}
	s.EstimatedTimeInHours = EstimateHours(s.TotalEvents, perEvent)
	return s.EstimatedTimeInHours
}

// EstimateHours returns the hours needed to migrate total events, rounded to
// one decimal
func EstimateHours(total int, secondsPerEvent float64) float64 {
	if total <= 0 || secondsPerEvent <= 0 {
		return 0
	}
	hours := float64(total) * secondsPerEvent / 3600
	return math.Round(hours*10) / 10
}
