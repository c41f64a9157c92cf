package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/pkg/config"
)

// Validator checks legacy event posts before they are migrated
type Validator struct {
	config *config.Config
}

// Issue is a problem found with a legacy post
type Issue struct {
	PostID  int64  `json:"post_id"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationResult contains the results of validation
type ValidationResult struct {
	Errors   []Issue
	Warnings []Issue
}

// HasErrors returns true if there are validation errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// New creates a new Validator
func New(cfg *config.Config) *Validator {
	return &Validator{
		config: cfg,
	}
}

// ValidateAll validates all posts
func (v *Validator) ValidateAll(posts []*models.Post) *ValidationResult {
	result := &ValidationResult{}
	for _, post := range posts {
		errs, warns := v.ValidatePost(post)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	return result
}

// ValidatePost validates a single post. Errors make the post impossible to
// migrate; warnings are recorded on its report.
func (v *Validator) ValidatePost(post *models.Post) ([]Issue, []Issue) {
	var errors []Issue
	var warnings []Issue

	if postType := v.config.Migration.PostType; postType != "" && !post.IsEvent(postType) {
		errors = append(errors, Issue{PostID: post.ID, Message: fmt.Sprintf("post type %q is not %q", post.Type, postType)})
	}

	loc, warn := v.checkTimezone(post)
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	start, err := parseDate(post, models.MetaStartDate, loc, true)
	if err != nil {
		errors = append(errors, Issue{PostID: post.ID, Field: models.MetaStartDate, Message: err.Error()})
	}
	end, err := parseDate(post, models.MetaEndDate, loc, false)
	if err != nil {
		errors = append(errors, Issue{PostID: post.ID, Field: models.MetaEndDate, Message: err.Error()})
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errors = append(errors, Issue{PostID: post.ID, Field: models.MetaEndDate, Message: "event ends before it starts"})
	}

	if strings.TrimSpace(post.Title) == "" {
		warnings = append(warnings, Issue{PostID: post.ID, Message: "event has no title"})
	}

	return errors, warnings
}

func (v *Validator) checkTimezone(post *models.Post) (*time.Location, *Issue) {
	tz := strings.TrimSpace(post.Meta[models.MetaTimezone])
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, &Issue{
			PostID:  post.ID,
			Field:   models.MetaTimezone,
			Message: fmt.Sprintf("unknown timezone %q, UTC will be used", tz),
		}
	}
	return loc, nil
}

func parseDate(post *models.Post, key string, loc *time.Location, required bool) (time.Time, error) {
	raw := strings.TrimSpace(post.Meta[key])
	if raw == "" {
		if required {
			return time.Time{}, &ValidationError{Message: "value is missing"}
		}
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(models.LegacyDateLayout, raw, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD HH:MM:SS", raw)}
	}
	return t, nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
