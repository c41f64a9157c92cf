package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// EventFromPost builds the normalized event of a legacy post from its date
// meta. The recurrence set is left empty.
func EventFromPost(post *models.Post) (*models.Event, error) {
	tz := strings.TrimSpace(post.Meta[models.MetaTimezone])
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			tz = "UTC"
		}
	} else {
		tz = "UTC"
	}

	rawStart := strings.TrimSpace(post.Meta[models.MetaStartDate])
	if rawStart == "" {
		return nil, fmt.Errorf("missing %s", models.MetaStartDate)
	}
	start, err := time.ParseInLocation(models.LegacyDateLayout, rawStart, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", models.MetaStartDate, rawStart)
	}

	end := start
	if rawEnd := strings.TrimSpace(post.Meta[models.MetaEndDate]); rawEnd != "" {
		end, err = time.ParseInLocation(models.LegacyDateLayout, rawEnd, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", models.MetaEndDate, rawEnd)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("event ends before it starts")
	}

	return &models.Event{
		PostID:       post.ID,
		StartDate:    start,
		EndDate:      end,
		StartDateUTC: start.UTC(),
		EndDateUTC:   end.UTC(),
		Timezone:     tz,
		Duration:     int64(end.Sub(start) / time.Second),
		AllDay:       isTruthy(post.Meta[models.MetaAllDay]),
	}, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "1", "true", "on":
		return true
	}
	return false
}

// writeResult is the outcome of writing one normalized event
type writeResult struct {
	event       *models.Event
	occurrences int
	// skipped is set when a dry run without transactions stopped after an
	// unchanged upsert
	skipped bool
}

// writeEvent upserts the event, regenerates its occurrences and returns the
// number of occurrences stored for the post
func writeEvent(ctx context.Context, d Deps, e *models.Event, dryRun bool) (*writeResult, error) {
	n, err := d.Store.UpsertEvent(ctx, e)
	if err != nil {
		return nil, wrapError(KindUpsertFailed, e.PostID, err, "cannot upsert event")
	}

	// A preview without transactions cannot exercise the rest of the write
	// path. An unchanged row is accepted as is.
	if n == 0 && dryRun && !d.Store.TransactionsSupported() {
		return &writeResult{event: e, skipped: true}, nil
	}

	stored, err := d.Store.FindEvent(ctx, e.PostID)
	if err != nil {
		return nil, wrapError(KindModelNotFound, e.PostID, err, "cannot load event after upsert")
	}
	if stored == nil {
		return nil, newError(KindModelNotFound, e.PostID, "event not found after upsert")
	}

	occ, err := d.Expander.Occurrences(stored)
	if err != nil {
		return nil, wrapError(KindInvalidRecurrence, e.PostID, err, "cannot generate occurrences")
	}
	if err := d.Store.ReplaceOccurrences(ctx, stored.EventID, occ); err != nil {
		return nil, wrapError(KindUpsertFailed, e.PostID, err, "cannot store occurrences")
	}

	count, err := d.Store.CountOccurrences(ctx, e.PostID)
	if err != nil {
		return nil, wrapError(KindUnexpectedOccurrenceCount, e.PostID, err, "cannot count occurrences")
	}
	return &writeResult{event: stored, occurrences: count}, nil
}

// removeEvent deletes the normalized event of a post and its occurrences
func removeEvent(ctx context.Context, d Deps, postID int64) error {
	if _, err := d.Store.DeleteEvent(ctx, postID); err != nil {
		return wrapError(KindRevertFailed, postID, err, "cannot delete event")
	}
	return nil
}
