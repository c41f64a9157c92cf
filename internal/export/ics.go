// Package export writes migrated occurrences as an iCalendar feed, so a
// migration can be checked in any calendar client.
package export

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

const (
	productID = "-//ct1-migrate//Custom Tables v1 export//EN"

	propertyPostID = ical.ComponentProperty("X-TEC-POST-ID")
)

// Source reads migrated events
type Source interface {
	ListEventPostIDs(ctx context.Context) ([]int64, error)
	FindEvent(ctx context.Context, postID int64) (*models.Event, error)
	ListOccurrences(ctx context.Context, postID int64) ([]models.Occurrence, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
}

// Exporter builds calendars from migrated occurrences
type Exporter struct {
	src Source
	now func() time.Time
}

// New creates an exporter
func New(src Source) *Exporter {
	return &Exporter{src: src, now: time.Now}
}

// Calendar builds a calendar with one VEVENT per occurrence of the given
// posts, or of every migrated event when none are given.
func (x *Exporter) Calendar(ctx context.Context, postIDs ...int64) (*ical.Calendar, error) {
	if len(postIDs) == 0 {
		ids, err := x.src.ListEventPostIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		postIDs = ids
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	stamp := x.now().UTC()
	for _, id := range postIDs {
		if err := x.addEvent(ctx, cal, id, stamp); err != nil {
			return nil, err
		}
	}
	return cal, nil
}

func (x *Exporter) addEvent(ctx context.Context, cal *ical.Calendar, postID int64, stamp time.Time) error {
	e, err := x.src.FindEvent(ctx, postID)
	if err != nil {
		return fmt.Errorf("find event %d: %w", postID, err)
	}
	if e == nil {
		return fmt.Errorf("post %d has not been migrated", postID)
	}
	post, err := x.src.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("get post %d: %w", postID, err)
	}
	title := fmt.Sprintf("Event %d", postID)
	if post != nil && post.Title != "" {
		title = post.Title
	}

	occurrences, err := x.src.ListOccurrences(ctx, postID)
	if err != nil {
		return fmt.Errorf("list occurrences of %d: %w", postID, err)
	}

	for _, o := range occurrences {
		ve := cal.AddEvent(fmt.Sprintf("tec-%d-%d@ct1-migrate", postID, o.Sequence))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(title)
		if e.AllDay {
			ve.SetAllDayStartAt(o.StartDate)
			ve.SetAllDayEndAt(o.EndDate)
		} else {
			ve.SetStartAt(o.StartDateUTC)
			ve.SetEndAt(o.EndDateUTC)
		}
		ve.SetProperty(ical.ComponentPropertySequence, strconv.Itoa(o.Sequence))
		ve.SetProperty(propertyPostID, strconv.FormatInt(postID, 10))
	}
	return nil
}

// Write serializes the calendar of the given posts to w and returns the
// number of VEVENTs written
func (x *Exporter) Write(ctx context.Context, w io.Writer, postIDs ...int64) (int, error) {
	cal, err := x.Calendar(ctx, postIDs...)
	if err != nil {
		return 0, err
	}
	if err := cal.SerializeTo(w); err != nil {
		return 0, fmt.Errorf("serialize calendar: %w", err)
	}
	return len(cal.Events()), nil
}
