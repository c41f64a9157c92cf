package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// EventHash returns the hash of the event columns an upsert compares
func EventHash(e *models.Event) string {
	h := sha256.New()
	for _, v := range []string{
		strconv.FormatInt(e.PostID, 10),
		e.StartDate.Format(timeLayout),
		e.EndDate.Format(timeLayout),
		e.Timezone,
		e.StartDateUTC.UTC().Format(timeLayout),
		e.EndDateUTC.UTC().Format(timeLayout),
		strconv.FormatInt(e.Duration, 10),
		strconv.FormatBool(e.AllDay),
		e.RSet,
	} {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UpsertEvent inserts or updates the event keyed by its post ID and returns
// the number of rows changed: 0 when the stored event is identical.
func (s *Store) UpsertEvent(ctx context.Context, e *models.Event) (int64, error) {
	if e.PostID <= 0 {
		return 0, errors.New("upsert event: missing post ID")
	}
	if e.Timezone == "" {
		e.Timezone = "UTC"
	}
	e.Hash = EventHash(e)

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tec_events (post_id, start_date, end_date, timezone, start_date_utc, end_date_utc, duration, all_day, rset, hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (post_id) DO UPDATE SET
		   start_date = excluded.start_date,
		   end_date = excluded.end_date,
		   timezone = excluded.timezone,
		   start_date_utc = excluded.start_date_utc,
		   end_date_utc = excluded.end_date_utc,
		   duration = excluded.duration,
		   all_day = excluded.all_day,
		   rset = excluded.rset,
		   hash = excluded.hash,
		   updated_at = excluded.updated_at
		 WHERE tec_events.hash != excluded.hash`,
		e.PostID,
		e.StartDate.Format(timeLayout),
		e.EndDate.Format(timeLayout),
		e.Timezone,
		e.StartDateUTC.UTC().Format(timeLayout),
		e.EndDateUTC.UTC().Format(timeLayout),
		e.Duration,
		boolInt(e.AllDay),
		e.RSet,
		e.Hash,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert event %d: %w", e.PostID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// FindEvent returns the event for a post, or nil when there is none
func (s *Store) FindEvent(ctx context.Context, postID int64) (*models.Event, error) {
	var (
		e                                    models.Event
		start, end, startUTC, endUTC, update string
		allDay                               int
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT event_id, post_id, start_date, end_date, timezone, start_date_utc, end_date_utc, duration, all_day, rset, hash, updated_at
		 FROM tec_events WHERE post_id = ?`,
		postID,
	).Scan(&e.EventID, &e.PostID, &start, &end, &e.Timezone, &startUTC, &endUTC, &e.Duration, &allDay, &e.RSet, &e.Hash, &update)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event %d: %w", postID, err)
	}

	loc := location(e.Timezone)
	if e.StartDate, err = time.ParseInLocation(timeLayout, start, loc); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if e.EndDate, err = time.ParseInLocation(timeLayout, end, loc); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if e.StartDateUTC, err = time.Parse(timeLayout, startUTC); err != nil {
		return nil, fmt.Errorf("parse start_date_utc: %w", err)
	}
	if e.EndDateUTC, err = time.Parse(timeLayout, endUTC); err != nil {
		return nil, fmt.Errorf("parse end_date_utc: %w", err)
	}
	e.UpdatedAt, _ = time.Parse(timeLayout, update)
	e.AllDay = allDay != 0

	return &e, nil
}

// ListEventPostIDs returns the post IDs of all normalized events
func (s *Store) ListEventPostIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT post_id FROM tec_events ORDER BY post_id")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteEvent removes the event of a post and its occurrences. It reports
// whether an event existed.
func (s *Store) DeleteEvent(ctx context.Context, postID int64) (bool, error) {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM tec_occurrences WHERE post_id = ?", postID); err != nil {
		return false, fmt.Errorf("delete occurrences of %d: %w", postID, err)
	}
	res, err := s.q.ExecContext(ctx, "DELETE FROM tec_events WHERE post_id = ?", postID)
	if err != nil {
		return false, fmt.Errorf("delete event %d: %w", postID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ReplaceOccurrences replaces the occurrences of an event
func (s *Store) ReplaceOccurrences(ctx context.Context, eventID int64, occurrences []models.Occurrence) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM tec_occurrences WHERE event_id = ?", eventID); err != nil {
		return fmt.Errorf("delete occurrences of event %d: %w", eventID, err)
	}
	for _, o := range occurrences {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO tec_occurrences (event_id, post_id, start_date, end_date, start_date_utc, end_date_utc, duration, has_recurrence, sequence, hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eventID,
			o.PostID,
			o.StartDate.Format(timeLayout),
			o.EndDate.Format(timeLayout),
			o.StartDateUTC.UTC().Format(timeLayout),
			o.EndDateUTC.UTC().Format(timeLayout),
			o.Duration,
			boolInt(o.HasRecurrence),
			o.Sequence,
			o.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert occurrence %d of event %d: %w", o.Sequence, eventID, err)
		}
	}
	return nil
}

// CountOccurrences returns the number of occurrences stored for a post
func (s *Store) CountOccurrences(ctx context.Context, postID int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tec_occurrences WHERE post_id = ?", postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count occurrences of %d: %w", postID, err)
	}
	return n, nil
}

// ListOccurrences returns the occurrences of a post ordered by start
func (s *Store) ListOccurrences(ctx context.Context, postID int64) ([]models.Occurrence, error) {
	e, err := s.FindEvent(ctx, postID)
	if err != nil || e == nil {
		return nil, err
	}
	loc := location(e.Timezone)

	rows, err := s.q.QueryContext(ctx,
		`SELECT occurrence_id, event_id, post_id, start_date, end_date, start_date_utc, end_date_utc, duration, has_recurrence, sequence, hash
		 FROM tec_occurrences WHERE post_id = ? ORDER BY start_date_utc, sequence`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query occurrences of %d: %w", postID, err)
	}
	defer rows.Close()

	var out []models.Occurrence
	for rows.Next() {
		var (
			o                            models.Occurrence
			start, end, startUTC, endUTC string
			recurring                    int
		)
		if err := rows.Scan(&o.OccurrenceID, &o.EventID, &o.PostID, &start, &end, &startUTC, &endUTC, &o.Duration, &recurring, &o.Sequence, &o.Hash); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		o.StartDate, _ = time.ParseInLocation(timeLayout, start, loc)
		o.EndDate, _ = time.ParseInLocation(timeLayout, end, loc)
		o.StartDateUTC, _ = time.Parse(timeLayout, startUTC)
		o.EndDateUTC, _ = time.Parse(timeLayout, endUTC)
		o.HasRecurrence = recurring != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
