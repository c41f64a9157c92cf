package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// CreateSeries stores a series and its members, returning the series ID
func (s *Store) CreateSeries(ctx context.Context, series *models.Series) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO tec_series (origin_post_id, title) VALUES (?, ?)",
		series.OriginPostID, series.Title,
	)
	if err != nil {
		return 0, fmt.Errorf("insert series for %d: %w", series.OriginPostID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for i, m := range series.Members {
		_, err := s.q.ExecContext(ctx,
			"INSERT INTO tec_series_relationships (series_id, event_id, event_post_id, position) VALUES (?, ?, ?, ?)",
			id, m.EventID, m.PostID, i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert series member %d: %w", m.PostID, err)
		}
	}

	series.SeriesID = id
	return id, nil
}

// FindSeries returns the series created from an origin post, or nil
func (s *Store) FindSeries(ctx context.Context, originPostID int64) (*models.Series, error) {
	series := &models.Series{OriginPostID: originPostID}
	err := s.q.QueryRowContext(ctx,
		"SELECT series_id, title FROM tec_series WHERE origin_post_id = ?",
		originPostID,
	).Scan(&series.SeriesID, &series.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query series for %d: %w", originPostID, err)
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT event_post_id, event_id FROM tec_series_relationships WHERE series_id = ? ORDER BY position",
		series.SeriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("query series members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.SeriesMember
		if err := rows.Scan(&m.PostID, &m.EventID); err != nil {
			return nil, fmt.Errorf("scan series member: %w", err)
		}
		series.Members = append(series.Members, m)
	}
	return series, rows.Err()
}

// DeleteSeries removes the series created from an origin post
func (s *Store) DeleteSeries(ctx context.Context, originPostID int64) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM tec_series_relationships
		 WHERE series_id IN (SELECT series_id FROM tec_series WHERE origin_post_id = ?)`,
		originPostID,
	)
	if err != nil {
		return fmt.Errorf("delete series members for %d: %w", originPostID, err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM tec_series WHERE origin_post_id = ?", originPostID); err != nil {
		return fmt.Errorf("delete series for %d: %w", originPostID, err)
	}
	return nil
}
