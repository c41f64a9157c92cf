package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// MetaSplitFrom marks posts cloned from a split legacy event
const MetaSplitFrom = "_tec_ct1_split_from"

// GetPost returns a legacy post and its meta, or nil when there is none
func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	p := &models.Post{Meta: make(map[string]string)}
	err := s.q.QueryRowContext(ctx,
		"SELECT ID, post_type, post_status, post_title, post_content FROM wp_posts WHERE ID = ?",
		id,
	).Scan(&p.ID, &p.Type, &p.Status, &p.Title, &p.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query post %d: %w", id, err)
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT meta_key, meta_value FROM wp_postmeta WHERE post_id = ? ORDER BY meta_id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query meta of %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		// First value wins, like get_post_meta with $single.
		if _, ok := p.Meta[k]; !ok {
			p.Meta[k] = v
		}
	}
	return p, rows.Err()
}

const eventFilter = `post_type = ? AND post_status NOT IN ('trash', 'auto-draft')
	AND NOT EXISTS (SELECT 1 FROM wp_postmeta m WHERE m.post_id = wp_posts.ID AND m.meta_key = '` + MetaSplitFrom + `')`

// ListEventIDs returns up to limit legacy event IDs greater than after, in
// ascending order. Posts cloned by a split are not listed.
func (s *Store) ListEventIDs(ctx context.Context, postType string, after int64, limit int) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT ID FROM wp_posts WHERE ID > ? AND "+eventFilter+" ORDER BY ID LIMIT ?",
		after, postType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query event ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountEvents returns the number of legacy events to migrate
func (s *Store) CountEvents(ctx context.Context, postType string) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM wp_posts WHERE "+eventFilter, postType).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// InsertPost inserts a legacy post with its meta and returns its ID
func (s *Store) InsertPost(ctx context.Context, p *models.Post) (int64, error) {
	status := p.Status
	if status == "" {
		status = "publish"
	}
	var (
		res sql.Result
		err error
	)
	if p.ID > 0 {
		res, err = s.q.ExecContext(ctx,
			"INSERT INTO wp_posts (ID, post_type, post_status, post_title, post_content) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.Type, status, p.Title, p.Content,
		)
	} else {
		res, err = s.q.ExecContext(ctx,
			"INSERT INTO wp_posts (post_type, post_status, post_title, post_content) VALUES (?, ?, ?, ?)",
			p.Type, status, p.Title, p.Content,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for k, v := range p.Meta {
		if err := s.addMeta(ctx, id, k, v); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s *Store) addMeta(ctx context.Context, postID int64, key, value string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)",
		postID, key, value,
	)
	if err != nil {
		return fmt.Errorf("insert meta %s of %d: %w", key, postID, err)
	}
	return nil
}

// ClonePost copies a legacy post and its non-recurrence meta into a new
// post marked as split from the original, returning the new ID
func (s *Store) ClonePost(ctx context.Context, id int64) (int64, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("clone post %d: not found", id)
	}

	meta := make(map[string]string, len(p.Meta)+1)
	for k, v := range p.Meta {
		if k == models.MetaRecurrence {
			continue
		}
		meta[k] = v
	}
	meta[MetaSplitFrom] = strconv.FormatInt(id, 10)

	return s.InsertPost(ctx, &models.Post{
		Type:    p.Type,
		Status:  p.Status,
		Title:   p.Title,
		Content: p.Content,
		Meta:    meta,
	})
}

// DeletePost removes a legacy post and its meta
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM wp_postmeta WHERE post_id = ?", id); err != nil {
		return fmt.Errorf("delete meta of %d: %w", id, err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM wp_posts WHERE ID = ?", id); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

// ListClones returns the IDs of the posts cloned from a split post
func (s *Store) ListClones(ctx context.Context, originID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT post_id FROM wp_postmeta WHERE meta_key = ? AND meta_value = ? ORDER BY post_id",
		MetaSplitFrom, strconv.FormatInt(originID, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("query clones of %d: %w", originID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan clone: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
