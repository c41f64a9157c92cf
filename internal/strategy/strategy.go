// Package strategy migrates single legacy events into the custom tables.
//
// Each legacy event shape has a Strategy. A strategy is constructed for one
// post and validates on construction that the post has the shape it
// handles. Apply writes the custom table rows and records the outcome on the
// event report; Cancel and Undo remove what Apply wrote.
package strategy

import (
	"context"
	"log/slog"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
)

// Strategy migrates one legacy event
type Strategy interface {
	// Slug identifies the strategy in reports
	Slug() string
	// Apply migrates the event and records the outcome on the report.
	Apply(ctx context.Context, report *models.EventReport) (*models.EventReport, error)
	// Cancel reverses Apply during a migration in progress.
	Cancel(ctx context.Context) (*models.EventReport, error)
	// Undo reverses Apply after the migration completed.
	Undo(ctx context.Context) (*models.EventReport, error)
}

// EventStore persists normalized events, occurrences and series
type EventStore interface {
	UpsertEvent(ctx context.Context, e *models.Event) (int64, error)
	FindEvent(ctx context.Context, postID int64) (*models.Event, error)
	DeleteEvent(ctx context.Context, postID int64) (bool, error)
	ReplaceOccurrences(ctx context.Context, eventID int64, occurrences []models.Occurrence) error
	CountOccurrences(ctx context.Context, postID int64) (int, error)
	CreateSeries(ctx context.Context, series *models.Series) (int64, error)
	FindSeries(ctx context.Context, originPostID int64) (*models.Series, error)
	DeleteSeries(ctx context.Context, originPostID int64) error
	TransactionsSupported() bool
}

// PostStore reads and clones legacy posts
type PostStore interface {
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ClonePost(ctx context.Context, id int64) (int64, error)
	DeletePost(ctx context.Context, id int64) error
	ListClones(ctx context.Context, originID int64) ([]int64, error)
}

// Deps are the collaborators of a strategy
type Deps struct {
	Store    EventStore
	Posts    PostStore
	Expander recurrence.Expander
	PostType string
	Logger   *slog.Logger
}

func (d Deps) postType() string {
	if d.PostType == "" {
		return models.DefaultPostType
	}
	return d.PostType
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// loadEvent loads the post and checks it is an event
func loadEvent(ctx context.Context, d Deps, postID int64) (*models.Post, error) {
	post, err := d.Posts.GetPost(ctx, postID)
	if err != nil {
		return nil, wrapError(KindNotAnEvent, postID, err, "cannot load post")
	}
	if post == nil {
		return nil, newError(KindNotAnEvent, postID, "post does not exist")
	}
	if !post.IsEvent(d.postType()) {
		return nil, newError(KindNotAnEvent, postID, "post type %q is not an event", post.Type)
	}
	return post, nil
}

// reversal builds the report returned by Cancel and Undo
func reversal(post *models.Post, slug string) *models.EventReport {
	return models.NewEventReport(post).AddStrategy(slug)
}
