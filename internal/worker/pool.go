package worker

import (
	"context"
	"sync"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/pkg/config"
	"golang.org/x/sync/errgroup"
)

// Pool manages a pool of workers for concurrent processing
type Pool struct {
	config        *config.Config
	workers       int
	retryAttempts int
	retryDelay    time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg *config.Config) *Pool {
	workers := cfg.Concurrency.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		config:        cfg,
		workers:       workers,
		retryAttempts: cfg.Concurrency.RetryAttempts,
		retryDelay:    cfg.Concurrency.RetryDelay,
	}
}

// WorkFunc is the function type for work items
type WorkFunc func(ctx context.Context, postID int64) error

// LoadFunc loads a legacy post
type LoadFunc func(ctx context.Context, postID int64) (*models.Post, error)

// ProgressCallback is called after each item is processed
type ProgressCallback func()

// Execute executes the work function for all post IDs using the worker pool
func (p *Pool) Execute(ctx context.Context, ids []int64, work WorkFunc) []error {
	return p.ExecuteWithProgress(ctx, ids, work, nil)
}

// ExecuteWithProgress executes work with progress callback
func (p *Pool) ExecuteWithProgress(ctx context.Context, ids []int64, work WorkFunc, progress ProgressCallback) []error {
	errors := make([]error, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, id := range ids {
		g.Go(func() error {
			err := p.executeWithRetry(ctx, id, work)
			mu.Lock()
			errors[i] = err
			if progress != nil {
				progress()
			}
			mu.Unlock()
			return nil // Don't propagate errors to stop other goroutines
		})
	}

	g.Wait()
	return errors
}

// Prefetch loads the posts of a batch concurrently. Results keep the order
// of ids; a post that could not be loaded is nil with its error set.
func (p *Pool) Prefetch(ctx context.Context, ids []int64, load LoadFunc) ([]*models.Post, []error) {
	posts := make([]*models.Post, len(ids))
	errors := make([]error, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, id := range ids {
		g.Go(func() error {
			errors[i] = p.executeWithRetry(ctx, id, func(ctx context.Context, postID int64) error {
				post, err := load(ctx, postID)
				if err != nil {
					return err
				}
				posts[i] = post
				return nil
			})
			return nil
		})
	}

	g.Wait()
	return posts, errors
}

func (p *Pool) executeWithRetry(ctx context.Context, postID int64, work WorkFunc) error {
	var lastErr error

	for attempt := 0; attempt <= p.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := work(ctx, postID)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < p.retryAttempts {
			// Wait before retry with exponential backoff
			delay := p.retryDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
