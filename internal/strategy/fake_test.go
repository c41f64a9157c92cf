package strategy

import (
	"context"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/recurrence"
)

// fakeStore is an in-memory store with failure injection
type fakeStore struct {
	posts       map[int64]*models.Post
	events      map[int64]*models.Event
	occurrences map[int64][]models.Occurrence
	series      map[int64]*models.Series
	clones      map[int64][]int64

	transactions  bool
	upsertRows    int64
	upsertErr     error
	upsertFailAt  int // fails the nth upsert with upsertErr
	upserts       int
	hideEvents    bool
	countOverride int
	finds         int
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:       make(map[int64]*models.Post),
		events:      make(map[int64]*models.Event),
		occurrences: make(map[int64][]models.Occurrence),
		series:      make(map[int64]*models.Series),
		clones:      make(map[int64][]int64),
		upsertRows:  1,
		nextID:      1000,
	}
}

func (f *fakeStore) deps() Deps {
	return Deps{Store: f, Posts: f, Expander: recurrence.NewExpander(0, 0)}
}

func (f *fakeStore) UpsertEvent(_ context.Context, e *models.Event) (int64, error) {
	f.upserts++
	if f.upsertErr != nil && (f.upsertFailAt == 0 || f.upserts == f.upsertFailAt) {
		return 0, f.upsertErr
	}
	stored := *e
	if prev, ok := f.events[e.PostID]; ok {
		stored.EventID = prev.EventID
	} else {
		f.nextID++
		stored.EventID = f.nextID
	}
	f.events[e.PostID] = &stored
	return f.upsertRows, nil
}

func (f *fakeStore) FindEvent(_ context.Context, postID int64) (*models.Event, error) {
	f.finds++
	if f.hideEvents {
		return nil, nil
	}
	return f.events[postID], nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, postID int64) (bool, error) {
	_, ok := f.events[postID]
	delete(f.events, postID)
	delete(f.occurrences, postID)
	return ok, nil
}

func (f *fakeStore) ReplaceOccurrences(_ context.Context, _ int64, occ []models.Occurrence) error {
	if len(occ) > 0 {
		f.occurrences[occ[0].PostID] = occ
	}
	return nil
}

func (f *fakeStore) CountOccurrences(_ context.Context, postID int64) (int, error) {
	if f.countOverride > 0 {
		return f.countOverride, nil
	}
	return len(f.occurrences[postID]), nil
}

func (f *fakeStore) CreateSeries(_ context.Context, s *models.Series) (int64, error) {
	f.nextID++
	s.SeriesID = f.nextID
	f.series[s.OriginPostID] = s
	return s.SeriesID, nil
}

func (f *fakeStore) FindSeries(_ context.Context, originPostID int64) (*models.Series, error) {
	return f.series[originPostID], nil
}

func (f *fakeStore) DeleteSeries(_ context.Context, originPostID int64) error {
	delete(f.series, originPostID)
	return nil
}

func (f *fakeStore) TransactionsSupported() bool {
	return f.transactions
}

func (f *fakeStore) GetPost(_ context.Context, id int64) (*models.Post, error) {
	return f.posts[id], nil
}

func (f *fakeStore) ClonePost(_ context.Context, id int64) (int64, error) {
	f.nextID++
	p := *f.posts[id]
	p.ID = f.nextID
	f.posts[p.ID] = &p
	f.clones[id] = append(f.clones[id], p.ID)
	return p.ID, nil
}

func (f *fakeStore) DeletePost(_ context.Context, id int64) error {
	delete(f.posts, id)
	for origin, ids := range f.clones {
		for i, c := range ids {
			if c == id {
				f.clones[origin] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *fakeStore) ListClones(_ context.Context, originID int64) ([]int64, error) {
	return append([]int64(nil), f.clones[originID]...), nil
}
