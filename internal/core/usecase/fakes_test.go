package usecase

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"ollama-catalog/internal/adapters/memory"
	"ollama-catalog/internal/core/domain"
)

var refDay = time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)

func listing(name string) domain.ModelListing {
	return domain.ModelListing{Name: name, Description: "model " + name, Updated: refDay, Tags: []string{domain.LatestTag}}
}

func pageOf(names ...string) []domain.ModelListing {
	page := make([]domain.ModelListing, 0, len(names))
	for _, n := range names {
		page = append(page, listing(n))
	}
	return page
}

// fakeFetcher serves pages lazily, one "fetch" per page, checking ctx
// before each like the real source.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   [][]domain.ModelListing
	failAt  int // 1-based page that fails, 0 for none
	failErr error
	fetches int

	afterPage func(page int)

	details        map[string]domain.ModelListingDetails
	detailsFetches map[string]int
}

func newFakeFetcher(pages ...[]domain.ModelListing) *fakeFetcher {
	return &fakeFetcher{pages: pages, details: map[string]domain.ModelListingDetails{}, detailsFetches: map[string]int{}}
}

func (f *fakeFetcher) EnumerateListings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return func(yield func(domain.ModelListing, error) bool) {
		for i, page := range f.pages {
			if err := ctx.Err(); err != nil {
				yield(domain.ModelListing{}, err)
				return
			}
			f.mu.Lock()
			f.fetches++
			f.mu.Unlock()
			if f.failAt == i+1 {
				yield(domain.ModelListing{}, f.failErr)
				return
			}
			for _, l := range page {
				if !yield(l, nil) {
					return
				}
			}
			if f.afterPage != nil {
				f.afterPage(i + 1)
			}
		}
	}
}

func (f *fakeFetcher) GetListingDetails(_ context.Context, name string) (domain.ModelListingDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsFetches[name]++
	d, ok := f.details[name]
	if !ok {
		return domain.ModelListingDetails{}, &domain.TransportError{URL: "/library/" + name, StatusCode: 404, Err: errors.New("Not Found")}
	}
	return d, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// faultyStore wraps the memory store and fails deletes after failDeleteAfter
// names, and upserts of failUpsert.
type faultyStore struct {
	*memory.CatalogMemoryStorage
	failDeleteAfter int // -1 for never
	failUpsert      string
	deleteCalls     int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{CatalogMemoryStorage: memory.NewCatalogMemoryStorage(), failDeleteAfter: -1}
}

var errStore = errors.New("store unavailable")

func (s *faultyStore) UpsertListings(ctx context.Context, listings ...domain.ModelListing) error {
	for _, l := range listings {
		if l.Name == s.failUpsert {
			return errStore
		}
	}
	return s.CatalogMemoryStorage.UpsertListings(ctx, listings...)
}

func (s *faultyStore) DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error) {
	s.deleteCalls++
	if s.failDeleteAfter >= 0 && len(names) > s.failDeleteAfter {
		removed, err := s.CatalogMemoryStorage.DeleteListings(ctx, names[:s.failDeleteAfter]...)
		if err != nil {
			return removed, err
		}
		return removed, errStore
	}
	return s.CatalogMemoryStorage.DeleteListings(ctx, names...)
}

type fakeHistory struct {
	last   time.Time
	sets   int
	setErr error
}

func (h *fakeHistory) GetLastSweep(context.Context, string) (time.Time, error) {
	return h.last, nil
}

func (h *fakeHistory) SetLastSweep(_ context.Context, _ string, t time.Time) error {
	h.sets++
	if h.setErr != nil {
		return h.setErr
	}
	h.last = t
	return nil
}

type fakeEvents struct {
	reports []domain.SweepReport
	err     error
}

func (e *fakeEvents) PublishSweep(_ context.Context, report domain.SweepReport) error {
	e.reports = append(e.reports, report)
	return e.err
}
