// Package memory holds the process-lifetime reference implementation of
// the catalog store.
package memory

import (
	"context"
	"iter"
	"sync"

	"ollama-catalog/internal/core/domain"
)

// CatalogMemoryStorage implements port.CatalogStoragePort in memory.
// Upserts insert names that are not yet stored and leave stored records
// untouched. Safe for concurrent use.
type CatalogMemoryStorage struct {
	mu       sync.RWMutex
	listings *table[domain.ModelListing]
	details  *table[domain.ModelListingDetails]
}

func NewCatalogMemoryStorage() *CatalogMemoryStorage {
	return &CatalogMemoryStorage{
		listings: newTable[domain.ModelListing](),
		details:  newTable[domain.ModelListingDetails](),
	}
}

func (s *CatalogMemoryStorage) Listings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	s.mu.RLock()
	rows := s.listings.snapshot()
	s.mu.RUnlock()
	return yieldAll(ctx, rows, domain.ModelListing.Clone)
}

func (s *CatalogMemoryStorage) ListingDetails(ctx context.Context) iter.Seq2[domain.ModelListingDetails, error] {
	s.mu.RLock()
	rows := s.details.snapshot()
	s.mu.RUnlock()
	return yieldAll(ctx, rows, domain.ModelListingDetails.Clone)
}

func (s *CatalogMemoryStorage) FindListingDetails(ctx context.Context, name string) (*domain.ModelListingDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.details.get(name)
	if !ok {
		return nil, nil
	}
	found := row.Clone()
	return &found, nil
}

func (s *CatalogMemoryStorage) UpsertListings(ctx context.Context, listings ...domain.ModelListing) error {
	_, err := s.InsertListings(ctx, listings...)
	return err
}

func (s *CatalogMemoryStorage) UpsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) error {
	_, err := s.InsertListingDetails(ctx, details...)
	return err
}

// InsertListings is UpsertListings that also reports the names it added,
// in insertion order. On cancellation the names added so far are returned
// with the error.
func (s *CatalogMemoryStorage) InsertListings(ctx context.Context, listings ...domain.ModelListing) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAll(ctx, s.listings, listings, func(l domain.ModelListing) string { return l.Name }, domain.ModelListing.Clone)
}

// InsertListingDetails is the details counterpart of InsertListings.
func (s *CatalogMemoryStorage) InsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAll(ctx, s.details, details, func(d domain.ModelListingDetails) string { return d.Name }, domain.ModelListingDetails.Clone)
}

func (s *CatalogMemoryStorage) DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeAll(ctx, s.listings, names)
}

func (s *CatalogMemoryStorage) DeleteListingDetails(ctx context.Context, names ...string) ([]domain.ModelListingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeAll(ctx, s.details, names)
}

func insertAll[T any](ctx context.Context, t *table[T], rows []T, key func(T) string, clone func(T) T) ([]string, error) {
	var inserted []string
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if name := key(row); t.insert(name, clone(row)) {
			inserted = append(inserted, name)
		}
	}
	return inserted, nil
}

func yieldAll[T any](ctx context.Context, rows []T, clone func(T) T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(clone(row), nil) {
				return
			}
		}
	}
}

// removeAll stops at the first cancelled check and returns what was
// removed so far.
func removeAll[T any](ctx context.Context, t *table[T], names []string) ([]T, error) {
	var removed []T
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if row, ok := t.remove(name); ok {
			removed = append(removed, row)
		}
	}
	return removed, nil
}
