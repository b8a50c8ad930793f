// Package null provides a catalog store that keeps nothing. It turns the
// cache into a pass-through to the catalog source.
package null

import (
	"context"
	"iter"

	"ollama-catalog/internal/core/domain"
)

type CatalogNullStorage struct{}

func NewCatalogNullStorage() *CatalogNullStorage {
	return &CatalogNullStorage{}
}

func (CatalogNullStorage) Listings(context.Context) iter.Seq2[domain.ModelListing, error] {
	return func(func(domain.ModelListing, error) bool) {}
}

func (CatalogNullStorage) ListingDetails(context.Context) iter.Seq2[domain.ModelListingDetails, error] {
	return func(func(domain.ModelListingDetails, error) bool) {}
}

func (CatalogNullStorage) FindListingDetails(context.Context, string) (*domain.ModelListingDetails, error) {
	return nil, nil
}

func (CatalogNullStorage) UpsertListings(context.Context, ...domain.ModelListing) error {
	return nil
}

func (CatalogNullStorage) UpsertListingDetails(context.Context, ...domain.ModelListingDetails) error {
	return nil
}

func (CatalogNullStorage) DeleteListings(context.Context, ...string) ([]domain.ModelListing, error) {
	return nil, nil
}

func (CatalogNullStorage) DeleteListingDetails(context.Context, ...string) ([]domain.ModelListingDetails, error) {
	return nil, nil
}
