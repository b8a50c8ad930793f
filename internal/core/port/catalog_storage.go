package port

import (
	"context"
	"iter"

	"ollama-catalog/internal/core/domain"
)

// CatalogStoragePort persists listings and listing details, each keyed by
// name. Upserts insert only absent names and never overwrite stored fields.
type CatalogStoragePort interface {
	Listings(ctx context.Context) iter.Seq2[domain.ModelListing, error]
	ListingDetails(ctx context.Context) iter.Seq2[domain.ModelListingDetails, error]

	// FindListingDetails returns nil, nil when name is not stored.
	FindListingDetails(ctx context.Context, name string) (*domain.ModelListingDetails, error)

	UpsertListings(ctx context.Context, listings ...domain.ModelListing) error
	UpsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) error

	// DeleteListings returns the records that existed and were removed;
	// unknown names are skipped.
	DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error)
	DeleteListingDetails(ctx context.Context, names ...string) ([]domain.ModelListingDetails, error)
}
