package port

import (
	"context"
	"iter"

	"ollama-catalog/internal/core/domain"
)

// LibraryFetcherPort is the catalog source. Implementations own every
// detail of the upstream format.
type LibraryFetcherPort interface {
	// EnumerateListings walks the catalog page by page. The sequence is lazy
	// and single-pass; it yields at most one error and then stops.
	EnumerateListings(ctx context.Context) iter.Seq2[domain.ModelListing, error]

	GetListingDetails(ctx context.Context, name string) (domain.ModelListingDetails, error)
}
