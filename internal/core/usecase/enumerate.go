package usecase

import (
	"context"
	"fmt"
	"iter"

	"ollama-catalog/internal/core/domain"
)

// EnumerateCached streams the stored listings without touching the source
// or mutating the store.
func (c *CatalogCache) EnumerateCached(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return func(yield func(domain.ModelListing, error) bool) {
		for listing, err := range c.storage.Listings(ctx) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(domain.ModelListing{}, fmt.Errorf("catalog cache: cached listings: %w", err))
				return
			}
			if !yield(listing, nil) {
				return
			}
		}
	}
}

// EnumerateAndRefresh streams the live catalog and stores every listing
// before handing it out. When the consumer stops or ctx is cancelled,
// exactly the listings already yielded have been stored.
func (c *CatalogCache) EnumerateAndRefresh(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return func(yield func(domain.ModelListing, error) bool) {
		for listing, err := range c.fetcher.EnumerateListings(ctx) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(domain.ModelListing{}, fmt.Errorf("catalog cache: refresh: %w", err))
				return
			}
			if err := c.storage.UpsertListings(ctx, listing); err != nil {
				yield(domain.ModelListing{}, fmt.Errorf("catalog cache: refresh: storing %s: %w", listing.Name, err))
				return
			}
			if !yield(listing, nil) {
				return
			}
		}
	}
}
