package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ollama-catalog/internal/core/domain"
)

// GetListingDetails answers from the store when it can; otherwise it
// fetches the model page once and stores the result. Stored details are
// never refreshed.
func (c *CatalogCache) GetListingDetails(ctx context.Context, name string) (domain.ModelListingDetails, error) {
	cached, err := c.storage.FindListingDetails(ctx, name)
	if err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("catalog cache: details lookup for %s: %w", name, err)
	}
	if cached != nil {
		slog.Debug("CatalogCache: details served from store", "name", name)
		return *cached, nil
	}

	details, err := c.fetcher.GetListingDetails(ctx, name)
	if err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("catalog cache: fetching details for %s: %w", name, err)
	}
	if err := c.storage.UpsertListingDetails(ctx, details); err != nil {
		return domain.ModelListingDetails{}, fmt.Errorf("catalog cache: storing details for %s: %w", name, err)
	}
	slog.Info("CatalogCache: details fetched and stored", "name", name, "tags", len(details.Tags))
	return details, nil
}

// LastSweep returns the finish time of the last completed sweep, or the
// zero time when none is known.
func (c *CatalogCache) LastSweep(ctx context.Context) (time.Time, error) {
	if c.history == nil {
		return time.Time{}, nil
	}
	t, err := c.history.GetLastSweep(ctx, c.catalogName)
	if err != nil {
		return time.Time{}, fmt.Errorf("catalog cache: last sweep: %w", err)
	}
	return t, nil
}
