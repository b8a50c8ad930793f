// Package storetest holds the behaviour every persistent catalog store
// must share. Store packages call Run from their tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-catalog/internal/core/domain"
	"ollama-catalog/internal/core/port"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) port.CatalogStoragePort

var day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func Listing(name string, tags ...string) domain.ModelListing {
	return domain.ModelListing{
		Name:        name,
		Description: "model " + name,
		Updated:     day,
		Tags:        append([]string{domain.LatestTag}, tags...),
	}
}

func Details(name string) domain.ModelListingDetails {
	return domain.ModelListingDetails{
		Name:        name,
		Description: "model " + name,
		Version:     "ff02c3702f32",
		Updated:     day,
		Tags:        []string{domain.LatestTag, "7b"},
		FileSizes: map[string]domain.FileSize{
			domain.LatestTag: {Size: 4.7, Unit: "GB"},
			"7b":             {Size: 4.7, Unit: "GB"},
		},
		ReadmeMarkup: "<p>" + name + "</p>",
	}
}

func CollectListings(t *testing.T, s port.CatalogStoragePort) []domain.ModelListing {
	t.Helper()
	var out []domain.ModelListing
	for l, err := range s.Listings(context.Background()) {
		require.NoError(t, err)
		out = append(out, l)
	}
	return out
}

func ListingNames(t *testing.T, s port.CatalogStoragePort) []string {
	t.Helper()
	var names []string
	for _, l := range CollectListings(t, s) {
		names = append(names, l.Name)
	}
	return names
}

// Run exercises the shared store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := newStore(t)
		assert.Empty(t, CollectListings(t, s))
		found, err := s.FindListingDetails(ctx, "gemma2")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("listings keep insertion order", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("b"), Listing("a")))
		require.NoError(t, s.UpsertListings(ctx, Listing("c/d", "7b")))

		got := CollectListings(t, s)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"b", "a", "c/d"}, []string{got[0].Name, got[1].Name, got[2].Name})
		assert.Equal(t, Listing("c/d", "7b"), got[2])
	})

	t.Run("upsert never overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("a")))

		changed := Listing("a", "70b")
		changed.Description = "changed"
		require.NoError(t, s.UpsertListings(ctx, changed))

		assert.Equal(t, []domain.ModelListing{Listing("a")}, CollectListings(t, s))
	})

	t.Run("delete returns removed records only", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("a"), Listing("b"), Listing("c")))

		removed, err := s.DeleteListings(ctx, "b", "missing")
		require.NoError(t, err)
		assert.Equal(t, []domain.ModelListing{Listing("b")}, removed)
		assert.Equal(t, []string{"a", "c"}, ListingNames(t, s))

		removed, err = s.DeleteListings(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("deleted names can be inserted again", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("a"), Listing("b")))
		_, err := s.DeleteListings(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, s.UpsertListings(ctx, Listing("a", "7b")))
		assert.Equal(t, []domain.ModelListing{Listing("b"), Listing("a", "7b")}, CollectListings(t, s))
	})

	t.Run("details round trip", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListingDetails(ctx, Details("gemma2")))

		found, err := s.FindListingDetails(ctx, "gemma2")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, Details("gemma2"), *found)

		changed := Details("gemma2")
		changed.Version = "0000"
		require.NoError(t, s.UpsertListingDetails(ctx, changed))
		found, err = s.FindListingDetails(ctx, "gemma2")
		require.NoError(t, err)
		assert.Equal(t, "ff02c3702f32", found.Version)

		var all []domain.ModelListingDetails
		for d, err := range s.ListingDetails(ctx) {
			require.NoError(t, err)
			all = append(all, d)
		}
		assert.Equal(t, []domain.ModelListingDetails{Details("gemma2")}, all)

		removed, err := s.DeleteListingDetails(ctx, "gemma2", "llava")
		require.NoError(t, err)
		assert.Equal(t, []domain.ModelListingDetails{Details("gemma2")}, removed)
		found, err = s.FindListingDetails(ctx, "gemma2")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("details and listings are independent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("gemma2")))
		require.NoError(t, s.UpsertListingDetails(ctx, Details("gemma2")))

		_, err := s.DeleteListings(ctx, "gemma2")
		require.NoError(t, err)
		found, err := s.FindListingDetails(ctx, "gemma2")
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("cancelled enumeration yields the context error", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertListings(ctx, Listing("a"), Listing("b")))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		var gotErr error
		for _, err := range s.Listings(cctx) {
			if err != nil {
				gotErr = err
				break
			}
		}
		assert.ErrorIs(t, gotErr, context.Canceled)
	})
}
