package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-catalog/internal/adapters/storetest"
	"ollama-catalog/internal/core/port"
)

var _ port.CatalogStoragePort = (*CatalogNullStorage)(nil)

func TestCatalogNullStorage_KeepsNothing(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogNullStorage()

	require.NoError(t, s.UpsertListings(ctx, storetest.Listing("a")))
	require.NoError(t, s.UpsertListingDetails(ctx, storetest.Details("a")))

	assert.Empty(t, storetest.CollectListings(t, s))
	for range s.ListingDetails(ctx) {
		t.Fatal("details enumeration must be empty")
	}

	found, err := s.FindListingDetails(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, found)

	removed, err := s.DeleteListings(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, removed)
	removedDetails, err := s.DeleteListingDetails(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, removedDetails)
}
