package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-catalog/internal/adapters/memory"
	"ollama-catalog/internal/core/domain"
	"ollama-catalog/internal/core/port"
)

var sweepClock = time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T, fetcher port.LibraryFetcherPort, store port.CatalogStoragePort, opts ...Option) *CatalogCache {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return sweepClock })}, opts...)
	c, err := NewCatalogCache(fetcher, store, opts...)
	require.NoError(t, err)
	return c
}

func storedNames(t *testing.T, store port.CatalogStoragePort) []string {
	t.Helper()
	var names []string
	for l, err := range store.Listings(context.Background()) {
		require.NoError(t, err)
		names = append(names, l.Name)
	}
	return names
}

func seed(t *testing.T, store port.CatalogStoragePort, names ...string) {
	t.Helper()
	require.NoError(t, store.UpsertListings(context.Background(), pageOf(names...)...))
}

func TestNewCatalogCache_Validation(t *testing.T) {
	_, err := NewCatalogCache(nil, memory.NewCatalogMemoryStorage())
	assert.Error(t, err)
	_, err = NewCatalogCache(newFakeFetcher(), nil)
	assert.Error(t, err)
	_, err = NewCatalogCache(newFakeFetcher(), memory.NewCatalogMemoryStorage(), WithCatalogName(""))
	assert.Error(t, err)
}

func TestUpdateCache_AddsNewAndPrunesDelisted(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	seed(t, store, "a", "d")
	fetcher := newFakeFetcher(pageOf("a", "b"), pageOf("b", "c"))
	history := &fakeHistory{}
	events := &fakeEvents{}
	cache := newCache(t, fetcher, store, WithSweepHistory(history), WithEvents(events))

	report, err := cache.UpdateCache(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, storedNames(t, store))
	assert.Equal(t, domain.SweepDone, report.State)
	assert.True(t, report.RemoveUnlisted)
	assert.Equal(t, 3, report.Visited)
	assert.Equal(t, []string{"d"}, report.Pruned)
	assert.NotEmpty(t, report.ID)
	assert.Empty(t, report.Error)
	assert.Equal(t, 2, fetcher.fetchCount())

	assert.Equal(t, 1, history.sets)
	assert.Equal(t, sweepClock, history.last)
	require.Len(t, events.reports, 1)
	assert.Equal(t, report, events.reports[0])
}

func TestUpdateCache_KeepsUnlistedWhenNotPruning(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	seed(t, store, "a", "d")
	cache := newCache(t, newFakeFetcher(pageOf("a", "b"), pageOf("b", "c")), store)

	report, err := cache.UpdateCache(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "d", "b", "c"}, storedNames(t, store))
	assert.Equal(t, domain.SweepDone, report.State)
	assert.Empty(t, report.Pruned)
}

func TestUpdateCache_NeverOverwritesStoredListings(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	old := listing("a")
	old.Description = "stored first"
	require.NoError(t, store.UpsertListings(context.Background(), old))

	cache := newCache(t, newFakeFetcher(pageOf("a")), store)
	_, err := cache.UpdateCache(context.Background(), true)
	require.NoError(t, err)

	var got []domain.ModelListing
	for l, err := range store.Listings(context.Background()) {
		require.NoError(t, err)
		got = append(got, l)
	}
	assert.Equal(t, []domain.ModelListing{old}, got)
}

func TestUpdateCache_SourceErrorAbortsWithoutDeleting(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, "a", "d")
	fetcher := newFakeFetcher(pageOf("a", "b"), pageOf("c"))
	fetcher.failAt = 2
	fetcher.failErr = &domain.TransportError{URL: "/search?p=2", StatusCode: 500, Err: errors.New("boom")}
	history := &fakeHistory{}
	events := &fakeEvents{}
	cache := newCache(t, fetcher, store, WithSweepHistory(history), WithEvents(events))

	report, err := cache.UpdateCache(context.Background(), true)

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 500, transportErr.StatusCode)
	assert.Equal(t, domain.SweepAborted, report.State)
	assert.Equal(t, 2, report.Visited)
	assert.NotEmpty(t, report.Error)

	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, []string{"a", "d", "b"}, storedNames(t, store))
	assert.Zero(t, history.sets)
	require.Len(t, events.reports, 1)
	assert.Equal(t, domain.SweepAborted, events.reports[0].State)
}

func TestUpdateCache_CancellationAbortsWithoutDeleting(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, "a", "d")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher(pageOf("a", "b"), pageOf("c"))
	fetcher.afterPage = func(int) { cancel() }
	cache := newCache(t, fetcher, store)

	report, err := cache.UpdateCache(ctx, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.SweepAborted, report.State)
	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, []string{"a", "d", "b"}, storedNames(t, store))
	assert.Equal(t, 1, fetcher.fetchCount())
}

func TestUpdateCache_CancelledAfterLastPageStillAborts(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, "d")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher(pageOf("a"))
	fetcher.afterPage = func(int) { cancel() }
	cache := newCache(t, fetcher, store)

	report, err := cache.UpdateCache(ctx, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.SweepAborted, report.State)
	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, []string{"d", "a"}, storedNames(t, store))
}

func TestUpdateCache_StoreErrorDuringWalkAborts(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, "d")
	store.failUpsert = "b"
	cache := newCache(t, newFakeFetcher(pageOf("a", "b", "c")), store)

	report, err := cache.UpdateCache(context.Background(), true)

	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, domain.SweepAborted, report.State)
	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, []string{"d", "a"}, storedNames(t, store))
}

func TestUpdateCache_DeleteErrorStillFinishes(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, "x", "y", "a")
	store.failDeleteAfter = 1
	history := &fakeHistory{}
	cache := newCache(t, newFakeFetcher(pageOf("a")), store, WithSweepHistory(history))

	report, err := cache.UpdateCache(context.Background(), true)

	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, domain.SweepDone, report.State)
	assert.Equal(t, []string{"x"}, report.Pruned)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, []string{"y", "a"}, storedNames(t, store))
	assert.Equal(t, 1, history.sets)
}

func TestUpdateCache_BookkeepingFailuresAreNotSweepFailures(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	history := &fakeHistory{setErr: errors.New("db down")}
	events := &fakeEvents{err: errors.New("broker down")}
	cache := newCache(t, newFakeFetcher(pageOf("a")), store, WithSweepHistory(history), WithEvents(events))

	report, err := cache.UpdateCache(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepDone, report.State)
	assert.Equal(t, 1, history.sets)
	assert.Len(t, events.reports, 1)
}

func TestUpdateCache_DuplicateNamesStoredOnce(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	cache := newCache(t, newFakeFetcher(pageOf("a", "b"), pageOf("b", "a")), store)

	report, err := cache.UpdateCache(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Visited)
	assert.Equal(t, []string{"a", "b"}, storedNames(t, store))
}

func TestEnumerateCached_IsIdempotentAndOffline(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	seed(t, store, "a", "b")
	fetcher := newFakeFetcher(pageOf("z"))
	cache := newCache(t, fetcher, store)

	collect := func() []string {
		var names []string
		for l, err := range cache.EnumerateCached(context.Background()) {
			require.NoError(t, err)
			names = append(names, l.Name)
		}
		return names
	}

	assert.Equal(t, []string{"a", "b"}, collect())
	assert.Equal(t, []string{"a", "b"}, collect())
	assert.Zero(t, fetcher.fetchCount())
	assert.Equal(t, []string{"a", "b"}, storedNames(t, store))
}

func TestEnumerateCached_Cancelled(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	seed(t, store, "a")
	cache := newCache(t, newFakeFetcher(), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var gotErr error
	for _, err := range cache.EnumerateCached(ctx) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestEnumerateAndRefresh_StoresWhatWasYielded(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	fetcher := newFakeFetcher(pageOf("a", "b"), pageOf("c", "d"))
	cache := newCache(t, fetcher, store)

	var names []string
	for l, err := range cache.EnumerateAndRefresh(context.Background()) {
		require.NoError(t, err)
		names = append(names, l.Name)
		if len(names) == 3 {
			break
		}
	}

	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, []string{"a", "b", "c"}, storedNames(t, store))
	assert.Equal(t, 2, fetcher.fetchCount())
}

func TestEnumerateAndRefresh_CancelledMidway(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := newCache(t, newFakeFetcher(pageOf("a", "b", "c")), store)

	var names []string
	var gotErr error
	for l, err := range cache.EnumerateAndRefresh(ctx) {
		if err != nil {
			gotErr = err
			break
		}
		names = append(names, l.Name)
		if len(names) == 2 {
			cancel()
		}
	}

	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, []string{"a", "b"}, storedNames(t, store))
}

func TestEnumerateAndRefresh_SourceError(t *testing.T) {
	fetcher := newFakeFetcher(pageOf("a"), pageOf("b"))
	fetcher.failAt = 2
	fetcher.failErr = &domain.ParseError{Element: "ul.grid"}
	cache := newCache(t, fetcher, memory.NewCatalogMemoryStorage())

	var gotErr error
	for _, err := range cache.EnumerateAndRefresh(context.Background()) {
		gotErr = err
	}
	var parseErr *domain.ParseError
	assert.ErrorAs(t, gotErr, &parseErr)
}

func gemma2Details() domain.ModelListingDetails {
	return domain.ModelListingDetails{
		Name:        "gemma2",
		Description: "Google Gemma 2",
		Version:     "ff02c3702f32",
		Updated:     refDay,
		Tags:        []string{"latest", "27b", "2b", "9b"},
		FileSizes: map[string]domain.FileSize{
			"latest": {Size: 5.4, Unit: "GB"},
			"2b":     {Size: 1.6, Unit: "GB"},
			"9b":     {Size: 5.4, Unit: "GB"},
			"27b":    {Size: 16, Unit: "GB"},
		},
		ReadmeMarkup: "<h1>Gemma 2</h1>",
	}
}

func TestGetListingDetails_FetchesOnceThenServesFromStore(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	fetcher := newFakeFetcher()
	fetcher.details["gemma2"] = gemma2Details()
	cache := newCache(t, fetcher, store)

	first, err := cache.GetListingDetails(context.Background(), "gemma2")
	require.NoError(t, err)
	second, err := cache.GetListingDetails(context.Background(), "gemma2")
	require.NoError(t, err)

	assert.Equal(t, gemma2Details(), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.detailsFetches["gemma2"])
	assert.Contains(t, first.Tags, domain.LatestTag)
	assert.Equal(t, domain.FileSize{Size: 16, Unit: "GB"}, first.FileSizes["27b"])

	stored, err := store.FindListingDetails(context.Background(), "gemma2")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first, *stored)
}

func TestGetListingDetails_StoredDetailsAreNotRefreshed(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	stale := gemma2Details()
	stale.Version = "0000"
	require.NoError(t, store.UpsertListingDetails(context.Background(), stale))
	fetcher := newFakeFetcher()
	fetcher.details["gemma2"] = gemma2Details()
	cache := newCache(t, fetcher, store)

	got, err := cache.GetListingDetails(context.Background(), "gemma2")
	require.NoError(t, err)
	assert.Equal(t, "0000", got.Version)
	assert.Zero(t, fetcher.detailsFetches["gemma2"])
}

func TestGetListingDetails_SourceErrorIsNotCached(t *testing.T) {
	store := memory.NewCatalogMemoryStorage()
	fetcher := newFakeFetcher()
	cache := newCache(t, fetcher, store)

	_, err := cache.GetListingDetails(context.Background(), "missing")
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 404, transportErr.StatusCode)

	found, err := store.FindListingDetails(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLastSweep(t *testing.T) {
	cache := newCache(t, newFakeFetcher(), memory.NewCatalogMemoryStorage())
	last, err := cache.LastSweep(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	history := &fakeHistory{last: sweepClock}
	cache = newCache(t, newFakeFetcher(), memory.NewCatalogMemoryStorage(), WithSweepHistory(history))
	last, err = cache.LastSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sweepClock, last)
}
