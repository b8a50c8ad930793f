// Package usecase coordinates the catalog source and the catalog store.
package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ollama-catalog/internal/core/port"
)

// DefaultCatalogName keys sweep bookkeeping when no name is configured.
const DefaultCatalogName = "ollama_library"

// CatalogCache serves catalog reads from the store and keeps the store in
// step with the source. It holds no locks: concurrent UpdateCache calls on
// one store must be serialized by the caller.
type CatalogCache struct {
	fetcher port.LibraryFetcherPort
	storage port.CatalogStoragePort
	history port.SweepHistoryPort  // optional
	events  port.CatalogEventsPort // optional

	catalogName string
	now         func() time.Time
	newID       func() string
}

type Option func(*CatalogCache)

// WithSweepHistory records the time of every completed sweep.
func WithSweepHistory(history port.SweepHistoryPort) Option {
	return func(c *CatalogCache) { c.history = history }
}

// WithEvents publishes a report for every finished or aborted sweep.
func WithEvents(events port.CatalogEventsPort) Option {
	return func(c *CatalogCache) { c.events = events }
}

func WithCatalogName(name string) Option {
	return func(c *CatalogCache) { c.catalogName = name }
}

func WithClock(now func() time.Time) Option {
	return func(c *CatalogCache) { c.now = now }
}

func NewCatalogCache(fetcher port.LibraryFetcherPort, storage port.CatalogStoragePort, opts ...Option) (*CatalogCache, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("catalog cache: fetcher cannot be nil")
	}
	if storage == nil {
		return nil, fmt.Errorf("catalog cache: storage cannot be nil")
	}
	c := &CatalogCache{
		fetcher:     fetcher,
		storage:     storage,
		catalogName: DefaultCatalogName,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalogName == "" {
		return nil, fmt.Errorf("catalog cache: catalog name cannot be empty")
	}
	return c, nil
}
