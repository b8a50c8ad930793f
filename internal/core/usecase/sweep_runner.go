package usecase

import (
	"context"
	"errors"
	"sync"

	"ollama-catalog/internal/core/domain"
)

var ErrSweepInProgress = errors.New("catalog sweep already in progress")

// SweepRunner serializes UpdateCache calls from every entry point that
// shares one store. A call made while a sweep runs fails fast with
// ErrSweepInProgress instead of queueing.
type SweepRunner struct {
	cache *CatalogCache
	mu    sync.Mutex
}

func NewSweepRunner(cache *CatalogCache) *SweepRunner {
	return &SweepRunner{cache: cache}
}

func (r *SweepRunner) RunSweep(ctx context.Context, removeUnlisted bool) (domain.SweepReport, error) {
	if !r.mu.TryLock() {
		return domain.SweepReport{}, ErrSweepInProgress
	}
	defer r.mu.Unlock()
	return r.cache.UpdateCache(ctx, removeUnlisted)
}
