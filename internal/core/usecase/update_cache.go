package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ollama-catalog/internal/core/domain"
)

// UpdateCache walks the whole catalog, inserting names the store has not
// seen. Only after a complete walk, and only when removeUnlisted is set,
// are stored listings missing from the walk deleted.
//
// An error or cancellation during the walk aborts the sweep with nothing
// deleted. A delete failure still finishes the sweep; the report then
// lists what was pruned before the failure and the error is returned.
func (c *CatalogCache) UpdateCache(ctx context.Context, removeUnlisted bool) (domain.SweepReport, error) {
	report := domain.SweepReport{
		ID:             c.newID(),
		State:          domain.SweepWalking,
		RemoveUnlisted: removeUnlisted,
		StartedAt:      c.now(),
	}
	slog.Info("CatalogCache: sweep started", "sweep", report.ID, "remove_unlisted", removeUnlisted)

	visited := make(map[string]struct{})
	for listing, err := range c.fetcher.EnumerateListings(ctx) {
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return c.abort(ctx, report, len(visited), fmt.Errorf("catalog cache: sweep walk: %w", err))
		}
		if _, seen := visited[listing.Name]; seen {
			continue
		}
		visited[listing.Name] = struct{}{}
		if err := c.storage.UpsertListings(ctx, listing); err != nil {
			return c.abort(ctx, report, len(visited), fmt.Errorf("catalog cache: sweep walk: storing %s: %w", listing.Name, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return c.abort(ctx, report, len(visited), fmt.Errorf("catalog cache: sweep walk: %w", err))
	}

	report.Visited = len(visited)
	report.State = domain.SweepReconciling

	var reconcileErr error
	if removeUnlisted {
		report.Pruned, reconcileErr = c.pruneUnvisited(ctx, visited)
	}

	report.State = domain.SweepDone
	report.FinishedAt = c.now()
	if reconcileErr != nil {
		report.Error = reconcileErr.Error()
		slog.Error("CatalogCache: sweep finished with reconcile error", "sweep", report.ID, "pruned", len(report.Pruned), "error", reconcileErr)
	} else {
		slog.Info("CatalogCache: sweep finished", "sweep", report.ID, "visited", report.Visited, "pruned", len(report.Pruned))
	}

	c.recordSweep(ctx, report)
	c.publish(ctx, report)
	return report, reconcileErr
}

// pruneUnvisited reads the full listing set before deleting anything.
func (c *CatalogCache) pruneUnvisited(ctx context.Context, visited map[string]struct{}) ([]string, error) {
	var stale []string
	for listing, err := range c.storage.Listings(ctx) {
		if err != nil {
			return nil, fmt.Errorf("catalog cache: sweep reconcile: %w", err)
		}
		if _, ok := visited[listing.Name]; !ok {
			stale = append(stale, listing.Name)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}

	removed, err := c.storage.DeleteListings(ctx, stale...)
	pruned := make([]string, 0, len(removed))
	for _, l := range removed {
		pruned = append(pruned, l.Name)
	}
	if err != nil {
		return pruned, fmt.Errorf("catalog cache: sweep reconcile: %w", err)
	}
	return pruned, nil
}

func (c *CatalogCache) abort(ctx context.Context, report domain.SweepReport, visited int, err error) (domain.SweepReport, error) {
	report.State = domain.SweepAborted
	report.Visited = visited
	report.Error = err.Error()
	report.FinishedAt = c.now()
	slog.Warn("CatalogCache: sweep aborted, nothing deleted", "sweep", report.ID, "visited", visited, "error", err)

	c.publish(ctx, report)
	return report, err
}

// recordSweep and publish never fail the sweep itself.
func (c *CatalogCache) recordSweep(ctx context.Context, report domain.SweepReport) {
	if c.history == nil {
		return
	}
	if err := c.history.SetLastSweep(context.WithoutCancel(ctx), c.catalogName, report.FinishedAt); err != nil {
		slog.Error("CatalogCache: failed to record sweep time", "sweep", report.ID, "error", err)
	}
}

func (c *CatalogCache) publish(ctx context.Context, report domain.SweepReport) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishSweep(context.WithoutCancel(ctx), report); err != nil {
		slog.Error("CatalogCache: failed to publish sweep report", "sweep", report.ID, "state", report.State, "error", err)
	}
}
