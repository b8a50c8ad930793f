package port

import (
	"context"

	"ollama-catalog/internal/core/domain"
)

type CatalogEventsPort interface {
	PublishSweep(ctx context.Context, report domain.SweepReport) error
}

// EventListenerPort is an inbound adapter that runs until ctx is cancelled.
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
