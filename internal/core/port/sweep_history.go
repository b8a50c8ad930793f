package port

import (
	"context"
	"time"
)

type SweepHistoryPort interface {
	GetLastSweep(ctx context.Context, catalogName string) (time.Time, error)
	SetLastSweep(ctx context.Context, catalogName string, t time.Time) error
}
