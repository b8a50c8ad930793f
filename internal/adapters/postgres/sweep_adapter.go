package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SweepHistoryAdapter implements port.SweepHistoryPort on the
// catalog_sweeps table.
type SweepHistoryAdapter struct {
	dbPool *pgxpool.Pool
}

func NewSweepHistoryAdapter(dbPool *pgxpool.Pool) (*SweepHistoryAdapter, error) {
	if dbPool == nil {
		return nil, fmt.Errorf("postgres sweep history: dbPool cannot be nil")
	}
	return &SweepHistoryAdapter{dbPool: dbPool}, nil
}

// GetLastSweep returns the zero time when catalogName has never completed
// a sweep.
func (r *SweepHistoryAdapter) GetLastSweep(ctx context.Context, catalogName string) (time.Time, error) {
	var lastSweep time.Time
	query := `SELECT last_sweep_timestamp FROM catalog_sweeps WHERE catalog_name = $1`

	err := r.dbPool.QueryRow(ctx, query, catalogName).Scan(&lastSweep)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("PostgresSweepHistory: no sweep recorded", "catalog", catalogName)
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("error querying last sweep for catalog '%s': %w", catalogName, err)
	}
	return lastSweep, nil
}

func (r *SweepHistoryAdapter) SetLastSweep(ctx context.Context, catalogName string, t time.Time) error {
	query := `
        INSERT INTO catalog_sweeps (catalog_name, last_sweep_timestamp)
        VALUES ($1, $2)
        ON CONFLICT (catalog_name) DO UPDATE SET last_sweep_timestamp = EXCLUDED.last_sweep_timestamp
    `
	if _, err := r.dbPool.Exec(ctx, query, catalogName, t); err != nil {
		return fmt.Errorf("error setting last sweep for catalog '%s': %w", catalogName, err)
	}
	slog.Info("PostgresSweepHistory: recorded sweep", "catalog", catalogName, "at", t.Format(time.RFC3339))
	return nil
}
