package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// seq keeps insertion order; name is the only key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS model_listings (
		name        TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		updated     DATE NOT NULL,
		tags        TEXT[] NOT NULL,
		seq         BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS model_listing_details (
		name          TEXT PRIMARY KEY,
		description   TEXT NOT NULL,
		version       TEXT NOT NULL,
		updated       DATE NOT NULL,
		tags          TEXT[] NOT NULL,
		file_sizes    JSONB NOT NULL,
		readme_markup TEXT NOT NULL,
		seq           BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_sweeps (
		catalog_name         VARCHAR(255) PRIMARY KEY,
		last_sweep_timestamp TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the catalog tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply catalog schema: %w", err)
		}
	}
	return nil
}
