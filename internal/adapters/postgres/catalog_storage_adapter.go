package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ollama-catalog/internal/core/domain"
)

const (
	listingColumns = `name, description, updated, tags`
	detailsColumns = `name, description, version, updated, tags, file_sizes, readme_markup`

	insertListingSQL = `INSERT INTO model_listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING`
	insertDetailsSQL = `INSERT INTO model_listing_details (` + detailsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING`

	selectListingsSQL = `SELECT ` + listingColumns + ` FROM model_listings ORDER BY seq`
	selectDetailsSQL  = `SELECT ` + detailsColumns + ` FROM model_listing_details ORDER BY seq`
	findDetailsSQL    = `SELECT ` + detailsColumns + ` FROM model_listing_details WHERE name = $1`

	deleteListingsSQL = `DELETE FROM model_listings WHERE name = ANY($1) RETURNING ` + listingColumns
	deleteDetailsSQL  = `DELETE FROM model_listing_details WHERE name = ANY($1) RETURNING ` + detailsColumns
)

// CatalogStorageAdapter implements port.CatalogStoragePort on PostgreSQL.
// Inserts use ON CONFLICT DO NOTHING, so stored rows are never rewritten.
type CatalogStorageAdapter struct {
	pool *pgxpool.Pool
}

func NewCatalogStorageAdapter(pool *pgxpool.Pool) (*CatalogStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &CatalogStorageAdapter{pool: pool}, nil
}

func (a *CatalogStorageAdapter) Listings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return queryRows(ctx, a.pool, selectListingsSQL, pgx.RowToStructByName[domain.ModelListing])
}

func (a *CatalogStorageAdapter) ListingDetails(ctx context.Context) iter.Seq2[domain.ModelListingDetails, error] {
	return queryRows(ctx, a.pool, selectDetailsSQL, pgx.RowToStructByName[domain.ModelListingDetails])
}

func (a *CatalogStorageAdapter) FindListingDetails(ctx context.Context, name string) (*domain.ModelListingDetails, error) {
	rows, err := a.pool.Query(ctx, findDetailsSQL, name)
	if err != nil {
		return nil, fmt.Errorf("error querying details for model '%s': %w", name, err)
	}
	details, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.ModelListingDetails])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading details for model '%s': %w", name, err)
	}
	return &details, nil
}

func (a *CatalogStorageAdapter) UpsertListings(ctx context.Context, listings ...domain.ModelListing) error {
	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(insertListingSQL, l.Name, l.Description, l.Updated, l.Tags)
	}
	return a.sendBatch(ctx, batch, "listings")
}

func (a *CatalogStorageAdapter) UpsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) error {
	batch := &pgx.Batch{}
	for _, d := range details {
		batch.Queue(insertDetailsSQL, d.Name, d.Description, d.Version, d.Updated, d.Tags, d.FileSizes, d.ReadmeMarkup)
	}
	return a.sendBatch(ctx, batch, "listing details")
}

func (a *CatalogStorageAdapter) DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error) {
	removed, err := deleteReturning(ctx, a.pool, deleteListingsSQL, names, pgx.RowToStructByName[domain.ModelListing])
	if err != nil {
		return nil, err
	}
	return inRequestOrder(names, removed, func(l domain.ModelListing) string { return l.Name }), nil
}

func (a *CatalogStorageAdapter) DeleteListingDetails(ctx context.Context, names ...string) ([]domain.ModelListingDetails, error) {
	removed, err := deleteReturning(ctx, a.pool, deleteDetailsSQL, names, pgx.RowToStructByName[domain.ModelListingDetails])
	if err != nil {
		return nil, err
	}
	return inRequestOrder(names, removed, func(d domain.ModelListingDetails) string { return d.Name }), nil
}

func (a *CatalogStorageAdapter) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := a.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := int64(0)
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return fmt.Errorf("failed to insert %s into db: %w", what, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert %s into db: %w", what, err)
	}
	slog.Debug("PostgresCatalogStorage: batch applied", "kind", what, "queued", batch.Len(), "inserted", inserted)
	return nil
}

func queryRows[T any](ctx context.Context, pool *pgxpool.Pool, sql string, scan pgx.RowToFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}
		rows, err := pool.Query(ctx, sql)
		if err != nil {
			yield(zero, fmt.Errorf("error querying catalog: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			row, err := scan(rows)
			if err != nil {
				yield(zero, fmt.Errorf("error reading catalog row: %w", err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("error reading catalog rows: %w", err))
		}
	}
}

func deleteReturning[T any](ctx context.Context, pool *pgxpool.Pool, sql string, names []string, scan pgx.RowToFunc[T]) ([]T, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := pool.Query(ctx, sql, names)
	if err != nil {
		return nil, fmt.Errorf("error deleting from catalog: %w", err)
	}
	removed, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("error deleting from catalog: %w", err)
	}
	return removed, nil
}

// inRequestOrder orders RETURNING rows like the requested names.
func inRequestOrder[T any](names []string, rows []T, key func(T) string) []T {
	byName := make(map[string]T, len(rows))
	for _, row := range rows {
		byName[key(row)] = row
	}
	ordered := make([]T, 0, len(rows))
	for _, name := range names {
		if row, ok := byName[name]; ok {
			ordered = append(ordered, row)
			delete(byName, name)
		}
	}
	return ordered
}
