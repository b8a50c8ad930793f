// Package redisstore keeps the catalog in Redis hashes, one field per model
// name holding the JSON record. A companion list per hash keeps insertion
// order.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/redis/go-redis/v9"

	"ollama-catalog/internal/core/domain"
)

// fetchChunk bounds the fields requested by one HMGET.
const fetchChunk = 200

// insertScript stores a field only when it is absent and records its
// position in the order list.
var insertScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// removeScript deletes a field and returns its previous value, or nil.
var removeScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('LREM', KEYS[2], 0, ARGV[1])
end
return v
`)

type hashKeys struct {
	hash  string
	order string
}

func keysFor(prefix, table string) hashKeys {
	hash := prefix + ":" + table
	return hashKeys{hash: hash, order: hash + ":order"}
}

// CatalogRedisStorage implements port.CatalogStoragePort and
// port.SweepHistoryPort.
type CatalogRedisStorage struct {
	client   *redis.Client
	listings hashKeys
	details  hashKeys
	sweeps   string
}

func NewCatalogRedisStorage(client *redis.Client, prefix string) (*CatalogRedisStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if prefix == "" {
		return nil, fmt.Errorf("key prefix cannot be empty")
	}
	return &CatalogRedisStorage{
		client:   client,
		listings: keysFor(prefix, "listings"),
		details:  keysFor(prefix, "details"),
		sweeps:   prefix + ":sweeps",
	}, nil
}

func (s *CatalogRedisStorage) Listings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return scanHash[domain.ModelListing](ctx, s.client, s.listings)
}

func (s *CatalogRedisStorage) ListingDetails(ctx context.Context) iter.Seq2[domain.ModelListingDetails, error] {
	return scanHash[domain.ModelListingDetails](ctx, s.client, s.details)
}

func (s *CatalogRedisStorage) FindListingDetails(ctx context.Context, name string) (*domain.ModelListingDetails, error) {
	raw, err := s.client.HGet(ctx, s.details.hash, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s failed (name=%s): %w", s.details.hash, name, err)
	}
	var details domain.ModelListingDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("parse details failed (name=%s): %w", name, err)
	}
	return &details, nil
}

func (s *CatalogRedisStorage) UpsertListings(ctx context.Context, listings ...domain.ModelListing) error {
	for _, l := range listings {
		if err := insert(ctx, s.client, s.listings, l.Name, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *CatalogRedisStorage) UpsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) error {
	for _, d := range details {
		if err := insert(ctx, s.client, s.details, d.Name, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *CatalogRedisStorage) DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error) {
	return remove[domain.ModelListing](ctx, s.client, s.listings, names)
}

func (s *CatalogRedisStorage) DeleteListingDetails(ctx context.Context, names ...string) ([]domain.ModelListingDetails, error) {
	return remove[domain.ModelListingDetails](ctx, s.client, s.details, names)
}

func (s *CatalogRedisStorage) GetLastSweep(ctx context.Context, catalogName string) (time.Time, error) {
	raw, err := s.client.HGet(ctx, s.sweeps, catalogName).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("hget %s failed (catalog=%s): %w", s.sweeps, catalogName, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sweep failed (catalog=%s): %w", catalogName, err)
	}
	return t, nil
}

func (s *CatalogRedisStorage) SetLastSweep(ctx context.Context, catalogName string, t time.Time) error {
	if err := s.client.HSet(ctx, s.sweeps, catalogName, t.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("hset %s failed (catalog=%s): %w", s.sweeps, catalogName, err)
	}
	return nil
}

func insert(ctx context.Context, client *redis.Client, keys hashKeys, name string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record failed (name=%s): %w", name, err)
	}
	if err := insertScript.Run(ctx, client, []string{keys.hash, keys.order}, name, raw).Err(); err != nil {
		return fmt.Errorf("insert into %s failed (name=%s): %w", keys.hash, name, err)
	}
	return nil
}

// remove returns what was removed before the first failure along with
// that failure.
func remove[T any](ctx context.Context, client *redis.Client, keys hashKeys, names []string) ([]T, error) {
	var removed []T
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		raw, err := removeScript.Run(ctx, client, []string{keys.hash, keys.order}, name).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("delete from %s failed (name=%s): %w", keys.hash, name, err)
		}
		var record T
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return removed, fmt.Errorf("parse removed record failed (name=%s): %w", name, err)
		}
		removed = append(removed, record)
	}
	return removed, nil
}

// scanHash reads the order list once and then fetches records in chunks.
// Names removed after the list was read are skipped.
func scanHash[T any](ctx context.Context, client *redis.Client, keys hashKeys) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}
		names, err := client.LRange(ctx, keys.order, 0, -1).Result()
		if err != nil {
			yield(zero, fmt.Errorf("lrange %s failed: %w", keys.order, err))
			return
		}

		for start := 0; start < len(names); start += fetchChunk {
			chunk := names[start:min(start+fetchChunk, len(names))]
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			values, err := client.HMGet(ctx, keys.hash, chunk...).Result()
			if err != nil {
				yield(zero, fmt.Errorf("hmget %s failed: %w", keys.hash, err))
				return
			}
			for i, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				var record T
				if err := json.Unmarshal([]byte(raw), &record); err != nil {
					yield(zero, fmt.Errorf("parse record failed (name=%s): %w", chunk[i], err))
					return
				}
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}
