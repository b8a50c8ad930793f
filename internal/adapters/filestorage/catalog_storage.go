// Package filestorage keeps the catalog in memory and mirrors it to a
// snapshot file after every change. The format follows the file extension:
// .yaml/.yml for YAML, anything else for indented JSON.
//
// Every write rewrites the whole snapshot. Upserts that add nothing skip
// the write, so a sweep over an already cached catalog costs one write per
// new model; the first sweep into an empty file is quadratic in catalog
// size. Use the postgres or redis store for large catalogs.
//
// An insert or sweep timestamp whose snapshot write fails is undone in
// memory, so reads never serve a record the file does not have.
package filestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"ollama-catalog/internal/adapters/memory"
	"ollama-catalog/internal/core/domain"
)

// snapshot is the on-disk document.
type snapshot struct {
	Listings   []domain.ModelListing        `json:"listings" yaml:"listings"`
	Details    []domain.ModelListingDetails `json:"details" yaml:"details"`
	LastSweeps map[string]time.Time         `json:"last_sweeps,omitempty" yaml:"last_sweeps,omitempty"`
}

// CatalogFileStorage implements port.CatalogStoragePort and
// port.SweepHistoryPort.
type CatalogFileStorage struct {
	filename string
	useYAML  bool

	mu     sync.Mutex // serializes mutations and file writes
	mem    *memory.CatalogMemoryStorage
	sweeps map[string]time.Time
}

// NewCatalogFileStorage loads filename if it exists; a missing file is an
// empty catalog.
func NewCatalogFileStorage(ctx context.Context, filename string) (*CatalogFileStorage, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory for '%s': %w", filename, err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	s := &CatalogFileStorage{
		filename: filename,
		useYAML:  ext == ".yaml" || ext == ".yml",
		mem:      memory.NewCatalogMemoryStorage(),
		sweeps:   make(map[string]time.Time),
	}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("FileStorage: no snapshot yet, starting empty", "file", filename)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot '%s': %w", filename, err)
	}

	var snap snapshot
	if err := s.unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot '%s': %w", filename, err)
	}
	if err := s.mem.UpsertListings(ctx, snap.Listings...); err != nil {
		return nil, err
	}
	if err := s.mem.UpsertListingDetails(ctx, snap.Details...); err != nil {
		return nil, err
	}
	for name, t := range snap.LastSweeps {
		s.sweeps[name] = t
	}
	slog.Info("FileStorage: loaded snapshot", "file", filename, "listings", len(snap.Listings), "details", len(snap.Details))
	return s, nil
}

func (s *CatalogFileStorage) Listings(ctx context.Context) iter.Seq2[domain.ModelListing, error] {
	return s.mem.Listings(ctx)
}

func (s *CatalogFileStorage) ListingDetails(ctx context.Context) iter.Seq2[domain.ModelListingDetails, error] {
	return s.mem.ListingDetails(ctx)
}

func (s *CatalogFileStorage) FindListingDetails(ctx context.Context, name string) (*domain.ModelListingDetails, error) {
	return s.mem.FindListingDetails(ctx, name)
}

func (s *CatalogFileStorage) UpsertListings(ctx context.Context, listings ...domain.ModelListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted, err := s.mem.InsertListings(ctx, listings...)
	return errors.Join(err, s.persistInserted(ctx, inserted, func(ctx context.Context) error {
		_, err := s.mem.DeleteListings(ctx, inserted...)
		return err
	}))
}

func (s *CatalogFileStorage) UpsertListingDetails(ctx context.Context, details ...domain.ModelListingDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted, err := s.mem.InsertListingDetails(ctx, details...)
	return errors.Join(err, s.persistInserted(ctx, inserted, func(ctx context.Context) error {
		_, err := s.mem.DeleteListingDetails(ctx, inserted...)
		return err
	}))
}

// persistInserted writes the snapshot after an insert and calls undo when
// the write fails. Inserted names sit at the end of their table, so
// removing them restores the previous order. Callers hold s.mu.
func (s *CatalogFileStorage) persistInserted(ctx context.Context, inserted []string, undo func(context.Context) error) error {
	if len(inserted) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	err := s.persist(ctx)
	if err == nil {
		return nil
	}
	if undoErr := undo(ctx); undoErr != nil {
		return errors.Join(err, fmt.Errorf("failed to roll back %d records: %w", len(inserted), undoErr))
	}
	slog.Warn("FileStorage: snapshot write failed, insert rolled back", "file", s.filename, "records", len(inserted), "error", err)
	return err
}

func (s *CatalogFileStorage) DeleteListings(ctx context.Context, names ...string) ([]domain.ModelListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.mem.DeleteListings(ctx, names...)
	if len(removed) > 0 {
		err = errors.Join(err, s.persist(context.WithoutCancel(ctx)))
	}
	return removed, err
}

func (s *CatalogFileStorage) DeleteListingDetails(ctx context.Context, names ...string) ([]domain.ModelListingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.mem.DeleteListingDetails(ctx, names...)
	if len(removed) > 0 {
		err = errors.Join(err, s.persist(context.WithoutCancel(ctx)))
	}
	return removed, err
}

func (s *CatalogFileStorage) GetLastSweep(_ context.Context, catalogName string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps[catalogName], nil
}

func (s *CatalogFileStorage) SetLastSweep(ctx context.Context, catalogName string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.sweeps[catalogName]
	s.sweeps[catalogName] = t
	if err := s.persist(ctx); err != nil {
		if had {
			s.sweeps[catalogName] = prev
		} else {
			delete(s.sweeps, catalogName)
		}
		return err
	}
	return nil
}

// persist rewrites the whole snapshot. Callers hold s.mu.
func (s *CatalogFileStorage) persist(ctx context.Context) error {
	snap := snapshot{LastSweeps: s.sweeps}
	for l, err := range s.mem.Listings(ctx) {
		if err != nil {
			return err
		}
		snap.Listings = append(snap.Listings, l)
	}
	for d, err := range s.mem.ListingDetails(ctx) {
		if err != nil {
			return err
		}
		snap.Details = append(snap.Details, d)
	}

	data, err := s.marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for '%s': %w", s.filename, err)
	}

	// Write next to the target and rename so readers never see a torn file.
	tmp, err := os.CreateTemp(filepath.Dir(s.filename), filepath.Base(s.filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", s.filename, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file for '%s': %w", s.filename, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot '%s': %w", s.filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot '%s': %w", s.filename, err)
	}
	if err := os.Rename(tmp.Name(), s.filename); err != nil {
		return fmt.Errorf("failed to replace snapshot '%s': %w", s.filename, err)
	}

	slog.Debug("FileStorage: snapshot written", "file", s.filename, "listings", len(snap.Listings), "details", len(snap.Details))
	return nil
}

func (s *CatalogFileStorage) marshal(snap snapshot) ([]byte, error) {
	if s.useYAML {
		return yaml.Marshal(snap)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *CatalogFileStorage) unmarshal(data []byte, snap *snapshot) error {
	if s.useYAML {
		return yaml.Unmarshal(data, snap)
	}
	return json.Unmarshal(data, snap)
}
