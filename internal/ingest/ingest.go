// Package ingest loads capture files and reference data into the store and
// runs the maintenance jobs over it (airline relinking, cleanup, export).
package ingest

import (
	"context"
	"fmt"

	"flight_replay/internal/database"
)

// Store is the subset of *database.DB the importers write through.
type Store interface {
	database.Repositories
	Transaction(ctx context.Context, fn func(tx database.Repositories) error) error
}

// Importer writes captures and reference data in batches.
type Importer struct {
	store     Store
	batchSize int
}

// New creates an importer. Observations and aircraft are written batchSize rows
// per transaction; a non-positive value uses 500.
func New(store Store, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Importer{store: store, batchSize: batchSize}
}

func (im *Importer) airlineCodes(ctx context.Context) (map[string]int64, error) {
	codes, err := im.store.Airlines().CodeToID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load airline codes: %w", err)
	}
	return codes, nil
}

// chunk splits items into slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
