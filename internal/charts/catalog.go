package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/chartembed/internal/superset"
)

// ErrNoCharts is returned when a dataset has no charts to offer.
var ErrNoCharts = errors.New("no charts for dataset")

// Source looks up datasets and charts, normally a *superset.Client.
type Source interface {
	FindDataset(ctx context.Context, tableName string) (int64, error)
	FindChartURLs(ctx context.Context, datasetID int64) ([]superset.Chart, error)
}

// Catalog answers chart lookups from Superset, falling back to the cache.
type Catalog struct {
	source Source
	store  *Store
	logger *slog.Logger
}

// NewCatalog creates a Catalog. A nil logger uses slog.Default().
func NewCatalog(source Source, store *Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{source: source, store: store, logger: logger}
}

// Dataset resolves the Superset dataset created for the Dataverse file at
// fileURL. superset.ErrNotFound is passed through so callers can tell a
// missing dataset from an unreachable Superset.
func (c *Catalog) Dataset(ctx context.Context, fileURL string) (int64, error) {
	name := superset.DatasetName(fileURL)
	id, err := c.source.FindDataset(ctx, name)
	if err == nil {
		if err := c.store.SaveDataset(ctx, name, fileURL, id); err != nil {
			c.logger.Warn("caching dataset id", "dataset", name, "error", err)
		}
		return id, nil
	}
	if errors.Is(err, superset.ErrNotFound) {
		return 0, err
	}

	cached, ok, cerr := c.store.LookupDataset(ctx, name)
	if cerr != nil || !ok {
		return 0, err
	}
	c.logger.Warn("superset unavailable, using cached dataset id", "dataset", name, "error", err)
	return cached, nil
}

// Charts returns the charts of a dataset. Fresh results replace the cache;
// when Superset fails the cached list is returned instead.
func (c *Catalog) Charts(ctx context.Context, datasetID int64) ([]superset.Chart, error) {
	fresh, err := c.source.FindChartURLs(ctx, datasetID)
	if err == nil {
		if err := c.store.Replace(ctx, datasetID, fresh); err != nil {
			c.logger.Warn("caching charts", "dataset_id", datasetID, "error", err)
		}
		if len(fresh) == 0 {
			return nil, fmt.Errorf("dataset %d: %w", datasetID, ErrNoCharts)
		}
		return fresh, nil
	}

	cached, cerr := c.store.List(ctx, datasetID)
	if cerr != nil || len(cached) == 0 {
		return nil, err
	}
	c.logger.Warn("superset unavailable, serving cached charts",
		"dataset_id", datasetID, "charts", len(cached), "error", err)
	return cached, nil
}
