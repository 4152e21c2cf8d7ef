package charts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ziadkadry99/chartembed/internal/db"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

type fakeSource struct {
	datasets   map[string]int64
	charts     map[int64][]superset.Chart
	datasetErr error
	chartsErr  error
}

func (f *fakeSource) FindDataset(ctx context.Context, name string) (int64, error) {
	if f.datasetErr != nil {
		return 0, f.datasetErr
	}
	id, ok := f.datasets[name]
	if !ok {
		return 0, superset.ErrNotFound
	}
	return id, nil
}

func (f *fakeSource) FindChartURLs(ctx context.Context, id int64) ([]superset.Chart, error) {
	if f.chartsErr != nil {
		return nil, f.chartsErr
	}
	return f.charts[id], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReplaceAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := []superset.Chart{
		{Name: "B", URL: "/b"},
		{Name: "A", URL: "/a"},
		{Name: "C", URL: "/c"},
	}
	if err := store.Replace(ctx, 1, first); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].Name != "B" || got[1].Name != "A" || got[2].Name != "C" {
		t.Errorf("order not kept: %+v", got)
	}

	if err := store.Replace(ctx, 1, []superset.Chart{{Name: "D", URL: "/d"}}); err != nil {
		t.Fatalf("second Replace: %v", err)
	}
	got, _ = store.List(ctx, 1)
	if len(got) != 1 || got[0].Name != "D" {
		t.Errorf("expected only D, got %+v", got)
	}

	other, _ := store.List(ctx, 2)
	if len(other) != 0 {
		t.Errorf("expected empty list for dataset 2, got %+v", other)
	}
}

func TestDatasetCache(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, ok, err := store.LookupDataset(ctx, "dataverse_x"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.SaveDataset(ctx, "dataverse_x", "https://f", 5); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if err := store.SaveDataset(ctx, "dataverse_x", "https://f", 6); err != nil {
		t.Fatalf("SaveDataset update: %v", err)
	}
	id, ok, err := store.LookupDataset(ctx, "dataverse_x")
	if err != nil || !ok || id != 6 {
		t.Errorf("LookupDataset = %d, %v, %v", id, ok, err)
	}
}

func TestCatalogChartsCachesFreshResults(t *testing.T) {
	store := setupStore(t)
	src := &fakeSource{charts: map[int64][]superset.Chart{
		3: {{Name: "Income", URL: "/i&standalone=1"}},
	}}
	cat := NewCatalog(src, store, quietLogger())

	got, err := cat.Charts(t.Context(), 3)
	if err != nil {
		t.Fatalf("Charts: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Income" {
		t.Errorf("charts = %+v", got)
	}

	cached, _ := store.List(t.Context(), 3)
	if len(cached) != 1 {
		t.Errorf("expected fresh charts cached, got %+v", cached)
	}
}

func TestCatalogChartsFallsBackToCache(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()
	store.Replace(ctx, 3, []superset.Chart{{Name: "Cached", URL: "/c"}})

	src := &fakeSource{chartsErr: errors.New("connection refused")}
	cat := NewCatalog(src, store, quietLogger())

	got, err := cat.Charts(ctx, 3)
	if err != nil {
		t.Fatalf("Charts: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Cached" {
		t.Errorf("charts = %+v", got)
	}

	if _, err := cat.Charts(ctx, 4); err == nil || err.Error() != "connection refused" {
		t.Errorf("expected source error without cache, got %v", err)
	}
}

func TestCatalogNoCharts(t *testing.T) {
	cat := NewCatalog(&fakeSource{}, setupStore(t), quietLogger())
	if _, err := cat.Charts(t.Context(), 9); !errors.Is(err, ErrNoCharts) {
		t.Errorf("expected ErrNoCharts, got %v", err)
	}
}

func TestCatalogDataset(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()
	fileURL := "https://demo.dataverse.org/api/access/datafile/42"
	src := &fakeSource{datasets: map[string]int64{superset.DatasetName(fileURL): 11}}
	cat := NewCatalog(src, store, quietLogger())

	id, err := cat.Dataset(ctx, fileURL)
	if err != nil || id != 11 {
		t.Fatalf("Dataset = %d, %v", id, err)
	}

	// Superset down: cached id is used.
	src.datasetErr = errors.New("timeout")
	id, err = cat.Dataset(ctx, fileURL)
	if err != nil || id != 11 {
		t.Fatalf("cached Dataset = %d, %v", id, err)
	}

	// Unknown file with Superset down: the error surfaces.
	if _, err := cat.Dataset(ctx, "https://other"); err == nil {
		t.Error("expected error for uncached dataset")
	}

	// Missing dataset is reported as such even with a cache entry elsewhere.
	src.datasetErr = nil
	if _, err := cat.Dataset(ctx, "https://other"); !errors.Is(err, superset.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
