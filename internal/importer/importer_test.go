package importer

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ziadkadry99/chartembed/internal/charts"
	"github.com/ziadkadry99/chartembed/internal/dataverse"
	"github.com/ziadkadry99/chartembed/internal/db"
	"github.com/ziadkadry99/chartembed/internal/superset"
	"github.com/ziadkadry99/chartembed/internal/tabular"
)

const (
	testFileURL = "http://dataverse:8080/api/access/datafile/42"
	testData    = "city,population,capital,founded\nVienna,1900000,true,1137-01-01\nGraz,290000,false,\n"
)

type fakeFetcher struct {
	files map[string]string
	opens atomic.Int32
}

func (f *fakeFetcher) Open(ctx context.Context, fileURL string) (*dataverse.File, error) {
	f.opens.Add(1)
	data, ok := f.files[fileURL]
	if !ok {
		return nil, dataverse.ErrFileNotFound
	}
	return &dataverse.File{
		Name:        "cities.csv",
		ContentType: "text/comma-separated-values",
		Size:        int64(len(data)),
		Body:        io.NopCloser(strings.NewReader(data)),
	}, nil
}

type fakeCreator struct {
	mu     sync.Mutex
	tables []string
	err    error
}

func (c *fakeCreator) CreateDataset(ctx context.Context, tableName string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.tables = append(c.tables, tableName)
	return 31, nil
}

func setupImporter(t *testing.T, opts Options) (*Importer, *fakeFetcher, *fakeCreator, *sql.DB, *charts.Store) {
	t.Helper()

	target, err := db.OpenDataStore(":memory:")
	if err != nil {
		t.Fatalf("OpenDataStore: %v", err)
	}
	t.Cleanup(func() { target.Close() })

	cache, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	store := charts.NewStore(cache)

	fetcher := &fakeFetcher{files: map[string]string{testFileURL: testData}}
	creator := &fakeCreator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	im := New(fetcher, creator, target, store, opts, logger)
	t.Cleanup(im.Close)
	return im, fetcher, creator, target, store
}

func TestAnalyze(t *testing.T) {
	im, fetcher, _, _, _ := setupImporter(t, Options{})
	ctx := t.Context()

	info, err := im.Analyze(ctx, testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if info.Name != superset.DatasetName(testFileURL) || info.FileName != "cities.csv" || info.Status != Ready {
		t.Errorf("info = %+v", info)
	}
	want := []tabular.Column{
		{Name: "city", Type: tabular.Text},
		{Name: "population", Type: tabular.Integer},
		{Name: "capital", Type: tabular.Boolean},
		{Name: "founded", Type: tabular.Date},
	}
	if len(info.Columns) != len(want) {
		t.Fatalf("columns = %+v", info.Columns)
	}
	for i := range want {
		if info.Columns[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, info.Columns[i], want[i])
		}
	}

	if _, err := im.Analyze(ctx, testFileURL); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if fetcher.opens.Load() != 1 {
		t.Errorf("expected the file to be fetched once, got %d", fetcher.opens.Load())
	}

	if _, err := im.Analyze(ctx, "http://dataverse:8080/api/access/datafile/99"); !errors.Is(err, dataverse.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestRun(t *testing.T) {
	var progressed atomic.Int32
	im, _, creator, target, store := setupImporter(t, Options{
		OnProgress: func(name string, rows int) { progressed.Store(int32(rows)) },
	})
	ctx := t.Context()

	info, err := im.Analyze(ctx, testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	info, err = im.Run(ctx, info.Name)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info.Status != Complete || info.DatasetID != 31 {
		t.Errorf("info = %+v", info)
	}
	if len(creator.tables) != 1 || creator.tables[0] != info.Name {
		t.Errorf("registered tables = %v", creator.tables)
	}
	if progressed.Load() != 2 {
		t.Errorf("progress = %d, want 2", progressed.Load())
	}

	var (
		city    string
		pop     int64
		capital bool
		founded sql.NullString
	)
	row := target.QueryRow(`SELECT city, population, capital, founded FROM "` + info.Name + `" WHERE city = 'Graz'`)
	if err := row.Scan(&city, &pop, &capital, &founded); err != nil {
		t.Fatalf("reading imported row: %v", err)
	}
	if pop != 290000 || capital || founded.Valid {
		t.Errorf("row = %s %d %v %v", city, pop, capital, founded)
	}

	id, ok, err := store.LookupDataset(ctx, info.Name)
	if err != nil || !ok || id != 31 {
		t.Errorf("cached dataset = %d %v %v", id, ok, err)
	}
}

func TestRunDropsTableWhenSupersetRefuses(t *testing.T) {
	im, _, creator, target, _ := setupImporter(t, Options{})
	creator.err = errors.New("superset API error (422): Dataset already exists")
	ctx := t.Context()

	info, err := im.Analyze(ctx, testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := im.Run(ctx, info.Name); err == nil {
		t.Fatal("expected an error")
	}

	info, _ = im.Lookup(info.Name)
	if info.Status != Failed || !strings.Contains(info.Err, "already exists") {
		t.Errorf("info = %+v", info)
	}
	var n int
	if err := target.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected the table to be dropped, %d tables left", n)
	}

	// A failed import can be retried.
	creator.err = nil
	if _, err := im.Run(ctx, info.Name); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestRunKeepsImportedTable(t *testing.T) {
	im, _, creator, target, _ := setupImporter(t, Options{})
	ctx := t.Context()

	info, err := im.Analyze(ctx, testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := im.Run(ctx, info.Name); err != nil {
		t.Fatalf("Run: %v", err)
	}

	creator.err = errors.New("superset API error (422): Dataset already exists")
	if _, err := im.Run(ctx, info.Name); !errors.Is(err, ErrAlreadyImported) {
		t.Errorf("expected ErrAlreadyImported, got %v", err)
	}
	if err := im.Start(info.Name); !errors.Is(err, ErrAlreadyImported) {
		t.Errorf("expected ErrAlreadyImported from Start, got %v", err)
	}
	assertRows(t, target, info.Name, 2)

	// A second importer sharing the database, as after a restart, must not
	// replace or drop the live table either.
	other := New(&fakeFetcher{files: map[string]string{testFileURL: testData}}, creator, target, nil, Options{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(other.Close)
	if _, err := other.Analyze(ctx, testFileURL); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := other.Run(ctx, info.Name); !errors.Is(err, ErrTableExists) {
		t.Errorf("expected ErrTableExists, got %v", err)
	}
	assertRows(t, target, info.Name, 2)
}

func TestRunWrapsFailure(t *testing.T) {
	im, _, creator, _, _ := setupImporter(t, Options{})
	errRefused := errors.New("refused")
	creator.err = errRefused

	info, err := im.Analyze(t.Context(), testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	info, err = im.Run(t.Context(), info.Name)
	if !errors.Is(err, errRefused) {
		t.Errorf("expected the creator's error, got %v", err)
	}
	if info.Status != Failed || info.Err != "refused" {
		t.Errorf("info = %+v", info)
	}
}

func assertRows(t *testing.T, target *sql.DB, table string, want int) {
	t.Helper()
	var n int
	if err := target.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("counting rows of %s: %v", table, err)
	}
	if n != want {
		t.Errorf("%s has %d rows, want %d", table, n, want)
	}
}

func TestStart(t *testing.T) {
	im, _, _, _, _ := setupImporter(t, Options{})

	if err := im.Start("dataverse_unknown"); !errors.Is(err, ErrUnknownFile) {
		t.Errorf("expected ErrUnknownFile, got %v", err)
	}

	info, err := im.Analyze(t.Context(), testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := im.Start(info.Name); err != nil {
		t.Fatalf("Start: %v", err)
	}
	im.wg.Wait()

	info, _ = im.Lookup(info.Name)
	if info.Status != Complete {
		t.Errorf("status = %s, err = %s", info.Status, info.Err)
	}
}

func TestBeginRejectsConcurrentImport(t *testing.T) {
	im, _, _, _, _ := setupImporter(t, Options{})
	info, err := im.Analyze(t.Context(), testFileURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if err := im.begin(info.Name); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := im.Start(info.Name); !errors.Is(err, ErrInProgress) {
		t.Errorf("expected ErrInProgress, got %v", err)
	}
}

func TestCreateTableSQL(t *testing.T) {
	cols := []tabular.Column{
		{Name: "name", Type: tabular.Text},
		{Name: "Name", Type: tabular.Integer},
		{Name: "", Type: tabular.Floating},
		{Name: `say "hi"`, Type: tabular.DateTime},
	}
	got := createTableSQL("dataverse_abc", cols)
	want := `CREATE TABLE "dataverse_abc" ("name" TEXT, "Name_2" BIGINT, "column_3" FLOAT, "say ""hi""" TIMESTAMP)`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestStatusString(t *testing.T) {
	if InProgress.String() != "in progress" || Failed.String() != "error" {
		t.Errorf("unexpected status names %q %q", InProgress, Failed)
	}
}
