// Package importer loads Dataverse data files into a SQL table that
// Superset reads, then registers the table as a Superset dataset.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ziadkadry99/chartembed/internal/charts"
	"github.com/ziadkadry99/chartembed/internal/dataverse"
	"github.com/ziadkadry99/chartembed/internal/superset"
	"github.com/ziadkadry99/chartembed/internal/tabular"
)

var (
	// ErrUnknownFile is returned by Start and Run for a dataset name that
	// was never analyzed.
	ErrUnknownFile = errors.New("importer: file has not been analyzed")
	// ErrInProgress is returned when an import of the same file is running.
	ErrInProgress = errors.New("importer: import already in progress")
	// ErrAlreadyImported is returned for a file whose import completed.
	ErrAlreadyImported = errors.New("importer: file already imported")
)

// DefaultSampleRows is the number of rows read to infer column types.
const DefaultSampleRows = 500

// Status is the import state of a file.
type Status int

const (
	Ready Status = iota
	InProgress
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case InProgress:
		return "in progress"
	case Complete:
		return "complete"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Info describes a data file and its import.
type Info struct {
	Name        string
	FileURL     string
	FileName    string
	FileSize    string
	ContentType string
	Columns     []tabular.Column
	DatasetID   int64
	Status      Status
	Err         string
}

// Fetcher opens data files, normally a *dataverse.Client.
type Fetcher interface {
	Open(ctx context.Context, fileURL string) (*dataverse.File, error)
}

// DatasetCreator registers tables with Superset, normally a
// *superset.Client.
type DatasetCreator interface {
	CreateDataset(ctx context.Context, tableName string) (int64, error)
}

// Options configures an Importer.
type Options struct {
	// SampleRows bounds type inference. Zero means DefaultSampleRows.
	SampleRows int
	// OnProgress, when set, is called as rows are written.
	OnProgress func(name string, rows int)
}

// Importer analyzes and imports data files. It is safe for concurrent use.
type Importer struct {
	fetcher Fetcher
	creator DatasetCreator
	target  *sql.DB
	store   *charts.Store
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	files map[string]*Info
}

// New creates an Importer writing tables to target. store may be nil; when
// set, completed imports are recorded in the dataset cache.
func New(fetcher Fetcher, creator DatasetCreator, target *sql.DB, store *charts.Store, opts Options, logger *slog.Logger) *Importer {
	if opts.SampleRows <= 0 {
		opts.SampleRows = DefaultSampleRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Importer{
		fetcher: fetcher,
		creator: creator,
		target:  target,
		store:   store,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		files:   make(map[string]*Info),
	}
}

// Analyze returns the description of the file at fileURL, reading its
// header and a sample of rows the first time the file is seen.
func (im *Importer) Analyze(ctx context.Context, fileURL string) (Info, error) {
	name := superset.DatasetName(fileURL)
	if info, ok := im.Lookup(name); ok {
		return info, nil
	}

	f, err := im.fetcher.Open(ctx, fileURL)
	if err != nil {
		return Info{}, err
	}
	defer f.Body.Close()

	r, err := tabular.NewReader(f.Body, f.ContentType, f.Name)
	if err != nil {
		return Info{}, err
	}
	defer r.Close()

	cols, err := tabular.Analyze(r, im.opts.SampleRows)
	if err != nil {
		return Info{}, fmt.Errorf("analyzing %s: %w", f.Name, err)
	}

	info := &Info{
		Name:        name,
		FileURL:     fileURL,
		FileName:    f.Name,
		FileSize:    f.DisplaySize(),
		ContentType: f.ContentType,
		Columns:     cols,
		Status:      Ready,
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	// A concurrent Analyze may have won.
	if existing, ok := im.files[name]; ok {
		return existing.copy(), nil
	}
	im.files[name] = info
	return info.copy(), nil
}

// Lookup returns the current state of an analyzed file.
func (im *Importer) Lookup(name string) (Info, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	info, ok := im.files[name]
	if !ok {
		return Info{}, false
	}
	return info.copy(), true
}

// Start imports the named file in the background.
func (im *Importer) Start(name string) error {
	if err := im.begin(name); err != nil {
		return err
	}
	im.wg.Add(1)
	go func() {
		defer im.wg.Done()
		// run logs and records the failure.
		_ = im.run(im.ctx, name)
	}()
	return nil
}

// Run imports the named file and returns its final state along with the
// error that failed the import, if any.
func (im *Importer) Run(ctx context.Context, name string) (Info, error) {
	if err := im.begin(name); err != nil {
		return Info{}, err
	}
	err := im.run(ctx, name)
	info, _ := im.Lookup(name)
	return info, err
}

// Close cancels running imports and waits for them to finish.
func (im *Importer) Close() {
	im.cancel()
	im.wg.Wait()
}

func (im *Importer) begin(name string) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	info, ok := im.files[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownFile)
	}
	switch info.Status {
	case InProgress:
		return fmt.Errorf("%s: %w", name, ErrInProgress)
	case Complete:
		return fmt.Errorf("%s: %w", name, ErrAlreadyImported)
	}
	info.Status = InProgress
	info.Err = ""
	return nil
}

func (im *Importer) run(ctx context.Context, name string) error {
	info, _ := im.Lookup(name)
	logger := im.logger.With("dataset", name, "file_url", info.FileURL)
	logger.Info("importing data file", "file", info.FileName, "columns", len(info.Columns))

	id, err := im.load(ctx, info)

	im.mu.Lock()
	stored := im.files[name]
	if err != nil {
		stored.Status = Failed
		stored.Err = err.Error()
	} else {
		stored.Status = Complete
		stored.DatasetID = id
	}
	im.mu.Unlock()

	if err != nil {
		logger.Error("could not import data file", "error", err)
		return err
	}
	logger.Info("data file imported", "dataset_id", id)

	if im.store != nil {
		if err := im.store.SaveDataset(ctx, name, info.FileURL, id); err != nil {
			logger.Warn("caching imported dataset", "error", err)
		}
	}
	return nil
}

// load writes the table and registers it. The table, which writeTable only
// ever creates, is dropped again if Superset refuses it.
func (im *Importer) load(ctx context.Context, info Info) (int64, error) {
	f, err := im.fetcher.Open(ctx, info.FileURL)
	if err != nil {
		return 0, err
	}
	defer f.Body.Close()

	r, err := tabular.NewReader(f.Body, f.ContentType, f.Name)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var progress func(int)
	if im.opts.OnProgress != nil {
		progress = func(rows int) { im.opts.OnProgress(info.Name, rows) }
	}
	if _, err := writeTable(ctx, im.target, info.Name, info.Columns, r, progress); err != nil {
		return 0, err
	}

	id, err := im.creator.CreateDataset(ctx, info.Name)
	if err != nil {
		if dropErr := dropTable(context.WithoutCancel(ctx), im.target, info.Name); dropErr != nil {
			im.logger.Warn("dropping table after failed import", "table", info.Name, "error", dropErr)
		}
		return 0, err
	}
	return id, nil
}

func (i *Info) copy() Info {
	c := *i
	c.Columns = append([]tabular.Column(nil), i.Columns...)
	return c
}
