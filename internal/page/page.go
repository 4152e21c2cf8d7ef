// Package page serves the chart page: the chart selector, the chart frame
// and the embed panel driven by the in-browser controller.
package page

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/chartembed/internal/embed"
	"github.com/ziadkadry99/chartembed/internal/importer"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

// ChartLookup resolves datasets and their charts, normally a
// *charts.Catalog.
type ChartLookup interface {
	Dataset(ctx context.Context, fileURL string) (int64, error)
	Charts(ctx context.Context, datasetID int64) ([]superset.Chart, error)
}

// Importer analyzes and imports data files that have no dataset, normally
// an *importer.Importer.
type Importer interface {
	Analyze(ctx context.Context, fileURL string) (importer.Info, error)
	Lookup(name string) (importer.Info, bool)
	Start(name string) error
}

// Options configures a Page.
type Options struct {
	Controller embed.Controller
	IDs        embed.IDs
	// MapSiteURL rewrites a Dataverse site URL before use. Nil leaves it
	// unchanged.
	MapSiteURL func(string) string
	// WasmDir holds embedpanel.wasm and wasm_exec.js. Empty disables
	// /static/.
	WasmDir string
	// Importer, when set, offers to import files that have no dataset
	// instead of answering 404.
	Importer Importer
}

// Page serves the chart page and its JSON helpers.
type Page struct {
	lookup ChartLookup
	opts   Options
	logger *slog.Logger
}

// New creates a Page. Zero-valued IDs are replaced by embed.DefaultIDs().
func New(lookup ChartLookup, opts Options, logger *slog.Logger) *Page {
	if opts.IDs == (embed.IDs{}) {
		opts.IDs = embed.DefaultIDs()
	}
	if opts.MapSiteURL == nil {
		opts.MapSiteURL = func(s string) string { return s }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{lookup: lookup, opts: opts, logger: logger}
}

// RegisterRoutes mounts the page routes onto the given router.
func (p *Page) RegisterRoutes(r chi.Router) {
	r.Get("/dataverse-superset", p.handlePage)
	if p.opts.Importer != nil {
		r.Post("/dataverse-superset", p.handleImport)
	}
	r.Get("/api/embed", p.handleEmbed)
	r.Get("/api/charts/{datasetID}", p.handleCharts)
	if p.opts.WasmDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(p.opts.WasmDir))))
	}
}
