package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/charts"
	"github.com/ziadkadry99/chartembed/internal/config"
	"github.com/ziadkadry99/chartembed/internal/dataverse"
	"github.com/ziadkadry99/chartembed/internal/db"
	"github.com/ziadkadry99/chartembed/internal/importer"
	"github.com/ziadkadry99/chartembed/internal/page"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

const (
	// dbFile is the cache database name inside data_dir.
	dbFile = "chartembed.db"
	// downloadTimeout bounds reading one data file from Dataverse.
	downloadTimeout = 10 * time.Minute
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `chartembed init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// backend is the Superset client and chart cache shared by the commands.
type backend struct {
	client   *superset.Client
	store    *charts.Store
	catalog  *charts.Catalog
	database *db.DB
}

// openBackend opens the chart cache under data_dir and builds a catalog
// backed by the configured Superset. The caller closes it.
func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	client, err := superset.NewClient(superset.Config{
		BaseURL:      cfg.Superset.URI,
		RefreshToken: cfg.Superset.RefreshToken,
		PageSize:     cfg.Superset.PageSize,
		DatabaseID:   cfg.Superset.DatabaseID,
		Schema:       cfg.Superset.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("creating superset client: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	store := charts.NewStore(database)
	return &backend{
		client:   client,
		store:    store,
		catalog:  charts.NewCatalog(client, store, logger),
		database: database,
	}, nil
}

func (b *backend) Close() error {
	return b.database.Close()
}

// openImporter opens the import database and builds an importer that
// registers its tables through b. The caller closes both.
func openImporter(cfg *config.Config, b *backend, opts importer.Options, logger *slog.Logger) (*importer.Importer, *sql.DB, error) {
	target, err := db.OpenDataStore(cfg.Import.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening import database: %w", err)
	}
	opts.SampleRows = cfg.Import.SampleRows
	im := importer.New(dataverse.NewClient(downloadTimeout), b.client, target, b.store, opts, logger)
	return im, target, nil
}

// fileURLFromArgs returns the data file named by the positional argument or
// by --site-url and --file-id.
func fileURLFromArgs(cmd *cobra.Command, cfg *config.Config, args []string) (string, error) {
	siteURL, _ := cmd.Flags().GetString("site-url")
	fileID, _ := cmd.Flags().GetString("file-id")
	switch {
	case siteURL != "" && fileID != "":
		return page.DataFileURL(cfg.MapSiteURL(siteURL), fileID), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", errors.New("give a file URL, or both --site-url and --file-id")
}
