package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/embed"
	"github.com/ziadkadry99/chartembed/internal/importer"
	"github.com/ziadkadry99/chartembed/internal/page"
	"github.com/ziadkadry99/chartembed/internal/server"
)

var (
	serverPort     int
	serverAllowAll bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the chart page server",
	Long: `Starts the chartembed HTTP server. GET /dataverse-superset?siteUrl=...&fileid=...
(or ?fileUrl=...) renders the chart page for a Dataverse data file. With
import.enabled, files without a Superset dataset can be imported from the page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}
		logger := slog.Default()

		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: serverAllowAll,
		}, b.database, logger)

		opts := page.Options{
			Controller: embed.Controller{Escape: cfg.EscapeMarkup},
			MapSiteURL: cfg.MapSiteURL,
			WasmDir:    cfg.WasmDir,
		}
		if cfg.Import.Enabled {
			im, target, err := openImporter(cfg, b, importer.Options{}, logger)
			if err != nil {
				return err
			}
			defer target.Close()
			// Runs before target is closed.
			defer im.Close()
			opts.Importer = im
		}
		page.New(b.catalog, opts, logger).RegisterRoutes(srv.Router())

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutting down server", "error", err)
			}
		}()

		logger.Info("chartembed server starting",
			"version", Version,
			"port", cfg.Port,
			"database", b.database.Path(),
			"superset", cfg.Superset.URI,
			"wasm_dir", cfg.WasmDir,
			"import", cfg.Import.Enabled)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides the config file)")
	serverCmd.Flags().BoolVar(&serverAllowAll, "allow-all-origins", false, "Allow cross-origin requests from any origin")
	rootCmd.AddCommand(serverCmd)
}
