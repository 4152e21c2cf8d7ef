package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/importer"
	"github.com/ziadkadry99/chartembed/internal/progress"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

var importCmd = &cobra.Command{
	Use:   "import [file-url]",
	Short: "Load a Dataverse data file into Superset",
	Long: `Reads a Dataverse data file (CSV, TSV, XLSX, XLS or ODS), infers its column types,
writes it to the import database and registers it as a Superset dataset.
Name the file by URL, or with --site-url and --file-id. With --dry-run only
the inferred columns are printed. A file that already has a Superset
dataset is refused.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("site-url", "", "Dataverse site URL")
	importCmd.Flags().String("file-id", "", "Dataverse data file id")
	importCmd.Flags().Bool("dry-run", false, "print the inferred columns without importing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Import.Enabled {
		return errors.New("import is disabled; set import.enabled in the config file")
	}
	fileURL, err := fileURLFromArgs(cmd, cfg, args)
	if err != nil {
		return err
	}

	b, err := openBackend(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer b.Close()

	reporter := progress.NewReporter(cmd.ErrOrStderr())
	var rows int
	im, target, err := openImporter(cfg, b, importer.Options{
		OnProgress: func(name string, n int) {
			rows = n
			reporter.Update(n)
		},
	}, slog.Default())
	if err != nil {
		return err
	}
	defer target.Close()
	defer im.Close()

	info, err := im.Analyze(ctx, fileURL)
	if err != nil {
		return fmt.Errorf("reading %s: %w", fileURL, err)
	}
	out := cmd.OutOrStdout()
	printColumns(out, info)
	if dryRun {
		return nil
	}

	id, err := b.catalog.Dataset(ctx, fileURL)
	switch {
	case err == nil:
		return fmt.Errorf("%s is already imported as Superset dataset %d", info.FileName, id)
	case !errors.Is(err, superset.ErrNotFound):
		return fmt.Errorf("looking up dataset %s: %w", info.Name, err)
	}

	reporter.Start(info.FileName)
	done, err := im.Run(ctx, info.Name)
	if err != nil {
		// A failed import leaves no rows behind.
		reporter.Finish(0)
		return fmt.Errorf("importing %s: %w", info.FileName, err)
	}
	reporter.Finish(rows)
	fmt.Fprintf(out, "\nCreated Superset dataset %s (id %d).\n", done.Name, done.DatasetID)
	return nil
}

func printColumns(w io.Writer, info importer.Info) {
	fmt.Fprintf(w, "%s: %s, %s\n", info.Name, info.FileName, info.FileSize)
	for _, col := range info.Columns {
		fmt.Fprintf(w, "  %-30s %s\n", col.Name, col.Type)
	}
}
