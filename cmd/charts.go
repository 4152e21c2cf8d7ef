package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/charts"
	"github.com/ziadkadry99/chartembed/internal/embed"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

var chartsCmd = &cobra.Command{
	Use:   "charts [file-url]",
	Short: "List the Superset charts offered for a Dataverse data file",
	Long: `Resolves the Superset dataset for a Dataverse data file and lists its charts,
most recently saved first, with the embed snippet for each. Name the file by
URL, or with --site-url and --file-id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCharts,
}

func init() {
	chartsCmd.Flags().String("site-url", "", "Dataverse site URL")
	chartsCmd.Flags().String("file-id", "", "Dataverse data file id")
	chartsCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(chartsCmd)
}

// chartOutput is a chart with its embed snippet.
type chartOutput struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Markup string `json:"markup"`
}

func runCharts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	datasetID, err := b.catalog.Dataset(ctx, fileURL)
	if err != nil {
		return fmt.Errorf("resolving dataset for %s: %w", fileURL, err)
	}
	list, err := b.catalog.Charts(ctx, datasetID)
	if err != nil && !errors.Is(err, charts.ErrNoCharts) {
		return err
	}

	c := embed.Controller{Escape: cfg.EscapeMarkup}
	out := make([]chartOutput, 0, len(list))
	for _, ch := range list {
		out = append(out, chartOutput{Name: ch.Name, URL: ch.URL, Markup: c.Markup(ch.URL)})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printCharts(cmd.OutOrStdout(), superset.DatasetName(fileURL), datasetID, out)
	return nil
}

func printCharts(w io.Writer, name string, datasetID int64, out []chartOutput) {
	if len(out) == 0 {
		fmt.Fprintf(w, "No charts for %s (dataset %d).\n", name, datasetID)
		return
	}
	fmt.Fprintf(w, "Found %d charts for %s (dataset %d):\n\n", len(out), name, datasetID)
	for i, ch := range out {
		fmt.Fprintf(w, "  %d. %s\n", i+1, ch.Name)
		fmt.Fprintf(w, "     %s\n", ch.URL)
		fmt.Fprintf(w, "     %s\n\n", ch.Markup)
	}
}
