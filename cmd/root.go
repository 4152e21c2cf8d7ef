package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/config"
	"github.com/ziadkadry99/chartembed/internal/logging"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "chartembed",
	Short: "Superset chart pages with embeddable iframe snippets for Dataverse",
	Long: `chartembed serves a chart page for a Dataverse data file: a selector over
the Superset charts built on the file's dataset, the selected chart in a
frame, and an embed panel holding the iframe snippet for the chart.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose {
			level = "debug"
		}
		_, err := logging.Setup(os.Stderr, level)
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level=debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
