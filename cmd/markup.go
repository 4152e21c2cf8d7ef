package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/chartembed/internal/embed"
)

var markupCmd = &cobra.Command{
	Use:   "markup <chart-url>",
	Short: "Print the iframe embed snippet for a chart URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		escape, _ := cmd.Flags().GetBool("escape")
		c := embed.Controller{Escape: escape}
		fmt.Fprintln(cmd.OutOrStdout(), c.Markup(args[0]))
		return nil
	},
}

func init() {
	markupCmd.Flags().Bool("escape", false, "HTML-escape the chart URL inside the snippet")
	rootCmd.AddCommand(markupCmd)
}
