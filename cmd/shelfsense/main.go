// Command shelfsense runs product go-to-market analyses and manages the
// retrieval index from the command line. HTTP serving and UI rendering live
// outside this repository.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shelfsense",
	Short: "Food-product go-to-market intelligence engine",
	Long: `shelfsense analyzes food products against business objectives, learns
reusable rules into a persistent playbook, and grounds research in a
citation-backed retrieval index.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newIndexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
