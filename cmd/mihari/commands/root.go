// Package commands implements the mihari CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mihari",
	Short: "Performance telemetry and self-optimization daemon",
	Long: `Mihari samples CPU, memory, network, disk and battery metrics,
stores bounded snapshot history, detects trends and statistical
anomalies, raises alerts and runs an optimization loop that applies and
learns from remediation strategies.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
