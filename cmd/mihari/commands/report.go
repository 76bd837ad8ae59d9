package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a performance report",
	Long:  `Fetch a performance or optimization report for a time window from a running daemon.`,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("api-url", "http://localhost:8930", "API server URL")
	reportCmd.Flags().String("format", "json", "Output format (json, yaml)")
	reportCmd.Flags().String("type", "COMPREHENSIVE", "Report type (COMPREHENSIVE, SUMMARY, ALERT_FOCUSED)")
	reportCmd.Flags().Duration("window", time.Hour, "How far back the report reaches")
	reportCmd.Flags().Bool("optimizer", false, "Fetch the optimization report instead")
}

func runReport(cmd *cobra.Command, args []string) error {
	apiURL, _ := cmd.Flags().GetString("api-url")
	format, _ := cmd.Flags().GetString("format")
	typ, _ := cmd.Flags().GetString("type")
	window, _ := cmd.Flags().GetDuration("window")
	optimizerReport, _ := cmd.Flags().GetBool("optimizer")

	end := time.Now()
	start := end.Add(-window)

	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	endpoint := apiURL + "/api/v1/report"
	if optimizerReport {
		endpoint = apiURL + "/api/v1/optimizer/report"
	} else {
		params.Set("type", typ)
	}

	report, err := fetchJSON[map[string]interface{}](endpoint + "?" + params.Encode())
	if err != nil {
		return fmt.Errorf("failed to fetch report: %w", err)
	}

	switch format {
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(report)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
}
