package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Trigger an optimization cycle",
	Long:  `Ask a running daemon to perform one optimization cycle immediately and print the resulting record.`,
	RunE:  runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().String("api-url", "http://localhost:8930", "API server URL")
	optimizeCmd.Flags().StringSlice("target", nil, "Restrict the cycle to issue types (e.g. HIGH_CPU_USAGE)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	apiURL, _ := cmd.Flags().GetString("api-url")
	targets, _ := cmd.Flags().GetStringSlice("target")

	params := url.Values{}
	for _, t := range targets {
		params.Add("target", t)
	}
	endpoint := apiURL + "/api/v1/optimizer/optimize"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(endpoint, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to trigger optimization: %w", err)
	}
	defer resp.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon rejected the cycle: %v", payload["error"])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
