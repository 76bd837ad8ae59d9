package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Display the latest snapshot, storage occupancy and optimizer counters from a running daemon.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("api-url", "http://localhost:8930", "API server URL")
	statusCmd.Flags().String("format", "table", "Output format (table, json, yaml)")
	statusCmd.Flags().Bool("watch", false, "Refresh continuously")
	statusCmd.Flags().Duration("interval", 5*time.Second, "Watch interval")
}

// daemonStatus mirrors the /api/v1/status response shape.
type daemonStatus struct {
	MonitorState   string `json:"monitor_state"`
	OptimizerState string `json:"optimizer_state"`
	Storage        struct {
		Entries        int     `json:"entries"`
		EstimatedBytes uint64  `json:"estimated_bytes"`
		MaxEntries     int     `json:"max_entries"`
		Utilization    float64 `json:"utilization_percent"`
	} `json:"storage"`
	Alerts    int `json:"alerts"`
	Optimizer struct {
		Sessions           int     `json:"sessions"`
		StrategiesExecuted int     `json:"strategies_executed"`
		Successes          int     `json:"successes"`
		AvgImprovement     float64 `json:"avg_improvement_percent"`
	} `json:"optimizer"`
	Snapshot *struct {
		Timestamp time.Time `json:"timestamp"`
		CPU       struct {
			Usage float64 `json:"usage_percent"`
			Cores int     `json:"cores"`
		} `json:"cpu"`
		Memory struct {
			Total uint64 `json:"total"`
			Used  uint64 `json:"used"`
		} `json:"memory"`
		Network struct {
			BytesRecv uint64 `json:"bytes_recv"`
			BytesSent uint64 `json:"bytes_sent"`
			Errors    uint64 `json:"errors"`
		} `json:"network"`
		Disk struct {
			Usage float64 `json:"usage_percent"`
		} `json:"disk"`
		Load struct {
			Overall float64 `json:"overall_percent"`
			Status  string  `json:"status"`
		} `json:"load"`
	} `json:"snapshot,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	apiURL, _ := cmd.Flags().GetString("api-url")
	format, _ := cmd.Flags().GetString("format")
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	if watch {
		for {
			fmt.Print("\033[H\033[2J")
			if err := displayStatus(apiURL, format); err != nil {
				return err
			}
			time.Sleep(interval)
		}
	}
	return displayStatus(apiURL, format)
}

func displayStatus(apiURL, format string) error {
	status, err := fetchJSON[daemonStatus](apiURL + "/api/v1/status")
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(status)
	default:
		displayStatusTable(status)
		return nil
	}
}

func displayStatusTable(s *daemonStatus) {
	fmt.Println("Mihari Status")
	fmt.Println("=============")
	fmt.Printf("Monitor:    %s\n", s.MonitorState)
	fmt.Printf("Optimizer:  %s\n", s.OptimizerState)
	fmt.Printf("Alerts:     %d\n", s.Alerts)
	fmt.Printf("Storage:    %d / %d snapshots (%s, %.1f%% full)\n",
		s.Storage.Entries, s.Storage.MaxEntries,
		humanize.Bytes(s.Storage.EstimatedBytes), s.Storage.Utilization)
	fmt.Printf("Cycles:     %d (%d strategies, %d ok, avg improvement %.1f%%)\n",
		s.Optimizer.Sessions, s.Optimizer.StrategiesExecuted,
		s.Optimizer.Successes, s.Optimizer.AvgImprovement)

	if s.Snapshot == nil {
		fmt.Println("\nNo snapshot captured yet.")
		return
	}
	snap := s.Snapshot
	fmt.Println("\nLatest Snapshot")
	fmt.Println("---------------")
	fmt.Printf("Captured:   %s\n", humanize.Time(snap.Timestamp))
	fmt.Printf("Load:       %s (%.1f%%)\n", snap.Load.Status, snap.Load.Overall)
	fmt.Printf("CPU:        %.1f%% across %d cores\n", snap.CPU.Usage, snap.CPU.Cores)
	fmt.Printf("Memory:     %s / %s\n", humanize.Bytes(snap.Memory.Used), humanize.Bytes(snap.Memory.Total))
	fmt.Printf("Network:    %s received, %s sent, %d errors\n",
		humanize.Bytes(snap.Network.BytesRecv), humanize.Bytes(snap.Network.BytesSent), snap.Network.Errors)
	fmt.Printf("Disk:       %.1f%% used\n", snap.Disk.Usage)
}

func fetchJSON[T any](url string) (*T, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
