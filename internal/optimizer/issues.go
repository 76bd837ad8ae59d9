package optimizer

import (
	"fmt"

	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// DeriveIssues inspects a snapshot against the threshold set and returns
// the currently-active breaches. A metric only becomes an issue once it
// exceeds its configured threshold; severity escalates at fixed absolute
// cut points per metric family. Battery is inverted: lower is worse.
func DeriveIssues(snap metrics.Snapshot, t metrics.Thresholds) []Issue {
	var issues []Issue

	if cpu := snap.CPU.Usage; cpu > t.CPU {
		sev := analyzer.SeverityMedium
		switch {
		case cpu > 90:
			sev = analyzer.SeverityCritical
		case cpu > 80:
			sev = analyzer.SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueHighCPU,
			Severity:    sev,
			Description: fmt.Sprintf("CPU usage %.1f%% exceeds threshold %.1f%%", cpu, t.CPU),
			Value:       cpu,
			Threshold:   t.CPU,
			Metric:      "cpu_usage",
		})
	}

	if mem := snap.Memory.UsagePercent(); mem > t.Memory {
		sev := analyzer.SeverityMedium
		switch {
		case mem > 95:
			sev = analyzer.SeverityCritical
		case mem > 90:
			sev = analyzer.SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueHighMemory,
			Severity:    sev,
			Description: fmt.Sprintf("memory usage %.1f%% exceeds threshold %.1f%%", mem, t.Memory),
			Value:       mem,
			Threshold:   t.Memory,
			Metric:      "memory_usage",
		})
	}

	if dsk := snap.Disk.Usage; dsk > t.Disk {
		sev := analyzer.SeverityMedium
		switch {
		case dsk > 95:
			sev = analyzer.SeverityCritical
		case dsk > 90:
			sev = analyzer.SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueHighDisk,
			Severity:    sev,
			Description: fmt.Sprintf("disk usage %.1f%% exceeds threshold %.1f%%", dsk, t.Disk),
			Value:       dsk,
			Threshold:   t.Disk,
			Metric:      "disk_usage",
		})
	}

	if errs := float64(snap.Network.Errors); errs > t.NetworkErrors {
		sev := analyzer.SeverityMedium
		switch {
		case errs > t.NetworkErrors*10:
			sev = analyzer.SeverityCritical
		case errs > t.NetworkErrors*3:
			sev = analyzer.SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueNetworkErrors,
			Severity:    sev,
			Description: fmt.Sprintf("network error count %.0f exceeds threshold %.0f", errs, t.NetworkErrors),
			Value:       errs,
			Threshold:   t.NetworkErrors,
			Metric:      "network_errors",
		})
	}

	if snap.Battery != nil {
		if lvl := snap.Battery.Level; lvl < t.BatteryLow {
			sev := analyzer.SeverityMedium
			switch {
			case lvl < 10:
				sev = analyzer.SeverityCritical
			case lvl < 20:
				sev = analyzer.SeverityHigh
			}
			issues = append(issues, Issue{
				Type:        IssueLowBattery,
				Severity:    sev,
				Description: fmt.Sprintf("battery level %.1f%% is below threshold %.1f%%", lvl, t.BatteryLow),
				Value:       lvl,
				Threshold:   t.BatteryLow,
				Metric:      "battery_level",
			})
		}
	}

	return issues
}

// RecommendationFor renders human-readable, non-executing advice for an
// issue.
func RecommendationFor(issue Issue) string {
	switch issue.Type {
	case IssueHighCPU:
		return fmt.Sprintf("CPU at %.1f%%: throttle background work or lower the sampling rate", issue.Value)
	case IssueHighMemory:
		return fmt.Sprintf("Memory at %.1f%%: clear caches and inspect long-running allocations", issue.Value)
	case IssueHighDisk:
		return fmt.Sprintf("Disk at %.1f%%: trim telemetry history and rotate logs", issue.Value)
	case IssueNetworkErrors:
		return fmt.Sprintf("Network errors at %.0f: back off retries and verify connectivity", issue.Value)
	case IssueLowBattery:
		return fmt.Sprintf("Battery at %.1f%%: enter power-save mode and reduce sampling frequency", issue.Value)
	default:
		return issue.Description
	}
}
