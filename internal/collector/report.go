package collector

import (
	"fmt"
	"time"

	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/common"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// ReportType selects which sections a performance report carries.
type ReportType string

const (
	ReportTypeComprehensive ReportType = "COMPREHENSIVE"
	ReportTypeSummary       ReportType = "SUMMARY"
	ReportTypeAlertFocused  ReportType = "ALERT_FOCUSED"
)

// PerformanceReport is built from the snapshots in a time range. Sections
// not selected by the report type are nil.
type PerformanceReport struct {
	Type            ReportType              `json:"type"`
	Start           time.Time               `json:"start"`
	End             time.Time               `json:"end"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Summary         *ReportSummary          `json:"summary,omitempty"`
	Trends          *analyzer.TrendAnalysis `json:"trends,omitempty"`
	Anomalies       []analyzer.Anomaly      `json:"anomalies,omitempty"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

// ReportSummary aggregates the window's snapshots.
type ReportSummary struct {
	SnapshotCount int     `json:"snapshot_count"`
	AvgCPU        float64 `json:"avg_cpu_percent"`
	PeakCPU       float64 `json:"peak_cpu_percent"`
	AvgMemory     float64 `json:"avg_memory_percent"`
	PeakMemory    float64 `json:"peak_memory_percent"`
	AvgDiskUsage  float64 `json:"avg_disk_percent"`
	NetworkRecv   uint64  `json:"network_recv_bytes"`
	NetworkSent   uint64  `json:"network_sent_bytes"`
}

// GenerateReport builds a report of the requested type from the snapshots
// in [start, end].
func (o *Orchestrator) GenerateReport(start, end time.Time, typ ReportType) common.Result[*PerformanceReport] {
	switch typ {
	case ReportTypeComprehensive, ReportTypeSummary, ReportTypeAlertFocused:
	default:
		return common.Err[*PerformanceReport](
			common.NewError(common.ErrorTypeValidation, "REPORT_TYPE",
				fmt.Sprintf("unknown report type %q", typ)))
	}

	snaps := o.store.Range(start, end)
	report := &PerformanceReport{
		Type:        typ,
		Start:       start,
		End:         end,
		GeneratedAt: time.Now(),
	}

	if typ == ReportTypeComprehensive || typ == ReportTypeSummary {
		report.Summary = summarize(snaps)
	}
	if typ == ReportTypeComprehensive {
		trends := analyzer.AnalyzeTrends(snaps)
		report.Trends = &trends
	}
	if typ == ReportTypeComprehensive || typ == ReportTypeAlertFocused {
		report.Anomalies = analyzer.DetectAnomalies(snaps, o.config().AnomalyThreshold)
		report.Recommendations = recommendForAnomalies(report.Anomalies)
	}
	return common.Ok(report)
}

func summarize(snaps []metrics.Snapshot) *ReportSummary {
	s := &ReportSummary{SnapshotCount: len(snaps)}
	if len(snaps) == 0 {
		return s
	}

	for _, snap := range snaps {
		s.AvgCPU += snap.CPU.Usage
		if snap.CPU.Usage > s.PeakCPU {
			s.PeakCPU = snap.CPU.Usage
		}
		memPct := snap.Memory.UsagePercent()
		s.AvgMemory += memPct
		if memPct > s.PeakMemory {
			s.PeakMemory = memPct
		}
		s.AvgDiskUsage += snap.Disk.Usage
	}
	n := float64(len(snaps))
	s.AvgCPU /= n
	s.AvgMemory /= n
	s.AvgDiskUsage /= n

	// Cumulative counters: the window's traffic is last minus first.
	first, last := snaps[0].Network, snaps[len(snaps)-1].Network
	if last.BytesRecv >= first.BytesRecv {
		s.NetworkRecv = last.BytesRecv - first.BytesRecv
	}
	if last.BytesSent >= first.BytesSent {
		s.NetworkSent = last.BytesSent - first.BytesSent
	}
	return s
}

func recommendForAnomalies(anomalies []analyzer.Anomaly) []string {
	if len(anomalies) == 0 {
		return nil
	}
	seen := make(map[analyzer.AnomalyType]bool)
	var out []string
	for _, a := range anomalies {
		if seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		switch a.Type {
		case analyzer.AnomalyCPUSpike:
			out = append(out, "CPU spikes detected; review recently started workloads and consider throttling background tasks")
		case analyzer.AnomalyMemoryLeak:
			out = append(out, "Memory usage deviates from baseline; inspect long-running processes for leaks and clear caches")
		case analyzer.AnomalyNetworkCongestion:
			out = append(out, "Network error rate is anomalous; check link quality and retry-heavy clients")
		case analyzer.AnomalyDiskIOHigh:
			out = append(out, "Disk I/O is anomalous; stagger batch jobs and verify disk health")
		case analyzer.AnomalyBatteryDrain:
			out = append(out, "Battery is draining abnormally fast; reduce sampling frequency and background work")
		case analyzer.AnomalySystemOverload:
			out = append(out, "Overall system load is anomalous; shed non-essential work")
		}
	}
	return out
}
