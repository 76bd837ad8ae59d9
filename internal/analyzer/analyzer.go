// Package analyzer computes trend regressions and z-score anomalies over
// stored snapshot series. It is stateless; every call recomputes from the
// series it is handed.
package analyzer

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// AnomalyType identifies the metric family an anomaly belongs to.
type AnomalyType string

const (
	AnomalyCPUSpike          AnomalyType = "CPU_SPIKE"
	AnomalyMemoryLeak        AnomalyType = "MEMORY_LEAK"
	AnomalyNetworkCongestion AnomalyType = "NETWORK_CONGESTION"
	AnomalyDiskIOHigh        AnomalyType = "DISK_IO_HIGH"
	AnomalyBatteryDrain      AnomalyType = "BATTERY_DRAIN"
	AnomalySystemOverload    AnomalyType = "SYSTEM_OVERLOAD"
)

// Severity ranks anomalies, alerts and issues.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Anomaly is one out-of-band observation. Threshold holds the value-space
// boundary mean + z*stddev that was crossed, not the z-score itself; the
// severity is derived from the z-score separately.
type Anomaly struct {
	ID          string      `json:"id"`
	Type        AnomalyType `json:"type"`
	Severity    Severity    `json:"severity"`
	Timestamp   time.Time   `json:"timestamp"`
	Value       float64     `json:"value"`
	Threshold   float64     `json:"threshold"`
	Description string      `json:"description"`
	Metric      string      `json:"metric"`
}

// TrendAnalysis holds OLS slopes per metric family over a snapshot window.
type TrendAnalysis struct {
	CPUTrend     float64       `json:"cpu_trend"`
	MemoryTrend  float64       `json:"memory_trend"`
	NetworkTrend float64       `json:"network_trend"`
	DiskTrend    float64       `json:"disk_trend"`
	OverallTrend float64       `json:"overall_trend"`
	Window       time.Duration `json:"window"`
	SampleCount  int           `json:"sample_count"`
	Confidence   float64       `json:"confidence"`
}

const minAnomalySamples = 10

// AnalyzeTrends computes index-vs-value least-squares slopes for CPU usage,
// memory usage percent, summed network bytes and disk usage. The overall
// trend averages CPU, memory and disk; network is excluded because its
// units differ.
func AnalyzeTrends(snapshots []metrics.Snapshot) TrendAnalysis {
	if len(snapshots) < 2 {
		return TrendAnalysis{SampleCount: len(snapshots)}
	}

	xs := make([]float64, len(snapshots))
	cpu := make([]float64, len(snapshots))
	mem := make([]float64, len(snapshots))
	netw := make([]float64, len(snapshots))
	dsk := make([]float64, len(snapshots))
	for i, s := range snapshots {
		xs[i] = float64(i)
		cpu[i] = s.CPU.Usage
		mem[i] = s.Memory.UsagePercent()
		netw[i] = float64(s.Network.TotalBytes())
		dsk[i] = s.Disk.Usage
	}

	cpuSlope := slope(xs, cpu)
	memSlope := slope(xs, mem)
	netSlope := slope(xs, netw)
	dskSlope := slope(xs, dsk)

	return TrendAnalysis{
		CPUTrend:     cpuSlope,
		MemoryTrend:  memSlope,
		NetworkTrend: netSlope,
		DiskTrend:    dskSlope,
		OverallTrend: (cpuSlope + memSlope + dskSlope) / 3,
		Window:       snapshots[len(snapshots)-1].Timestamp.Sub(snapshots[0].Timestamp),
		SampleCount:  len(snapshots),
		Confidence:   Confidence(len(snapshots)),
	}
}

// Confidence maps a sample count to the tiered confidence score.
func Confidence(samples int) float64 {
	switch {
	case samples >= 100:
		return 0.95
	case samples >= 50:
		return 0.90
	case samples >= 20:
		return 0.80
	case samples >= 10:
		return 0.70
	default:
		return 0.50
	}
}

// DetectAnomalies flags points whose z-score exceeds the given threshold
// in the CPU usage, memory usage and network error series. Fewer than ten
// snapshots yields no anomalies.
func DetectAnomalies(snapshots []metrics.Snapshot, threshold float64) []Anomaly {
	if len(snapshots) < minAnomalySamples {
		return nil
	}

	var out []Anomaly
	out = append(out, detectSeries(snapshots, "cpu_usage", AnomalyCPUSpike, threshold, func(s metrics.Snapshot) float64 {
		return s.CPU.Usage
	})...)
	out = append(out, detectSeries(snapshots, "memory_usage", AnomalyMemoryLeak, threshold, func(s metrics.Snapshot) float64 {
		return s.Memory.UsagePercent()
	})...)
	out = append(out, detectSeries(snapshots, "network_errors", AnomalyNetworkCongestion, threshold, func(s metrics.Snapshot) float64 {
		return float64(s.Network.Errors)
	})...)
	return out
}

func detectSeries(snapshots []metrics.Snapshot, metric string, typ AnomalyType, threshold float64, value func(metrics.Snapshot) float64) []Anomaly {
	series := make([]float64, len(snapshots))
	for i, s := range snapshots {
		series[i] = value(s)
	}

	mean := stat.Mean(series, nil)
	stddev := popStdDev(series, mean)

	var out []Anomaly
	for i, v := range series {
		z := 0.0
		if stddev != 0 {
			z = math.Abs(v-mean) / stddev
		}
		if z <= threshold {
			continue
		}
		out = append(out, Anomaly{
			ID:        uuid.NewString(),
			Type:      typ,
			Severity:  severityForZ(z),
			Timestamp: snapshots[i].Timestamp,
			Value:     v,
			Threshold: mean + threshold*stddev,
			Description: fmt.Sprintf("%s value %.2f deviates %.2f sigma from mean %.2f",
				metric, v, z, mean),
			Metric: metric,
		})
	}
	return out
}

// popStdDev is the population standard deviation; gonum's StdDev is the
// sample estimator, which is not what the detection boundary uses.
func popStdDev(series []float64, mean float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)))
}

func severityForZ(z float64) Severity {
	switch {
	case z > 3.0:
		return SeverityCritical
	case z > 2.5:
		return SeverityHigh
	case z > 2.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func slope(xs, ys []float64) float64 {
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}
