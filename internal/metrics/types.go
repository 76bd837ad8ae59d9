// Package metrics defines the value types flowing through the telemetry
// core: per-resource readings, fused snapshots, derived load and the
// reference threshold set.
package metrics

import "time"

// CPUMetrics represents an instantaneous CPU reading.
type CPUMetrics struct {
	Usage        float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	Temperature  float64 `json:"temperature"`
}

// MemoryMetrics represents an instantaneous memory reading in bytes.
type MemoryMetrics struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
	Cached    uint64 `json:"cached"`
}

// UsagePercent derives used/total as a percentage, 0 when total is unknown.
func (m MemoryMetrics) UsagePercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used) / float64(m.Total) * 100
}

// NetworkMetrics holds cumulative interface counters.
type NetworkMetrics struct {
	BytesRecv   uint64 `json:"bytes_recv"`
	BytesSent   uint64 `json:"bytes_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	Errors      uint64 `json:"errors"`
}

// TotalBytes sums both directions.
func (n NetworkMetrics) TotalBytes() uint64 {
	return n.BytesRecv + n.BytesSent
}

// DiskMetrics holds disk space usage and cumulative I/O counters.
type DiskMetrics struct {
	Usage      float64 `json:"usage_percent"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	ReadOps    uint64  `json:"read_ops"`
	WriteOps   uint64  `json:"write_ops"`
	ReadBytes  uint64  `json:"read_bytes"`
	WriteBytes uint64  `json:"write_bytes"`
}

// BatteryMetrics is present only on supported hardware.
type BatteryMetrics struct {
	Level         float64       `json:"level_percent"`
	Charging      bool          `json:"charging"`
	Voltage       float64       `json:"voltage"`
	Temperature   float64       `json:"temperature"`
	Health        string        `json:"health"`
	EstimatedTime time.Duration `json:"estimated_time"`
}

// LoadStatus tiers instantaneous pressure.
type LoadStatus string

const (
	LoadLow      LoadStatus = "LOW"
	LoadMedium   LoadStatus = "MEDIUM"
	LoadHigh     LoadStatus = "HIGH"
	LoadCritical LoadStatus = "CRITICAL"
)

// SystemLoad is a derived composite summarizing instantaneous pressure.
type SystemLoad struct {
	CPUPercent    float64    `json:"cpu_percent"`
	MemoryPercent float64    `json:"memory_percent"`
	Overall       float64    `json:"overall_percent"`
	Status        LoadStatus `json:"status"`
}

// ComputeSystemLoad derives SystemLoad from CPU and memory readings.
// Overall is (cpu%+memory%)/2; tiers: <30 LOW, <70 MEDIUM, <90 HIGH,
// else CRITICAL.
func ComputeSystemLoad(cpu CPUMetrics, mem MemoryMetrics) SystemLoad {
	memPct := mem.UsagePercent()
	overall := (cpu.Usage + memPct) / 2

	status := LoadCritical
	switch {
	case overall < 30:
		status = LoadLow
	case overall < 70:
		status = LoadMedium
	case overall < 90:
		status = LoadHigh
	}

	return SystemLoad{
		CPUPercent:    cpu.Usage,
		MemoryPercent: memPct,
		Overall:       overall,
		Status:        status,
	}
}

// Snapshot is one fused, timestamped reading of all monitored resources.
// It is immutable after creation.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	CPU       CPUMetrics      `json:"cpu"`
	Memory    MemoryMetrics   `json:"memory"`
	Network   NetworkMetrics  `json:"network"`
	Disk      DiskMetrics     `json:"disk"`
	Battery   *BatteryMetrics `json:"battery,omitempty"`
	Load      SystemLoad      `json:"load"`
}

// Thresholds is the per-metric reference threshold set used by issue
// derivation and shown alongside alerts. Battery is inverted: lower is
// worse.
type Thresholds struct {
	CPU           float64 `json:"cpu" mapstructure:"cpu"`
	Memory        float64 `json:"memory" mapstructure:"memory"`
	Disk          float64 `json:"disk" mapstructure:"disk"`
	NetworkErrors float64 `json:"network_errors" mapstructure:"network_errors"`
	BatteryLow    float64 `json:"battery_low" mapstructure:"battery_low"`
}

// DefaultThresholds returns the stock threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:           80,
		Memory:        85,
		Disk:          90,
		NetworkErrors: 100,
		BatteryLow:    20,
	}
}
