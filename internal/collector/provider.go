// Package collector wraps the raw metric providers behind per-resource
// collectors and hosts the orchestrator that fuses their readings into
// snapshots.
package collector

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// Raw metric providers. A provider is a synchronous zero-argument read of
// the current OS-level value; it is the only place OS APIs are touched.
type (
	CPUProvider interface {
		Read() (metrics.CPUMetrics, error)
	}
	MemoryProvider interface {
		Read() (metrics.MemoryMetrics, error)
	}
	NetworkProvider interface {
		Read() (metrics.NetworkMetrics, error)
	}
	DiskProvider interface {
		Read() (metrics.DiskMetrics, error)
	}
	// BatteryProvider additionally reports hardware support; Read is only
	// meaningful when Supported returns true.
	BatteryProvider interface {
		Supported() bool
		Read() (metrics.BatteryMetrics, error)
	}
)

// Providers bundles one provider per resource.
type Providers struct {
	CPU     CPUProvider
	Memory  MemoryProvider
	Network NetworkProvider
	Disk    DiskProvider
	Battery BatteryProvider
}

// SystemProviders returns gopsutil-backed providers for the host, with an
// unsupported battery (desktop hardware has no portable battery API).
func SystemProviders(diskPath string) Providers {
	if diskPath == "" {
		diskPath = "/"
	}
	return Providers{
		CPU:     &systemCPUProvider{},
		Memory:  &systemMemoryProvider{},
		Network: &systemNetworkProvider{},
		Disk:    &systemDiskProvider{path: diskPath},
		Battery: UnsupportedBattery{},
	}
}

type systemCPUProvider struct{}

func (p *systemCPUProvider) Read() (metrics.CPUMetrics, error) {
	m := metrics.CPUMetrics{Cores: runtime.NumCPU()}

	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return m, err
	}
	if len(percentages) > 0 {
		m.Usage = percentages[0]
	}

	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		m.FrequencyMHz = info[0].Mhz
		if info[0].Cores > 0 {
			m.Cores = int(info[0].Cores)
		}
	}
	return m, nil
}

type systemMemoryProvider struct{}

func (p *systemMemoryProvider) Read() (metrics.MemoryMetrics, error) {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return metrics.MemoryMetrics{}, err
	}
	return metrics.MemoryMetrics{
		Total:     vmem.Total,
		Used:      vmem.Used,
		Available: vmem.Available,
		Cached:    vmem.Cached,
	}, nil
}

type systemNetworkProvider struct{}

func (p *systemNetworkProvider) Read() (metrics.NetworkMetrics, error) {
	counters, err := gnet.IOCounters(false)
	if err != nil {
		return metrics.NetworkMetrics{}, err
	}
	var m metrics.NetworkMetrics
	if len(counters) > 0 {
		c := counters[0]
		m = metrics.NetworkMetrics{
			BytesRecv:   c.BytesRecv,
			BytesSent:   c.BytesSent,
			PacketsRecv: c.PacketsRecv,
			PacketsSent: c.PacketsSent,
			Errors:      c.Errin + c.Errout,
		}
	}
	return m, nil
}

type systemDiskProvider struct {
	path string
}

func (p *systemDiskProvider) Read() (metrics.DiskMetrics, error) {
	usage, err := disk.Usage(p.path)
	if err != nil {
		return metrics.DiskMetrics{}, err
	}
	m := metrics.DiskMetrics{
		Usage: usage.UsedPercent,
		Total: usage.Total,
		Used:  usage.Used,
		Free:  usage.Free,
	}

	if counters, err := disk.IOCounters(); err == nil {
		for _, c := range counters {
			m.ReadOps += c.ReadCount
			m.WriteOps += c.WriteCount
			m.ReadBytes += c.ReadBytes
			m.WriteBytes += c.WriteBytes
		}
	}
	return m, nil
}

// UnsupportedBattery is the battery provider for hardware without one.
type UnsupportedBattery struct{}

// Supported always reports false.
func (UnsupportedBattery) Supported() bool { return false }

// Read never succeeds on unsupported hardware.
func (UnsupportedBattery) Read() (metrics.BatteryMetrics, error) {
	return metrics.BatteryMetrics{}, ErrBatteryUnsupported
}

// StaticBattery is a battery provider returning a fixed reading, used on
// platforms with an external battery reader and in tests.
type StaticBattery struct {
	Metrics metrics.BatteryMetrics
}

func (b StaticBattery) Supported() bool { return true }

func (b StaticBattery) Read() (metrics.BatteryMetrics, error) {
	m := b.Metrics
	if m.EstimatedTime == 0 && !m.Charging {
		// Rough linear estimate from the level when the reader gives none.
		m.EstimatedTime = time.Duration(m.Level/100*8) * time.Hour
	}
	return m, nil
}
