package collector

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// ErrBatteryUnsupported is returned by battery reads on hardware without
// a battery.
var ErrBatteryUnsupported = errors.New("battery not supported on this hardware")

// Each resource collector wraps one provider, keeps the last-known value
// and never lets a failed read escape into the sampling loop: on error it
// logs and repeats the previous reading.

// CPUCollector samples CPU usage.
type CPUCollector struct {
	logger   *zap.Logger
	provider CPUProvider

	mu     sync.Mutex
	active bool
	last   metrics.CPUMetrics
}

// NewCPUCollector creates an inactive CPU collector.
func NewCPUCollector(logger *zap.Logger, provider CPUProvider) *CPUCollector {
	return &CPUCollector{logger: logger, provider: provider}
}

// Initialize populates the static fields from a first read.
func (c *CPUCollector) Initialize() {
	if m, err := c.provider.Read(); err == nil {
		c.mu.Lock()
		c.last = m
		c.mu.Unlock()
	} else {
		c.logger.Warn("cpu collector initialize failed", zap.Error(err))
	}
}

// Start enables sampling.
func (c *CPUCollector) Start() {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
}

// Stop disables sampling; Current returns the last value afterwards.
func (c *CPUCollector) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Current refreshes and returns the latest reading. While inactive, or
// when the provider fails, the last-known value is returned instead.
func (c *CPUCollector) Current() metrics.CPUMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return c.last
	}
	m, err := c.provider.Read()
	if err != nil {
		c.logger.Warn("cpu read failed, using last-known value", zap.Error(err))
		return c.last
	}
	c.last = m
	return m
}

// MemoryCollector samples memory usage.
type MemoryCollector struct {
	logger   *zap.Logger
	provider MemoryProvider

	mu     sync.Mutex
	active bool
	last   metrics.MemoryMetrics
}

// NewMemoryCollector creates an inactive memory collector.
func NewMemoryCollector(logger *zap.Logger, provider MemoryProvider) *MemoryCollector {
	return &MemoryCollector{logger: logger, provider: provider}
}

// Initialize populates totals from a first read.
func (c *MemoryCollector) Initialize() {
	if m, err := c.provider.Read(); err == nil {
		c.mu.Lock()
		c.last = m
		c.mu.Unlock()
	} else {
		c.logger.Warn("memory collector initialize failed", zap.Error(err))
	}
}

func (c *MemoryCollector) Start() {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
}

func (c *MemoryCollector) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Current refreshes and returns the latest reading, falling back to the
// last-known value on failure.
func (c *MemoryCollector) Current() metrics.MemoryMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return c.last
	}
	m, err := c.provider.Read()
	if err != nil {
		c.logger.Warn("memory read failed, using last-known value", zap.Error(err))
		return c.last
	}
	c.last = m
	return m
}

// NetworkCollector samples cumulative network counters. Counters never go
// backwards while active: a reading below the previous one is clamped to
// the previous value.
type NetworkCollector struct {
	logger   *zap.Logger
	provider NetworkProvider

	mu     sync.Mutex
	active bool
	last   metrics.NetworkMetrics
}

// NewNetworkCollector creates an inactive network collector.
func NewNetworkCollector(logger *zap.Logger, provider NetworkProvider) *NetworkCollector {
	return &NetworkCollector{logger: logger, provider: provider}
}

func (c *NetworkCollector) Initialize() {
	if m, err := c.provider.Read(); err == nil {
		c.mu.Lock()
		c.last = m
		c.mu.Unlock()
	} else {
		c.logger.Warn("network collector initialize failed", zap.Error(err))
	}
}

func (c *NetworkCollector) Start() {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
}

func (c *NetworkCollector) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Current refreshes and returns the latest counters with monotonicity
// enforced against the previous reading.
func (c *NetworkCollector) Current() metrics.NetworkMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return c.last
	}
	m, err := c.provider.Read()
	if err != nil {
		c.logger.Warn("network read failed, using last-known value", zap.Error(err))
		return c.last
	}
	m.BytesRecv = maxU64(m.BytesRecv, c.last.BytesRecv)
	m.BytesSent = maxU64(m.BytesSent, c.last.BytesSent)
	m.PacketsRecv = maxU64(m.PacketsRecv, c.last.PacketsRecv)
	m.PacketsSent = maxU64(m.PacketsSent, c.last.PacketsSent)
	m.Errors = maxU64(m.Errors, c.last.Errors)
	c.last = m
	return m
}

// DiskCollector samples disk usage and cumulative I/O counters with the
// same monotonicity guarantee as the network collector.
type DiskCollector struct {
	logger   *zap.Logger
	provider DiskProvider

	mu     sync.Mutex
	active bool
	last   metrics.DiskMetrics
}

// NewDiskCollector creates an inactive disk collector.
func NewDiskCollector(logger *zap.Logger, provider DiskProvider) *DiskCollector {
	return &DiskCollector{logger: logger, provider: provider}
}

func (c *DiskCollector) Initialize() {
	if m, err := c.provider.Read(); err == nil {
		c.mu.Lock()
		c.last = m
		c.mu.Unlock()
	} else {
		c.logger.Warn("disk collector initialize failed", zap.Error(err))
	}
}

func (c *DiskCollector) Start() {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
}

func (c *DiskCollector) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Current refreshes and returns the latest reading with I/O counters
// clamped to be non-decreasing.
func (c *DiskCollector) Current() metrics.DiskMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return c.last
	}
	m, err := c.provider.Read()
	if err != nil {
		c.logger.Warn("disk read failed, using last-known value", zap.Error(err))
		return c.last
	}
	m.ReadOps = maxU64(m.ReadOps, c.last.ReadOps)
	m.WriteOps = maxU64(m.WriteOps, c.last.WriteOps)
	m.ReadBytes = maxU64(m.ReadBytes, c.last.ReadBytes)
	m.WriteBytes = maxU64(m.WriteBytes, c.last.WriteBytes)
	c.last = m
	return m
}

// BatteryCollector samples battery state on supported hardware. All
// operations are gated on Supported; Current returns nil when the
// hardware has no battery.
type BatteryCollector struct {
	logger   *zap.Logger
	provider BatteryProvider

	mu        sync.Mutex
	active    bool
	supported bool
	last      *metrics.BatteryMetrics
}

// NewBatteryCollector creates an inactive battery collector.
func NewBatteryCollector(logger *zap.Logger, provider BatteryProvider) *BatteryCollector {
	return &BatteryCollector{logger: logger, provider: provider}
}

// Initialize probes hardware support and the initial reading.
func (c *BatteryCollector) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supported = c.provider.Supported()
	if !c.supported {
		return
	}
	if m, err := c.provider.Read(); err == nil {
		c.last = &m
	} else {
		c.logger.Warn("battery collector initialize failed", zap.Error(err))
	}
}

// Supported reports whether the hardware has a readable battery.
func (c *BatteryCollector) Supported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supported
}

func (c *BatteryCollector) Start() {
	c.mu.Lock()
	if c.supported {
		c.active = true
	}
	c.mu.Unlock()
}

func (c *BatteryCollector) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Current returns the latest battery reading, or nil on unsupported
// hardware.
func (c *BatteryCollector) Current() *metrics.BatteryMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.supported {
		return nil
	}
	if !c.active {
		return copyBattery(c.last)
	}
	m, err := c.provider.Read()
	if err != nil {
		c.logger.Warn("battery read failed, using last-known value", zap.Error(err))
		return copyBattery(c.last)
	}
	c.last = &m
	return copyBattery(c.last)
}

func copyBattery(m *metrics.BatteryMetrics) *metrics.BatteryMetrics {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
