package collector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// Scripted providers for deterministic tests: each Read pops the next
// queued reading or error.

type fakeCPU struct {
	readings []metrics.CPUMetrics
	errs     []error
	calls    int
}

func (f *fakeCPU) Read() (metrics.CPUMetrics, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return metrics.CPUMetrics{}, f.errs[i]
	}
	if i >= len(f.readings) {
		return f.readings[len(f.readings)-1], nil
	}
	return f.readings[i], nil
}

type fakeNetwork struct {
	readings []metrics.NetworkMetrics
	calls    int
}

func (f *fakeNetwork) Read() (metrics.NetworkMetrics, error) {
	i := f.calls
	f.calls++
	if i >= len(f.readings) {
		return f.readings[len(f.readings)-1], nil
	}
	return f.readings[i], nil
}

func TestCPUCollectorLastKnownFallback(t *testing.T) {
	t.Parallel()

	provider := &fakeCPU{
		readings: []metrics.CPUMetrics{{Usage: 42, Cores: 8}, {}, {Usage: 55, Cores: 8}},
		errs:     []error{nil, errors.New("transient read failure"), nil},
	}
	c := NewCPUCollector(zap.NewNop(), provider)
	c.Initialize()
	c.Start()

	// Initialize consumed the first reading; the next read fails and the
	// last-known value is repeated.
	assert.Equal(t, 42.0, c.Current().Usage)
	assert.Equal(t, 55.0, c.Current().Usage)
}

func TestCPUCollectorInactiveReturnsLast(t *testing.T) {
	t.Parallel()

	provider := &fakeCPU{readings: []metrics.CPUMetrics{{Usage: 30}}}
	c := NewCPUCollector(zap.NewNop(), provider)
	c.Initialize()

	// Never started: no fresh reads happen.
	assert.Equal(t, 30.0, c.Current().Usage)
	assert.Equal(t, 1, provider.calls)

	c.Start()
	c.Stop()
	assert.Equal(t, 30.0, c.Current().Usage)
	assert.Equal(t, 1, provider.calls)
}

func TestNetworkCollectorMonotonicCounters(t *testing.T) {
	t.Parallel()

	provider := &fakeNetwork{readings: []metrics.NetworkMetrics{
		{BytesRecv: 1000, BytesSent: 500, Errors: 2},
		{BytesRecv: 2000, BytesSent: 800, Errors: 3},
		// Counter reset at the interface: must clamp, not regress.
		{BytesRecv: 100, BytesSent: 50, Errors: 0},
	}}
	c := NewNetworkCollector(zap.NewNop(), provider)
	c.Initialize()
	c.Start()

	m := c.Current()
	assert.Equal(t, uint64(2000), m.BytesRecv)

	m = c.Current()
	assert.Equal(t, uint64(2000), m.BytesRecv)
	assert.Equal(t, uint64(800), m.BytesSent)
	assert.Equal(t, uint64(3), m.Errors)
}

func TestBatteryCollectorUnsupported(t *testing.T) {
	t.Parallel()

	c := NewBatteryCollector(zap.NewNop(), UnsupportedBattery{})
	c.Initialize()
	c.Start()

	assert.False(t, c.Supported())
	assert.Nil(t, c.Current())
}

func TestBatteryCollectorSupported(t *testing.T) {
	t.Parallel()

	c := NewBatteryCollector(zap.NewNop(), StaticBattery{
		Metrics: metrics.BatteryMetrics{Level: 75, Charging: true, Health: "good"},
	})
	c.Initialize()
	c.Start()

	require.True(t, c.Supported())
	m := c.Current()
	require.NotNil(t, m)
	assert.Equal(t, 75.0, m.Level)
	assert.True(t, m.Charging)

	// Returned pointer is a copy; mutating it does not leak back in.
	m.Level = 1
	again := c.Current()
	assert.Equal(t, 75.0, again.Level)
}
