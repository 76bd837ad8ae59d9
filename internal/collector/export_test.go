package collector

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

func exportSnapshots() []metrics.Snapshot {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []metrics.Snapshot{
		{
			Timestamp: base,
			CPU:       metrics.CPUMetrics{Usage: 42.5, Cores: 8},
			Memory:    metrics.MemoryMetrics{Total: 16000, Used: 8000},
			Network:   metrics.NetworkMetrics{BytesRecv: 1000, BytesSent: 500},
			Disk:      metrics.DiskMetrics{Usage: 61.2},
		},
		{
			Timestamp: base.Add(5 * time.Second),
			CPU:       metrics.CPUMetrics{Usage: 50, Cores: 8},
			Memory:    metrics.MemoryMetrics{Total: 16000, Used: 9000},
			Network:   metrics.NetworkMetrics{BytesRecv: 2000, BytesSent: 900},
			Disk:      metrics.DiskMetrics{Usage: 61.3},
			Battery:   &metrics.BatteryMetrics{Level: 80.5, Charging: true},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := exportSnapshots()
	exported := ExportJSON(orig)
	require.True(t, exported.IsOk())

	imported := ImportJSON(exported.Value())
	require.True(t, imported.IsOk())

	got := imported.Value()
	require.Len(t, got, 2)
	for i := range orig {
		assert.True(t, got[i].Timestamp.Equal(orig[i].Timestamp))
		assert.Equal(t, orig[i].CPU, got[i].CPU)
		assert.Equal(t, orig[i].Memory, got[i].Memory)
		assert.Equal(t, orig[i].Network, got[i].Network)
		assert.Equal(t, orig[i].Disk, got[i].Disk)
	}
	assert.Nil(t, got[0].Battery)
	require.NotNil(t, got[1].Battery)
	assert.Equal(t, 80.5, got[1].Battery.Level)
}

func TestImportJSONRejectsGarbage(t *testing.T) {
	t.Parallel()

	res := ImportJSON("{not json")
	assert.False(t, res.IsOk())
	assert.NotNil(t, res.Err())
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	res := ExportCSV(exportSnapshots())
	require.True(t, res.IsOk())

	records, err := csv.NewReader(strings.NewReader(res.Value())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])

	// Battery column is empty for the batteryless snapshot and filled for
	// the other.
	assert.Equal(t, "", records[1][7])
	assert.Equal(t, "80.50", records[2][7])
	assert.Equal(t, "42.50", records[1][1])
	assert.Equal(t, "8000", records[1][2])
	assert.Equal(t, "16000", records[1][3])
}

func TestExportCSVEmpty(t *testing.T) {
	t.Parallel()

	res := ExportCSV(nil)
	require.True(t, res.IsOk())

	lines := strings.Split(strings.TrimSpace(res.Value()), "\n")
	assert.Len(t, lines, 1)
}
