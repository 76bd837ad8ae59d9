package collector

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shizukutanaka/Mihari/internal/common"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// csvHeader is the fixed CSV export header. The battery column is left
// empty for snapshots taken on unsupported hardware.
var csvHeader = []string{
	"Timestamp", "CPU_Usage", "Memory_Used", "Memory_Total",
	"Network_Received", "Network_Sent", "Disk_Usage", "Battery_Level",
}

// ExportJSON encodes a snapshot list as JSON. Decoding the output yields
// field-for-field equal snapshots.
func ExportJSON(snapshots []metrics.Snapshot) common.Result[string] {
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return common.Err[string](
			common.NewError(common.ErrorTypeExport, "EXPORT_JSON", "failed to encode snapshots").WithError(err))
	}
	return common.Ok(string(data))
}

// ImportJSON decodes a snapshot list produced by ExportJSON.
func ImportJSON(data string) common.Result[[]metrics.Snapshot] {
	var snaps []metrics.Snapshot
	if err := json.Unmarshal([]byte(data), &snaps); err != nil {
		return common.Err[[]metrics.Snapshot](
			common.NewError(common.ErrorTypeExport, "IMPORT_JSON", "failed to decode snapshots").WithError(err))
	}
	return common.Ok(snaps)
}

// ExportCSV encodes a snapshot list as CSV with the fixed header, one row
// per snapshot.
func ExportCSV(snapshots []metrics.Snapshot) common.Result[string] {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return common.Err[string](
			common.NewError(common.ErrorTypeExport, "EXPORT_CSV", "failed to write header").WithError(err))
	}
	for _, s := range snapshots {
		battery := ""
		if s.Battery != nil {
			battery = strconv.FormatFloat(s.Battery.Level, 'f', 2, 64)
		}
		row := []string{
			s.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(s.CPU.Usage, 'f', 2, 64),
			strconv.FormatUint(s.Memory.Used, 10),
			strconv.FormatUint(s.Memory.Total, 10),
			strconv.FormatUint(s.Network.BytesRecv, 10),
			strconv.FormatUint(s.Network.BytesSent, 10),
			strconv.FormatFloat(s.Disk.Usage, 'f', 2, 64),
			battery,
		}
		if err := w.Write(row); err != nil {
			return common.Err[string](
				common.NewError(common.ErrorTypeExport, "EXPORT_CSV", "failed to write row").WithError(err))
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return common.Err[string](
			common.NewError(common.ErrorTypeExport, "EXPORT_CSV", "failed to flush").WithError(err))
	}
	return common.Ok(buf.String())
}
