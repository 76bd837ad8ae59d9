package metrics

import "time"

// AggregatedMetrics is a per-bucket average of the core metric families,
// derived on demand from range queries and never persisted.
type AggregatedMetrics struct {
	BucketStart     time.Time `json:"bucket_start"`
	AvgCPU          float64   `json:"avg_cpu_percent"`
	AvgMemory       float64   `json:"avg_memory_percent"`
	AvgNetworkBytes float64   `json:"avg_network_bytes"`
	AvgDiskUsage    float64   `json:"avg_disk_percent"`
	SampleCount     int       `json:"sample_count"`
}

// Aggregate groups snapshots into fixed-width interval buckets and averages
// each metric family. Snapshots must be in chronological order; buckets are
// aligned to the first snapshot's timestamp.
func Aggregate(snapshots []Snapshot, bucket time.Duration) []AggregatedMetrics {
	if len(snapshots) == 0 || bucket <= 0 {
		return nil
	}

	origin := snapshots[0].Timestamp
	var out []AggregatedMetrics
	var cur *AggregatedMetrics
	var curIdx int64 = -1

	for _, s := range snapshots {
		idx := int64(s.Timestamp.Sub(origin) / bucket)
		if idx != curIdx {
			if cur != nil {
				finishBucket(cur)
				out = append(out, *cur)
			}
			cur = &AggregatedMetrics{BucketStart: origin.Add(time.Duration(idx) * bucket)}
			curIdx = idx
		}
		cur.AvgCPU += s.CPU.Usage
		cur.AvgMemory += s.Memory.UsagePercent()
		cur.AvgNetworkBytes += float64(s.Network.TotalBytes())
		cur.AvgDiskUsage += s.Disk.Usage
		cur.SampleCount++
	}
	if cur != nil {
		finishBucket(cur)
		out = append(out, *cur)
	}
	return out
}

func finishBucket(b *AggregatedMetrics) {
	n := float64(b.SampleCount)
	if n == 0 {
		return
	}
	b.AvgCPU /= n
	b.AvgMemory /= n
	b.AvgNetworkBytes /= n
	b.AvgDiskUsage /= n
}
