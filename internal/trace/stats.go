package trace

// Stats is the aggregate view of a ring snapshot, mirroring
// PTL_TraceStats_t from the original source.
type Stats struct {
	TotalReleases    uint32
	TotalCompletions uint32
	DeadlineMisses   uint32
	OverrunCount     uint32
	TotalTimeMs      uint64
	IdleTimeMs       uint64
	CPUUtilization   float64 // 0.0-1.0
}

// Reduce walks the ring's currently readable range once and returns
// aggregate statistics. Reducing the same underlying records twice (e.g.
// two calls with no intervening writes) yields identical results.
func (r *Ring) Reduce() Stats {
	snap := r.snapshot()
	records := r.Records()

	var stats Stats
	stats.IdleTimeMs = uint64(snap.idle)
	if len(records) > 0 {
		stats.TotalTimeMs = uint64(records[len(records)-1].Timestamp)
	}

	for _, rec := range records {
		switch rec.Event {
		case Release:
			stats.TotalReleases++
		case Complete:
			stats.TotalCompletions++
		case DeadlineMiss:
			stats.DeadlineMisses++
		default:
			if rec.Event.IsOverrun() {
				stats.OverrunCount++
			}
		}
	}

	if stats.TotalTimeMs > 0 {
		active := stats.TotalTimeMs - stats.IdleTimeMs
		stats.CPUUtilization = float64(active) / float64(stats.TotalTimeMs)
	}
	return stats
}

// Overhead returns 1-CPUUtilization; it is only meaningful once
// CPUUtilization has been measured against a known workload baseline.
func (s Stats) Overhead() float64 {
	return 1 - s.CPUUtilization
}
