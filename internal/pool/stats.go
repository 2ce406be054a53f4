package pool

import "sync/atomic"

// stats holds the process-lifetime counters described by the Pool
// Statistics data model. Plain atomics are enough here: every field is
// increment-only and read independently, so there is no cross-field
// invariant that would require the allocator's mutex.
type stats struct {
	totalExecutions int64
	totalExecTimeMS int64
	totalLines      int64
	successCount    int64
}

func (s *stats) record(durationMS int64, lines int, success bool) {
	atomic.AddInt64(&s.totalExecutions, 1)
	atomic.AddInt64(&s.totalExecTimeMS, durationMS)
	atomic.AddInt64(&s.totalLines, int64(lines))
	if success {
		atomic.AddInt64(&s.successCount, 1)
	}
}

// StatsSnapshot is the read-time view of stats with derived ratios computed.
type StatsSnapshot struct {
	TotalExecutions int64
	TotalExecTimeMS int64
	TotalLines      int64
	SuccessCount    int64
	AvgExecTimeMS   float64
	AvgLines        float64
	SuccessRatePct  float64
}

func (s *stats) snapshot() StatsSnapshot {
	total := atomic.LoadInt64(&s.totalExecutions)
	snap := StatsSnapshot{
		TotalExecutions: total,
		TotalExecTimeMS: atomic.LoadInt64(&s.totalExecTimeMS),
		TotalLines:      atomic.LoadInt64(&s.totalLines),
		SuccessCount:    atomic.LoadInt64(&s.successCount),
	}
	if total > 0 {
		snap.AvgExecTimeMS = float64(snap.TotalExecTimeMS) / float64(total)
		snap.AvgLines = float64(snap.TotalLines) / float64(total)
		snap.SuccessRatePct = float64(snap.SuccessCount) / float64(total) * 100
	}
	return snap
}
