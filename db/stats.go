package db

import (
	"sync/atomic"
	"time"
)

// QueryStats is an in-process MetricsCollector. The web health endpoint
// reports its snapshot next to the pool statistics.
type QueryStats struct {
	total   atomic.Int64
	failed  atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
}

// NewQueryStats returns an empty collector.
func NewQueryStats() *QueryStats { return &QueryStats{} }

// RecordQuery implements MetricsCollector.
func (s *QueryStats) RecordQuery(_ string, d time.Duration, success bool) {
	s.total.Add(1)
	if !success {
		s.failed.Add(1)
	}
	ns := d.Nanoseconds()
	s.totalNs.Add(ns)
	for {
		cur := s.maxNs.Load()
		if ns <= cur || s.maxNs.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// QueryStatsSnapshot is a point-in-time copy of the counters.
type QueryStatsSnapshot struct {
	Total       int64         `json:"total"`
	Failed      int64         `json:"failed"`
	AvgDuration time.Duration `json:"avg_duration_ns"`
	MaxDuration time.Duration `json:"max_duration_ns"`
}

// Snapshot reads the counters.
func (s *QueryStats) Snapshot() QueryStatsSnapshot {
	snap := QueryStatsSnapshot{
		Total:       s.total.Load(),
		Failed:      s.failed.Load(),
		MaxDuration: time.Duration(s.maxNs.Load()),
	}
	if snap.Total > 0 {
		snap.AvgDuration = time.Duration(s.totalNs.Load() / snap.Total)
	}
	return snap
}

var _ MetricsCollector = (*QueryStats)(nil)
