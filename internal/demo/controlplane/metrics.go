package controlplane

import (
	"sync/atomic"
	"time"
)

// Metrics tracks control plane call counters
type Metrics struct {
	Calls     int64 `json:"calls"`
	Errors    int64 `json:"errors"`
	LatencyNs int64 `json:"-"` // Total latency in nanoseconds
	Creates   int64 `json:"creates"`
	Deploys   int64 `json:"deploys"`
	Revokes   int64 `json:"revokes"`
}

func (m *Metrics) record(op string, duration time.Duration, ok bool) {
	atomic.AddInt64(&m.Calls, 1)
	atomic.AddInt64(&m.LatencyNs, duration.Nanoseconds())
	if !ok {
		atomic.AddInt64(&m.Errors, 1)
	}
	switch op {
	case "create_project":
		atomic.AddInt64(&m.Creates, 1)
	case "deploy_app":
		atomic.AddInt64(&m.Deploys, 1)
	case "revoke_project":
		atomic.AddInt64(&m.Revokes, 1)
	}
}

func (m *Metrics) snapshot() Metrics {
	return Metrics{
		Calls:     atomic.LoadInt64(&m.Calls),
		Errors:    atomic.LoadInt64(&m.Errors),
		LatencyNs: atomic.LoadInt64(&m.LatencyNs),
		Creates:   atomic.LoadInt64(&m.Creates),
		Deploys:   atomic.LoadInt64(&m.Deploys),
		Revokes:   atomic.LoadInt64(&m.Revokes),
	}
}

// AverageLatencyMs returns the average latency in milliseconds
func (m Metrics) AverageLatencyMs() float64 {
	if m.Calls == 0 {
		return 0
	}
	avgNs := float64(m.LatencyNs) / float64(m.Calls)
	return avgNs / 1e6
}

// ErrorRate returns the error rate as a percentage
func (m Metrics) ErrorRate() float64 {
	if m.Calls == 0 {
		return 0
	}
	return float64(m.Errors) / float64(m.Calls) * 100
}
