package executor

import (
	"sync"
	"time"

	"vote-program/models"
)

// Metrics tracks per-instruction execution counts and timings.
type Metrics struct {
	mu  sync.RWMutex
	ops map[models.Instruction]*operationStats
}

type operationStats struct {
	startTime time.Time
	endTime   time.Time
	count     int
	failures  int
	totalTime time.Duration
}

// OperationMetrics contains timing information for an instruction
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Failures       int       `json:"failures"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

type MetricsResponse struct {
	Operations map[models.Instruction]OperationMetrics `json:"operations"`
}

func NewMetrics() *Metrics {
	return &Metrics{ops: make(map[models.Instruction]*operationStats)}
}

// Record adds one execution of instruction that took duration.
func (m *Metrics) Record(instruction models.Instruction, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.ops[instruction]
	if !ok {
		stats = &operationStats{}
		m.ops[instruction] = stats
	}
	now := time.Now()
	if stats.count == 0 {
		stats.startTime = now.Add(-duration)
	}
	stats.count++
	if failed {
		stats.failures++
	}
	stats.endTime = now
	stats.totalTime += duration
}

func (m *Metrics) Snapshot() MetricsResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := MetricsResponse{Operations: make(map[models.Instruction]OperationMetrics, len(m.ops))}
	for instruction, stats := range m.ops {
		out.Operations[instruction] = OperationMetrics{
			StartTime:      stats.startTime,
			EndTime:        stats.endTime,
			Count:          stats.count,
			Failures:       stats.failures,
			ProcessingTime: stats.totalTime.Milliseconds(),
		}
	}
	return out
}

// Reset clears all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[models.Instruction]*operationStats)
}
