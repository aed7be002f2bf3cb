package usecase

import (
	"sync"
)

// oiSample is one history entry, per spec.md §3.
type oiSample struct {
	value       float64
	timestampMs int64
}

// OpenInterestMonitor tracks polled open interest with a rolling 60s
// baseline, per spec.md §4.4. It is the sole writer of its own state;
// callers feed it poll results via RecordSample.
type OpenInterestMonitor struct {
	mu sync.Mutex

	currentOI         float64
	previousOI        float64
	baselineOI        float64
	baselineTimestamp int64

	history []oiSample // bounded to 5 minutes
}

// NewOpenInterestMonitor constructs an empty monitor.
func NewOpenInterestMonitor() *OpenInterestMonitor {
	return &OpenInterestMonitor{}
}

const (
	oiHistoryWindowMs  = 5 * 60 * 1000
	oiBaselineRepinMs  = 60 * 1000
)

// RecordSample applies one successful poll result, per spec.md §4.4:
//   - first sample seeds both currentOI and baselineOI
//   - subsequent samples shift current/previous and append to history
//   - history is culled to 5 minutes
//   - the baseline re-pins to the earliest history entry >= now-60s once
//     60s have elapsed since it was last pinned
func (m *OpenInterestMonitor) RecordSample(value float64, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentOI == 0 {
		m.baselineOI = value
		m.baselineTimestamp = nowMs
	} else {
		m.previousOI = m.currentOI
	}
	m.currentOI = value

	m.history = append(m.history, oiSample{value: value, timestampMs: nowMs})
	cutoff := nowMs - oiHistoryWindowMs
	i := 0
	for i < len(m.history) && m.history[i].timestampMs < cutoff {
		i++
	}
	if i > 0 {
		m.history = append(m.history[:0], m.history[i:]...)
	}

	if nowMs-m.baselineTimestamp >= oiBaselineRepinMs {
		repinCutoff := nowMs - oiBaselineRepinMs
		for _, s := range m.history {
			if s.timestampMs >= repinCutoff {
				m.baselineOI = s.value
				m.baselineTimestamp = s.timestampMs
				break
			}
		}
	}
}

// OiReading is the published OI block's computed fields, per spec.md §4.4.
type OiReading struct {
	CurrentOI     float64
	OiChangeAbs   float64
	OiChangePct   float64
	OiDeltaWindow float64
}

// Reading computes the current OI block.
func (m *OpenInterestMonitor) Reading() OiReading {
	m.mu.Lock()
	defer m.mu.Unlock()

	changeAbs := m.currentOI - m.baselineOI
	var changePct float64
	if m.baselineOI > 0 {
		changePct = changeAbs / m.baselineOI * 100
	}
	return OiReading{
		CurrentOI:     m.currentOI,
		OiChangeAbs:   changeAbs,
		OiChangePct:   changePct,
		OiDeltaWindow: changeAbs,
	}
}
