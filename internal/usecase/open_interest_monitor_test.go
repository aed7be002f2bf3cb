package usecase

import "testing"

func TestOpenInterestMonitor_FirstSampleSeedsBaseline(t *testing.T) {
	m := NewOpenInterestMonitor()
	m.RecordSample(100, 0)

	r := m.Reading()
	if r.CurrentOI != 100 || r.OiChangeAbs != 0 || r.OiChangePct != 0 {
		t.Fatalf("expected zeroed change on first sample, got %+v", r)
	}
}

func TestOpenInterestMonitor_ChangeAgainstBaseline(t *testing.T) {
	m := NewOpenInterestMonitor()
	m.RecordSample(100, 0)
	m.RecordSample(110, 10_000)

	r := m.Reading()
	if r.CurrentOI != 110 {
		t.Fatalf("expected current 110, got %v", r.CurrentOI)
	}
	if r.OiChangeAbs != 10 {
		t.Fatalf("expected change abs 10, got %v", r.OiChangeAbs)
	}
	if r.OiChangePct < 9.99 || r.OiChangePct > 10.01 {
		t.Fatalf("expected change pct ~10, got %v", r.OiChangePct)
	}
}

func TestOpenInterestMonitor_ZeroBaselineGivesZeroPct(t *testing.T) {
	m := NewOpenInterestMonitor()
	m.RecordSample(0, 0)
	m.RecordSample(50, 1000)
	if m.Reading().OiChangePct != 0 {
		t.Fatalf("expected 0 pct when baseline <= 0")
	}
}

func TestOpenInterestMonitor_BaselineRepinsAfter60s(t *testing.T) {
	m := NewOpenInterestMonitor()
	m.RecordSample(100, 0)
	m.RecordSample(105, 30_000)
	// At t=70s, 60s have elapsed since baseline pin at t=0; baseline should
	// re-pin to the earliest sample with timestamp >= 70s-60s=10s, i.e. the
	// t=30s sample (value 105).
	m.RecordSample(108, 70_000)

	r := m.Reading()
	if r.OiChangeAbs != 3 { // 108 - 105
		t.Fatalf("expected baseline re-pinned to 105, got changeAbs=%v", r.OiChangeAbs)
	}
}

func TestOpenInterestMonitor_HistoryCulledTo5Minutes(t *testing.T) {
	m := NewOpenInterestMonitor()
	m.RecordSample(100, 0)
	m.RecordSample(200, 6*60*1000) // 6 minutes later, beyond the 5-minute window

	if len(m.history) != 1 {
		t.Fatalf("expected stale history entry culled, got %d entries", len(m.history))
	}
}
