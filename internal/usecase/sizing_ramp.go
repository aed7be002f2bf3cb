package usecase

import (
	"math"
	"sync"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// SizingRamp is the adaptive capital-ramp state machine driven by
// closed-trade P&L from the execution collaborator, per spec.md §4.8.
// State is written only in response to closed-trade events, serialised by
// mu per spec.md §5.
type SizingRamp struct {
	mu       sync.Mutex
	cfg      domain.SizingRampConfig
	state    domain.SizingRampState
	symbol   string
	observer MetricsObserver
}

// NewSizingRamp constructs a ramp starting at cfg.StartingMargin, clamped
// to cfg's bounds. symbol/observer are used only to label metrics
// (observer may be nil).
func NewSizingRamp(cfg domain.SizingRampConfig, symbol string, observer MetricsObserver) *SizingRamp {
	min, max := cfg.Bounds()
	budget := clamp(cfg.StartingMargin, min, max)
	var mult float64
	if cfg.StartingMargin > 0 {
		mult = budget / cfg.StartingMargin
	}
	return &SizingRamp{
		cfg: cfg,
		state: domain.SizingRampState{
			CurrentMarginBudget: budget,
			RampMult:            mult,
		},
		symbol:   symbol,
		observer: observer,
	}
}

// RecordClose applies one closed trade's realized P&L: a win steps the
// budget up by rampStepPct, a loss decays it by rampDecayPct, both clamped
// to the configured bounds, per spec.md §4.8.
func (r *SizingRamp) RecordClose(pnl float64) domain.SizingRampState {
	r.mu.Lock()
	defer r.mu.Unlock()

	min, max := r.cfg.Bounds()
	if pnl > 0 {
		r.state.SuccessCount++
		r.state.CurrentMarginBudget *= 1 + r.cfg.RampStepPct/100
	} else {
		r.state.FailCount++
		r.state.CurrentMarginBudget *= 1 - r.cfg.RampDecayPct/100
	}
	r.state.CurrentMarginBudget = clamp(r.state.CurrentMarginBudget, min, max)

	if r.cfg.StartingMargin > 0 {
		r.state.RampMult = r.state.CurrentMarginBudget / r.cfg.StartingMargin
	} else {
		r.state.RampMult = 0
	}
	if r.observer != nil {
		r.observer.ObserveRampClose(r.symbol, pnl)
		r.observer.ObserveRampBudget(r.symbol, r.state.CurrentMarginBudget)
	}
	return r.state
}

// State returns a copy of the current ramp state.
func (r *SizingRamp) State() domain.SizingRampState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Size computes a sizing result against the current margin budget, per
// spec.md §4.8.
func (r *SizingRamp) Size(q domain.SizingQuery) domain.SizingResult {
	r.mu.Lock()
	budget := r.state.CurrentMarginBudget
	r.mu.Unlock()

	notional := budget * q.Leverage
	var qty float64
	if q.MarkPrice > 0 {
		qty = notional / q.MarkPrice
	}

	qtyRounded := qty
	if q.StepSize > 0 {
		qtyRounded = math.Floor(qty/q.StepSize) * q.StepSize
	}
	computedNotional := qtyRounded * q.MarkPrice

	if qtyRounded <= 0 || computedNotional < q.MinNotional {
		return domain.SizingResult{Blocked: true, BlockedReason: "min_notional"}
	}

	leverage := q.Leverage
	if leverage < 1 {
		leverage = 1
	}

	return domain.SizingResult{
		Qty:            qtyRounded,
		Notional:       computedNotional,
		MarginRequired: computedNotional / leverage,
	}
}
