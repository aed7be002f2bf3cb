package usecase

import (
	"math"
	"sync"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// fundingTrendEpsilon is the deadband below which a funding-rate move is
// reported as "flat" rather than up/down, mirroring the degenerate-
// denominator guards LegacyCalculator already uses.
const fundingTrendEpsilon = 1e-9

// FundingMonitor polls a funding-rate collaborator on the same polling
// primitive as OpenInterestMonitor (supplemented feature, see
// SPEC_FULL.md: spec.md §6 defines the wire shape for "funding" without
// assigning it an owning component).
type FundingMonitor struct {
	mu sync.Mutex

	hasSample     bool
	rate          float64
	previousRate  float64
	nextFundingMs int64
}

// NewFundingMonitor constructs an empty monitor.
func NewFundingMonitor() *FundingMonitor { return &FundingMonitor{} }

// RecordSample applies one successful funding poll. Failure is handled by
// the caller simply not calling RecordSample (last known value persists),
// per spec.md §7's OiPollFailure policy, reused here for funding.
func (f *FundingMonitor) RecordSample(rate float64, nextFundingMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasSample {
		f.previousRate = f.rate
	} else {
		f.previousRate = rate
	}
	f.rate = rate
	f.nextFundingMs = nextFundingMs
	f.hasSample = true
}

// Reading computes the published funding block, or false if no sample has
// ever been recorded.
func (f *FundingMonitor) Reading(nowMs int64) (domain.FundingBlock, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasSample {
		return domain.FundingBlock{}, false
	}

	trend := domain.FundingFlat
	diff := f.rate - f.previousRate
	if math.Abs(diff) > fundingTrendEpsilon {
		if diff > 0 {
			trend = domain.FundingUp
		} else {
			trend = domain.FundingDown
		}
	}

	timeToFunding := f.nextFundingMs - nowMs
	if timeToFunding < 0 {
		timeToFunding = 0
	}

	return domain.FundingBlock{
		Rate:            f.rate,
		TimeToFundingMs: timeToFunding,
		Trend:           trend,
	}, true
}
