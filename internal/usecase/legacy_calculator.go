package usecase

import (
	"math"
	"sync"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// legacyEps guards every division in this file against a near-zero
// denominator, per spec.md §4.5 ("returns 0 if denominator < ε").
const legacyEps = 1e-9

const (
	legacyWindowMs   = 10_000 // the calculator's own 10s trade list, spec.md §4.5
	legacyHistoryCap = 60     // last 60 delta1s / cvdSession samples
)

// LegacyCalculator computes the composite OBI/delta/Z-score/CVD/VWAP
// scalars, per spec.md §4.5. It owns a 10s trade list kept separate from
// TradeAggregator's window to bound memory independently, plus
// session-lifetime CVD and VWAP accumulators.
type LegacyCalculator struct {
	mu sync.Mutex

	window *domain.RollingWindow[domain.Trade]

	cvdSession     float64
	totalNotional  float64
	totalVolume    float64

	delta1sHistory []float64
	cvdHistory     []float64
}

// NewLegacyCalculator constructs a calculator with empty session state.
func NewLegacyCalculator() *LegacyCalculator {
	return &LegacyCalculator{window: domain.NewRollingWindow[domain.Trade](legacyWindowMs)}
}

// AddTrade feeds one trade into the 10s list and the session-lifetime CVD
// and VWAP accumulators.
func (c *LegacyCalculator) AddTrade(t domain.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window.Add(t)
	c.cvdSession += t.SignedQuantity().InexactFloat64()
	c.totalNotional += t.Notional().InexactFloat64()
	c.totalVolume += t.Quantity.InexactFloat64()
}

// Composite is one tick's worth of composite scalars, per spec.md §4.5/§6.
type Composite struct {
	ObiWeighted   float64
	ObiDeep       float64
	ObiDivergence float64
	Delta1s       float64
	Delta5s       float64
	DeltaZ        float64
	CvdSession    float64
	CvdSlope      float64
	Vwap          float64
}

// obi computes (bidVol-askVol)/(bidVol+askVol), 0 if the denominator is
// near zero, per spec.md §4.5.
func obi(bidVol, askVol float64) float64 {
	denom := bidVol + askVol
	if denom < legacyEps {
		return 0
	}
	return (bidVol - askVol) / denom
}

// Compute reads the current book view (for OBI) and the calculator's own
// session state (for delta/Z/CVD/VWAP), samples delta1s and cvdSession
// into their rolling histories, and returns the composite. Compute is the
// one place new history samples are taken, so it should be called once per
// assembler tick (spec.md §4.6).
func (c *LegacyCalculator) Compute(book BookView, nowMs int64) Composite {
	c.mu.Lock()
	defer c.mu.Unlock()

	weighted := obi(book.BidVolume10.InexactFloat64(), book.AskVolume10.InexactFloat64())
	deep := obi(book.BidVolume50.InexactFloat64(), book.AskVolume50.InexactFloat64())

	entries := c.window.Entries()
	refTime := nowMs
	if len(entries) > 0 {
		refTime = entries[len(entries)-1].TimestampMs
	}

	var delta1s, delta5s float64
	for _, t := range entries {
		signed := t.SignedQuantity().InexactFloat64()
		if t.TimestampMs >= refTime-1000 {
			delta1s += signed
		}
		if t.TimestampMs >= refTime-5000 {
			delta5s += signed
		}
	}

	c.delta1sHistory = appendCapped(c.delta1sHistory, delta1s, legacyHistoryCap)
	c.cvdHistory = appendCapped(c.cvdHistory, c.cvdSession, legacyHistoryCap)

	var vwap float64
	if c.totalVolume >= legacyEps {
		vwap = c.totalNotional / c.totalVolume
	}

	return Composite{
		ObiWeighted:   weighted,
		ObiDeep:       deep,
		ObiDivergence: weighted - deep,
		Delta1s:       delta1s,
		Delta5s:       delta5s,
		DeltaZ:        zScore(c.delta1sHistory, delta1s),
		CvdSession:    c.cvdSession,
		CvdSlope:      leastSquaresSlope(c.cvdHistory),
		Vwap:          vwap,
	}
}

func appendCapped(history []float64, v float64, maxLen int) []float64 {
	history = append(history, v)
	if over := len(history) - maxLen; over > 0 {
		history = append(history[:0], history[over:]...)
	}
	return history
}

// zScore reports (x-mean)/std using population variance over history,
// producing 0 if std < eps or history length < 5, per spec.md §4.5.
func zScore(history []float64, x float64) float64 {
	if len(history) < 5 {
		return 0
	}
	mean := 0.0
	for _, v := range history {
		mean += v
	}
	mean /= float64(len(history))

	var variance float64
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(history))

	std := math.Sqrt(variance)
	if std < legacyEps {
		return 0
	}
	return (x - mean) / std
}

// leastSquaresSlope fits y = a + b*x over integer x = 0..n-1, returning b.
// Produces 0 if history < 2 or the denominator is degenerate, per
// spec.md §4.5.
func leastSquaresSlope(history []float64) float64 {
	n := len(history)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom < legacyEps && denom > -legacyEps {
		return 0
	}
	return (nf*sumXY - sumX*sumY) / denom
}
