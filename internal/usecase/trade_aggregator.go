package usecase

import (
	"sort"
	"sync"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// TradeAggregatorConfig configures one TradeAggregator, per spec.md §4.2.
type TradeAggregatorConfig struct {
	WindowMs        int64 // default 60000
	CalibrationSize int   // number of trades before size thresholds freeze, default 40
}

// TradeAggregator is a rolling window of aggressive trades that classifies
// by size, tracks same-side bursts, and reports time-and-sales metrics,
// per spec.md §4.2.
type TradeAggregator struct {
	mu     sync.Mutex
	cfg    TradeAggregatorConfig
	window *domain.RollingWindow[domain.Trade]

	calibration    []float64 // raw quantities until thresholds freeze
	smallThreshold float64
	largeThreshold float64
	thresholdsSet  bool

	burstSide  domain.TradeSide
	burstCount int
}

// NewTradeAggregator constructs an aggregator with the given config,
// defaulting WindowMs to 60000 and CalibrationSize to 40 when zero.
func NewTradeAggregator(cfg TradeAggregatorConfig) *TradeAggregator {
	if cfg.WindowMs == 0 {
		cfg.WindowMs = 60000
	}
	if cfg.CalibrationSize == 0 {
		cfg.CalibrationSize = 40
	}
	return &TradeAggregator{
		cfg:    cfg,
		window: domain.NewRollingWindow[domain.Trade](cfg.WindowMs),
	}
}

// AddTrade records one trade: appends to the window (evicting stale
// entries), classifies it by size, and updates burst state, per
// spec.md §4.2 steps 1-3.
func (a *TradeAggregator) AddTrade(t domain.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window.Add(t)
	a.classify(t.Quantity.InexactFloat64())

	if a.burstCount == 0 || t.Side != a.burstSide {
		a.burstSide = t.Side
		a.burstCount = 1
	} else {
		a.burstCount++
	}
}

// classify feeds the calibration window until CalibrationSize trades have
// been observed, then freezes 25th/75th percentile thresholds until Reset.
func (a *TradeAggregator) classify(qty float64) {
	if a.thresholdsSet {
		return
	}
	a.calibration = append(a.calibration, qty)
	if len(a.calibration) < a.cfg.CalibrationSize {
		return
	}
	sorted := append([]float64(nil), a.calibration...)
	sort.Float64s(sorted)
	a.smallThreshold = percentile(sorted, 0.25)
	a.largeThreshold = percentile(sorted, 0.75)
	a.thresholdsSet = true
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Reset clears the window, burst state, and calibration, unfreezing size
// thresholds.
func (a *TradeAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = domain.NewRollingWindow[domain.Trade](a.cfg.WindowMs)
	a.calibration = nil
	a.thresholdsSet = false
	a.burstCount = 0
}

// Metrics is the published time-and-sales summary, per spec.md §4.2.
type Metrics struct {
	AggressiveBuyVolume  float64
	AggressiveSellVolume float64
	TradeCount           int
	PrintsPerSecond      float64
	SmallTrades          int
	MidTrades            int
	LargeTrades          int
	BidHitAskLiftRatio   float64
	ConsecutiveBurstSide domain.TradeSide
	ConsecutiveBurst     int
	AvgLatencyMs         float64
	HasLatency           bool
}

// Snapshot computes the current window metrics, per spec.md §4.2.
func (a *TradeAggregator) Snapshot() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := a.window.Entries()

	var buyVol, sellVol float64
	var buyCount, sellCount int
	var small, mid, large int
	var latencySum float64
	var latencyCount int

	for _, e := range entries {
		qty := e.Quantity.InexactFloat64()
		if e.Side == domain.TradeBuy {
			buyVol += qty
			buyCount++
		} else {
			sellVol += qty
			sellCount++
		}

		switch {
		case a.thresholdsSet && qty <= a.smallThreshold:
			small++
		case a.thresholdsSet && qty >= a.largeThreshold:
			large++
		default:
			mid++
		}

		if e.ArrivalMs > 0 && e.TimestampMs > 0 {
			latencySum += float64(e.ArrivalMs - e.TimestampMs)
			latencyCount++
		}
	}

	// bidHitAskLiftRatio = buyCount / max(1, sellCount), per spec.md §4.2.
	denom := sellCount
	if denom < 1 {
		denom = 1
	}
	liftRatio := float64(buyCount) / float64(denom)

	seconds := float64(a.cfg.WindowMs) / 1000.0
	var pps float64
	if seconds > 0 {
		pps = float64(len(entries)) / seconds
	}

	m := Metrics{
		AggressiveBuyVolume:  buyVol,
		AggressiveSellVolume: sellVol,
		TradeCount:           len(entries),
		PrintsPerSecond:      pps,
		SmallTrades:          small,
		MidTrades:            mid,
		LargeTrades:          large,
		BidHitAskLiftRatio:   liftRatio,
		ConsecutiveBurstSide: a.burstSide,
		ConsecutiveBurst:     a.burstCount,
	}
	if latencyCount > 0 {
		m.AvgLatencyMs = latencySum / float64(latencyCount)
		m.HasLatency = true
	}
	return m
}

// VolumeImbalance reports (buyVol-sellVol)/(buyVol+sellVol) over the
// aggregator's window, 0 if both sides are empty. Feeds
// CompositeScoreInputs.VolumeImbalance for the absorption read.
func (m Metrics) VolumeImbalance() float64 {
	denom := m.AggressiveBuyVolume + m.AggressiveSellVolume
	if denom < compositeEps {
		return 0
	}
	return (m.AggressiveBuyVolume - m.AggressiveSellVolume) / denom
}
