package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// defaultTickInterval is the assembler's publication cadence, per spec.md
// §4.6.
const defaultTickInterval = 250 * time.Millisecond

// topBookDepth is the number of bid/ask rows published per envelope
// ("…8" in spec.md §6's wire example).
const topBookDepth = 8

// EnvelopePublisher receives one assembled envelope per tick. SubscriptionHub
// implements this.
type EnvelopePublisher interface {
	Publish(domain.MetricsEnvelope)
}

// MetricsAssembler joins the outputs of BookSynchroniser, TradeAggregator,
// CvdCalculator, OpenInterestMonitor, FundingMonitor, and LegacyCalculator
// into one MetricsEnvelope per tick, per spec.md §4.6. It does not change
// book, trade, CVD, OI or funding state; LegacyCalculator.Compute, which it
// calls once per Assemble, appends that tick's delta1s and cvdSession
// samples to the calculator's histories. One assembler instance serves
// exactly one symbol.
type MetricsAssembler struct {
	symbol string
	clock  domain.Clock

	book      *BookSynchroniser
	trades    *TradeAggregator
	cvd       *CvdCalculator
	oi        *OpenInterestMonitor
	funding   *FundingMonitor // optional; nil if the symbol has no funding source
	legacy    *LegacyCalculator
	publisher EnvelopePublisher
	observer  MetricsObserver

	tickInterval time.Duration

	mu           sync.Mutex
	lastTimeMs   int64
	lastEnvelope domain.MetricsEnvelope
	hasEnvelope  bool
	ticking      atomic.Bool // guards against re-entrant ticks, per spec.md §9
}

// MetricsAssemblerConfig bundles the collaborators one assembler reads from.
// Funding is optional (nil when the symbol's source has no funding poller).
type MetricsAssemblerConfig struct {
	Symbol       string
	Clock        domain.Clock
	Book         *BookSynchroniser
	Trades       *TradeAggregator
	Cvd          *CvdCalculator
	OI           *OpenInterestMonitor
	Funding      *FundingMonitor
	Legacy       *LegacyCalculator
	Publisher    EnvelopePublisher
	Observer     MetricsObserver // optional
	TickInterval time.Duration   // default 250ms
}

// NewMetricsAssembler constructs an assembler for one symbol.
func NewMetricsAssembler(cfg MetricsAssemblerConfig) *MetricsAssembler {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	return &MetricsAssembler{
		symbol:       cfg.Symbol,
		clock:        cfg.Clock,
		book:         cfg.Book,
		trades:       cfg.Trades,
		cvd:          cfg.Cvd,
		oi:           cfg.OI,
		funding:      cfg.Funding,
		legacy:       cfg.Legacy,
		publisher:    cfg.Publisher,
		observer:     cfg.Observer,
		tickInterval: cfg.TickInterval,
	}
}

// Run blocks, ticking at the configured cadence until ctx is cancelled.
// Callers typically invoke this as a goroutine per symbol.
func (a *MetricsAssembler) Run(ctx context.Context) {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick skips re-entrantly if the previous tick has not yet returned, per
// the "tick in progress" guard spec.md §9 recommends.
func (a *MetricsAssembler) tick() {
	if !a.ticking.CompareAndSwap(false, true) {
		return
	}
	defer a.ticking.Store(false)

	env := a.Assemble(a.clock.NowMs())

	a.mu.Lock()
	a.lastEnvelope = env
	a.hasEnvelope = true
	a.mu.Unlock()

	if a.publisher != nil {
		a.publisher.Publish(env)
	}
	if a.observer != nil {
		a.observer.ObserveEnvelopePublished(a.symbol)
	}
}

// LastEnvelope returns the most recently assembled envelope, if any tick
// has run yet. Used by the periodic envelope-snapshot persistence loop in
// cmd/server to archive the most recent book/price reading.
func (a *MetricsAssembler) LastEnvelope() (domain.MetricsEnvelope, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastEnvelope, a.hasEnvelope
}

// Assemble builds one envelope from the current collaborator state at
// nowMs, enforcing per-subscriber envelope monotonicity (invariant 10) by
// never publishing a canonicalTimeMs lower than the previous tick's.
func (a *MetricsAssembler) Assemble(nowMs int64) domain.MetricsEnvelope {
	a.mu.Lock()
	if nowMs <= a.lastTimeMs {
		nowMs = a.lastTimeMs + 1
	}
	a.lastTimeMs = nowMs
	a.mu.Unlock()

	view := a.book.View(topBookDepth)
	tradeMetrics := a.trades.Snapshot()
	oiReading := a.oi.Reading()
	composite := a.legacy.Compute(view, nowMs)

	state := domain.EnvelopeLive
	var bids, asks []domain.BookRow
	if view.State == domain.StateResync {
		state = domain.EnvelopeStale
	} else {
		bids = toBookRows(view.TopBids)
		asks = toBookRows(view.TopAsks)
	}
	if a.observer != nil {
		a.observer.ObserveBookState(a.symbol, view.State != domain.StateResync)
	}

	scores := ComputeCompositeScores(CompositeScoreInputs{
		ObiWeighted:     composite.ObiWeighted,
		ObiDeep:         composite.ObiDeep,
		CvdSlope:        composite.CvdSlope,
		Delta1s:         composite.Delta1s,
		BurstCount:      tradeMetrics.ConsecutiveBurst,
		BurstIsBuy:      tradeMetrics.ConsecutiveBurstSide == domain.TradeBuy,
		OiChangePct:     oiReading.OiChangePct,
		VolumeImbalance: tradeMetrics.VolumeImbalance(),
	})

	var fundingBlock *domain.FundingBlock
	if a.funding != nil {
		if fb, ok := a.funding.Reading(nowMs); ok {
			fundingBlock = &fb
		}
	}

	absorption := scores.Absorption

	return domain.MetricsEnvelope{
		Type:            "metrics",
		Symbol:          a.symbol,
		CanonicalTimeMs: nowMs,
		State:           state,
		Price:           view.MidPrice.InexactFloat64(),
		Bids:            bids,
		Asks:            asks,
		TimeAndSales:    toTimeAndSales(tradeMetrics),
		Cvd:             a.cvdBlock(nowMs),
		OpenInterest: domain.OpenInterestBlock{
			OpenInterest:  oiReading.CurrentOI,
			OiChangeAbs:   oiReading.OiChangeAbs,
			OiChangePct:   oiReading.OiChangePct,
			OiDeltaWindow: oiReading.OiDeltaWindow,
			Source:        "real",
		},
		Funding:    fundingBlock,
		Absorption: &absorption,
		LegacyMetrics: domain.LegacyMetrics{
			Delta1s:         composite.Delta1s,
			Delta5s:         composite.Delta5s,
			DeltaZ:          composite.DeltaZ,
			CvdSession:      composite.CvdSession,
			CvdSlope:        composite.CvdSlope,
			ObiWeighted:     composite.ObiWeighted,
			ObiDeep:         composite.ObiDeep,
			ObiDivergence:   composite.ObiDivergence,
			Vwap:            composite.Vwap,
			SweepFadeScore:  scores.SweepFadeScore,
			BreakoutScore:   scores.BreakoutScore,
			RegimeWeight:    scores.RegimeWeight,
			AbsorptionScore: scores.AbsorptionScore,
		},
	}
}

func (a *MetricsAssembler) cvdBlock(nowMs int64) domain.CvdBlock {
	readings := a.cvd.All()
	toTf := func(name string) domain.CvdTimeframe {
		r := readings[name]
		return domain.CvdTimeframe{Cvd: r.Cvd, Delta: r.Delta, WarmUpPct: r.WarmUpPct}
	}
	return domain.CvdBlock{
		Tf1m:  toTf("tf1m"),
		Tf5m:  toTf("tf5m"),
		Tf15m: toTf("tf15m"),
	}
}

func toBookRows(levels []domain.LevelWithCum) []domain.BookRow {
	out := make([]domain.BookRow, len(levels))
	for i, l := range levels {
		out[i] = domain.BookRow{
			Price:      l.Price.InexactFloat64(),
			Size:       l.Size.InexactFloat64(),
			Cumulative: l.Cumulative.InexactFloat64(),
		}
	}
	return out
}

func toTimeAndSales(m Metrics) domain.TimeAndSales {
	ts := domain.TimeAndSales{
		AggressiveBuyVolume:  m.AggressiveBuyVolume,
		AggressiveSellVolume: m.AggressiveSellVolume,
		TradeCount:           m.TradeCount,
		PrintsPerSecond:      m.PrintsPerSecond,
		SmallTrades:          m.SmallTrades,
		MidTrades:            m.MidTrades,
		LargeTrades:          m.LargeTrades,
		BidHitAskLiftRatio:   m.BidHitAskLiftRatio,
		ConsecutiveBurst: domain.ConsecutiveBurst{
			Side:  m.ConsecutiveBurstSide,
			Count: m.ConsecutiveBurst,
		},
	}
	if m.HasLatency {
		latency := m.AvgLatencyMs
		ts.AvgLatencyMs = &latency
	}
	return ts
}
