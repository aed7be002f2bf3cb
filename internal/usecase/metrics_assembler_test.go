package usecase

import (
	"testing"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

func newTestAssembler(symbol string) (*MetricsAssembler, *BookSynchroniser, *TradeAggregator) {
	book := NewBookSynchroniser(symbol)
	trades := NewTradeAggregator(TradeAggregatorConfig{WindowMs: 60000})
	cvd := NewCvdCalculator(DefaultCvdTimeframes())
	oi := NewOpenInterestMonitor()
	legacy := NewLegacyCalculator()

	a := NewMetricsAssembler(MetricsAssemblerConfig{
		Symbol: symbol,
		Book:   book,
		Trades: trades,
		Cvd:    cvd,
		OI:     oi,
		Legacy: legacy,
	})
	return a, book, trades
}

func TestMetricsAssembler_LiveStateWithSnapshot(t *testing.T) {
	a, book, _ := newTestAssembler("BTCUSDT")
	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1, Bids: levels(100, 1), Asks: levels(101, 1)})

	env := a.Assemble(1000)
	if env.State != domain.EnvelopeLive {
		t.Fatalf("expected LIVE state, got %s", env.State)
	}
	if len(env.Bids) == 0 || len(env.Asks) == 0 {
		t.Fatalf("expected book levels published when LIVE")
	}
}

func TestMetricsAssembler_StaleStateElidesBookOnResync(t *testing.T) {
	a, book, _ := newTestAssembler("BTCUSDT")
	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 10, Bids: levels(100, 1), Asks: levels(101, 1)})
	book.ApplyDiff(domain.DepthDiff{U: 50, U2: 60}) // gap -> RESYNC

	env := a.Assemble(1000)
	if env.State != domain.EnvelopeStale {
		t.Fatalf("expected STALE state after gap, got %s", env.State)
	}
	if len(env.Bids) != 0 || len(env.Asks) != 0 {
		t.Fatalf("expected book levels elided while STALE, got bids=%v asks=%v", env.Bids, env.Asks)
	}
}

// Invariant 10: consecutive envelopes for the same symbol have non-decreasing
// canonicalTimeMs.
func TestMetricsAssembler_EnvelopeMonotonicity(t *testing.T) {
	a, book, _ := newTestAssembler("BTCUSDT")
	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})

	e1 := a.Assemble(1000)
	e2 := a.Assemble(1000) // clock didn't advance; must still be non-decreasing
	e3 := a.Assemble(2000)

	if e2.CanonicalTimeMs < e1.CanonicalTimeMs {
		t.Fatalf("expected non-decreasing canonicalTimeMs, got %d then %d", e1.CanonicalTimeMs, e2.CanonicalTimeMs)
	}
	if e3.CanonicalTimeMs < e2.CanonicalTimeMs {
		t.Fatalf("expected non-decreasing canonicalTimeMs, got %d then %d", e2.CanonicalTimeMs, e3.CanonicalTimeMs)
	}
}

// S4 — Reconnect continuity, spec.md §8: a snapshot replacement of the
// order book must not reset aggregator/CVD state.
func TestMetricsAssembler_ReconnectContinuity_S4(t *testing.T) {
	a, book, trades := newTestAssembler("BTCUSDT")
	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})

	trades.AddTrade(trade(domain.TradeBuy, 1, 500))
	a.cvd.AddTrade(trade(domain.TradeBuy, 1, 500))

	// Reconnect: snapshot replaces the book entirely.
	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 30})

	env := a.Assemble(1000)
	if env.TimeAndSales.AggressiveBuyVolume != 1 {
		t.Fatalf("expected aggressiveBuyVolume to survive reconnect, got %v", env.TimeAndSales.AggressiveBuyVolume)
	}
	if env.Cvd.Tf1m.Cvd != 1 {
		t.Fatalf("expected cvd to survive reconnect, got %v", env.Cvd.Tf1m.Cvd)
	}
}
