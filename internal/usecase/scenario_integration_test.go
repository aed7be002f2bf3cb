package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// TestScenario_FullTickEndToEnd exercises the collaborator chain a single
// MetricsAssembler tick depends on — book sync, trade aggregation, CVD,
// OI, legacy composite, and the sizing ramp alongside it — closer to how
// cmd/server wires a SymbolPipeline than the narrower per-component unit
// tests alongside each file.
func TestScenario_FullTickEndToEnd(t *testing.T) {
	symbol := "BTCUSDT"
	book := NewBookSynchroniser(symbol)
	trades := NewTradeAggregator(TradeAggregatorConfig{WindowMs: 60000})
	cvd := NewCvdCalculator(DefaultCvdTimeframes())
	oi := NewOpenInterestMonitor()
	legacy := NewLegacyCalculator()
	ramp := NewSizingRamp(domain.SizingRampConfig{
		StartingMargin: 100, MinMargin: 10, RampMaxMult: 2, RampStepPct: 50, RampDecayPct: 50,
	}, symbol, nil)

	book.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1, Bids: levels(100, 2), Asks: levels(101, 2)})
	oi.RecordSample(1_000_000, 0)

	for i, tr := range []domain.Trade{
		trade(domain.TradeBuy, 1, 100),
		trade(domain.TradeBuy, 2, 200),
		trade(domain.TradeSell, 1, 300),
	} {
		trades.AddTrade(tr)
		cvd.AddTrade(tr)
		legacy.AddTrade(tr)
		require.Equalf(t, i+1, trades.Snapshot().TradeCount, "trade count after trade %d", i)
	}

	assembler := NewMetricsAssembler(MetricsAssemblerConfig{
		Symbol: symbol, Book: book, Trades: trades, Cvd: cvd, OI: oi, Legacy: legacy,
	})
	env := assembler.Assemble(1000)

	require.Equal(t, domain.EnvelopeLive, env.State)
	require.NotEmpty(t, env.Bids)
	require.NotEmpty(t, env.Asks)
	require.Equal(t, "BTCUSDT", env.Symbol)

	// A winning close on the back of this tick steps the ramp up.
	state := ramp.RecordClose(1)
	require.InDelta(t, 150, state.CurrentMarginBudget, 1e-9)

	sizing := ramp.Size(domain.SizingQuery{MarkPrice: 100, StepSize: 0.1, MinNotional: 1, Leverage: 5})
	require.False(t, sizing.Blocked)
	require.Greater(t, sizing.Qty, 0.0)
}
