package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

const (
	// defaultPollInterval is the OI/funding poll cadence; both are
	// "10s-class" pollers per SPEC_FULL.md's supplemented features.
	defaultPollInterval = 10 * time.Second

	// gapResyncMinBackoff/gapResyncMaxBackoff bound the exponential
	// backoff on a failed post-gap re-snapshot, per spec.md §7's
	// SnapshotFailure -> "Exponential backoff (1s -> 30s, x2)". Same
	// bounds as the exchange adapter's own stream-reconnect backoff.
	gapResyncMinBackoff = 1 * time.Second
	gapResyncMaxBackoff = 30 * time.Second

	// pollFailureLogWindow caps how often a sustained run of OI/funding
	// poll failures gets logged, per spec.md §7's OiPollFailure ->
	// "Log once per transient window".
	pollFailureLogWindow = 1 * time.Minute
)

// SymbolPipeline wires one symbol's full collaborator set — book,
// aggregator, CVD, OI, funding, legacy calculator, assembler, sizing ramp
// — against a DepthSource/TradeSource/OIPoller/FundingPoller, mirroring
// the teacher's single inlined main.go wiring but factored per symbol so
// cmd/server can start N of these concurrently.
type SymbolPipeline struct {
	Symbol    string
	Book      *BookSynchroniser
	Trades    *TradeAggregator
	Cvd       *CvdCalculator
	OI        *OpenInterestMonitor
	Funding   *FundingMonitor
	Legacy    *LegacyCalculator
	Ramp      *SizingRamp
	Assembler *MetricsAssembler

	logger      *zap.Logger
	oiFailLog   pollFailureLogger
	fundingFail pollFailureLogger
}

// SymbolPipelineConfig bundles construction-time dependencies for one
// symbol's pipeline.
type SymbolPipelineConfig struct {
	Symbol        string
	Publisher     EnvelopePublisher
	Observer      MetricsObserver // optional
	Logger        *zap.Logger     // optional, defaults to zap.NewNop()
	RampConfig    domain.SizingRampConfig
	TradeWindowMs int64 // default 60000, see TradeAggregatorConfig
	TickInterval  time.Duration
}

// pollFailureLogger dedupes a run of poll failures down to one log line per
// pollFailureLogWindow, per spec.md §7, whatever errors the failures carry.
type pollFailureLogger struct {
	lastLoggedAt time.Time
}

// shouldLog reports whether a failure at `now` should be logged, and
// records that decision. 429s are never logged: rate limiting is expected
// exchange behavior, not a transient condition worth surfacing.
func (l *pollFailureLogger) shouldLog(now time.Time, err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	if now.Sub(l.lastLoggedAt) < pollFailureLogWindow {
		return false
	}
	l.lastLoggedAt = now
	return true
}

// NewSymbolPipeline constructs every per-symbol collaborator and joins
// them under one MetricsAssembler.
func NewSymbolPipeline(cfg SymbolPipelineConfig) *SymbolPipeline {
	book := NewBookSynchroniser(cfg.Symbol)
	book.SetObserver(cfg.Observer)

	trades := NewTradeAggregator(TradeAggregatorConfig{WindowMs: cfg.TradeWindowMs})
	cvd := NewCvdCalculator(DefaultCvdTimeframes())
	oi := NewOpenInterestMonitor()
	funding := NewFundingMonitor()
	legacy := NewLegacyCalculator()
	ramp := NewSizingRamp(cfg.RampConfig, cfg.Symbol, cfg.Observer)

	assembler := NewMetricsAssembler(MetricsAssemblerConfig{
		Symbol:       cfg.Symbol,
		Book:         book,
		Trades:       trades,
		Cvd:          cvd,
		OI:           oi,
		Funding:      funding,
		Legacy:       legacy,
		Publisher:    cfg.Publisher,
		Observer:     cfg.Observer,
		TickInterval: cfg.TickInterval,
	})

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &SymbolPipeline{
		Symbol:    cfg.Symbol,
		Book:      book,
		Trades:    trades,
		Cvd:       cvd,
		OI:        oi,
		Funding:   funding,
		Legacy:    legacy,
		Ramp:      ramp,
		Assembler: assembler,
		logger:    log,
	}
}

// Run starts every ingestion loop (book sync, trades, OI poll, funding
// poll) plus the assembler's tick loop, and blocks until ctx is
// cancelled. Only the FundingPoller is optional: a nil one simply skips the
// funding loop, matching MetricsAssembler's nilable Funding collaborator.
// depth, tradeSource and oiPoller must be non-nil.
func (p *SymbolPipeline) Run(ctx context.Context, depth domain.DepthSource, tradeSource domain.TradeSource, oiPoller domain.OIPoller, fundingPoller domain.FundingPoller) error {
	snap, err := depth.Snapshot(ctx, p.Symbol)
	if err != nil {
		return err
	}
	p.Book.ApplySnapshot(snap)

	diffs, err := depth.Diffs(ctx, p.Symbol)
	if err != nil {
		return err
	}
	go p.runDiffs(ctx, depth, diffs)

	tradeCh, err := tradeSource.Trades(ctx, p.Symbol)
	if err != nil {
		return err
	}
	go p.runTrades(ctx, tradeCh)

	go p.runOIPoll(ctx, oiPoller)
	if fundingPoller != nil {
		go p.runFundingPoll(ctx, fundingPoller)
	}

	p.Assembler.Run(ctx)
	return nil
}

// runDiffs applies incoming diffs and re-snapshots on a detected gap, per
// the RESYNC recovery path in spec.md §4.1/§7. Diffs queue on the channel
// while a resync is in backoff; the book stays in StateResync (surfaced to
// subscribers) until a snapshot finally lands.
func (p *SymbolPipeline) runDiffs(ctx context.Context, depth domain.DepthSource, diffs <-chan domain.DepthDiff) {
	for {
		select {
		case <-ctx.Done():
			return
		case diff, ok := <-diffs:
			if !ok {
				return
			}
			result := p.Book.ApplyDiff(diff)
			if result.GapDetected {
				p.resyncWithBackoff(ctx, depth)
			}
		}
	}
}

// resyncWithBackoff retries the post-gap snapshot fetch with exponential
// backoff (1s -> 30s, x2) until it succeeds or ctx is cancelled, per
// spec.md §7's SnapshotFailure handling.
func (p *SymbolPipeline) resyncWithBackoff(ctx context.Context, depth domain.DepthSource) {
	backoff := gapResyncMinBackoff
	for {
		snap, err := depth.Snapshot(ctx, p.Symbol)
		if err == nil {
			p.Book.ApplySnapshot(snap)
			return
		}
		p.logger.Warn("resync snapshot fetch failed, backing off",
			zap.String("symbol", p.Symbol), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > gapResyncMaxBackoff {
			backoff = gapResyncMaxBackoff
		}
	}
}

func (p *SymbolPipeline) runTrades(ctx context.Context, trades <-chan domain.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			p.Trades.AddTrade(t)
			p.Cvd.AddTrade(t)
			p.Legacy.AddTrade(t)
		}
	}
}

func (p *SymbolPipeline) runOIPoll(ctx context.Context, poller domain.OIPoller) {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value, err := poller.PollOpenInterest(ctx, p.Symbol)
			if err != nil {
				if p.oiFailLog.shouldLog(time.Now(), err) {
					p.logger.Warn("open interest poll failed", zap.String("symbol", p.Symbol), zap.Error(err))
				}
				continue
			}
			p.OI.RecordSample(value, time.Now().UnixMilli())
		}
	}
}

func (p *SymbolPipeline) runFundingPoll(ctx context.Context, poller domain.FundingPoller) {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rate, nextMs, err := poller.PollFunding(ctx, p.Symbol)
			if err != nil {
				if p.fundingFail.shouldLog(time.Now(), err) {
					p.logger.Warn("funding poll failed", zap.String("symbol", p.Symbol), zap.Error(err))
				}
				continue
			}
			p.Funding.RecordSample(rate, nextMs)
		}
	}
}
