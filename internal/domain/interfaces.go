package domain

import (
	"context"
	"time"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// DepthSnapshot is the collaborator-supplied book snapshot, per spec.md §6.
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// DepthDiff is one incremental diff-depth event, per spec.md §6.
type DepthDiff struct {
	U            int64 // first update id in batch
	U2           int64 // last update id in batch ("u" in spec.md)
	Bids         []PriceLevel
	Asks         []PriceLevel
	EventTimeMs  int64
}

// DepthSource is the opaque exchange collaborator that supplies snapshot +
// diff frames for a symbol (spec.md §6 inbound exchange streams).
type DepthSource interface {
	Snapshot(ctx context.Context, symbol string) (DepthSnapshot, error)
	Diffs(ctx context.Context, symbol string) (<-chan DepthDiff, error)
}

// TradeSource is the opaque exchange collaborator that supplies aggregated
// trade prints for a symbol.
type TradeSource interface {
	Trades(ctx context.Context, symbol string) (<-chan Trade, error)
}

// OIPoller is the opaque collaborator for open-interest polling.
type OIPoller interface {
	PollOpenInterest(ctx context.Context, symbol string) (value float64, err error)
}

// FundingPoller is the opaque collaborator for funding-rate polling
// (supplemented feature, see SPEC_FULL.md).
type FundingPoller interface {
	PollFunding(ctx context.Context, symbol string) (rate float64, nextFundingMs int64, err error)
}

// ClosedTrade is a realized fill reported by the execution collaborator.
// Its PnL is the value SizingRamp.RecordClose takes, per spec.md §4.8;
// RecordClose itself takes the float, not a ClosedTrade.
type ClosedTrade struct {
	Symbol string
	PnL    float64
}

// Clock abstracts wall-clock reads so components are deterministically
// testable, mirroring the teacher's swappable timeNow func.
type Clock interface {
	NowMs() int64
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return nowMs() }
