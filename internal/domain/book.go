package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceLevel is one resting size at a price on either side of the book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ConnState tags the freshness of an OrderBookState for downstream consumers.
type ConnState string

const (
	StateInit   ConnState = "INIT"
	StateSynced ConnState = "SYNCED"
	StateResync ConnState = "RESYNC"
)

// OrderBookState is per-symbol L2 book state: two price->size maps plus the
// last applied diff sequence id. Owned and mutated only by a BookSynchroniser.
type OrderBookState struct {
	Symbol       string
	bids         map[string]decimal.Decimal // price string key -> size, avoids float map-key drift
	asks         map[string]decimal.Decimal
	lastUpdateID int64
	state        ConnState
}

// NewOrderBookState returns an empty book in INIT state with lastUpdateID -1,
// per spec.md §3.
func NewOrderBookState(symbol string) *OrderBookState {
	return &OrderBookState{
		Symbol:       symbol,
		bids:         make(map[string]decimal.Decimal),
		asks:         make(map[string]decimal.Decimal),
		lastUpdateID: -1,
		state:        StateInit,
	}
}

func (ob *OrderBookState) LastUpdateID() int64 { return ob.lastUpdateID }
func (ob *OrderBookState) State() ConnState     { return ob.state }

// ApplySnapshot replaces both sides atomically and sets lastUpdateID to the
// snapshot's id, per spec.md §4.1.
func (ob *OrderBookState) ApplySnapshot(lastUpdateID int64, bids, asks []PriceLevel) {
	newBids := make(map[string]decimal.Decimal, len(bids))
	for _, l := range bids {
		if l.Size.IsZero() {
			continue
		}
		newBids[l.Price.String()] = l.Size
	}
	newAsks := make(map[string]decimal.Decimal, len(asks))
	for _, l := range asks {
		if l.Size.IsZero() {
			continue
		}
		newAsks[l.Price.String()] = l.Size
	}

	ob.bids = newBids
	ob.asks = newAsks
	ob.lastUpdateID = lastUpdateID
	ob.state = StateSynced
}

// MarkResync transitions the book to RESYNC; readers should treat levels as
// stale until the next ApplySnapshot.
func (ob *OrderBookState) MarkResync() { ob.state = StateResync }

// applyLevels upserts/removes (price, size) pairs. size==0 removes the level.
func applyLevels(side map[string]decimal.Decimal, levels []PriceLevel) {
	for _, l := range levels {
		key := l.Price.String()
		if l.Size.IsZero() {
			delete(side, key)
			continue
		}
		side[key] = l.Size
	}
}

// ApplyDiff applies both sides of an already-accepted diff and advances
// lastUpdateID to u. Callers (BookSynchroniser) are responsible for the
// sequence-rule check in spec.md §4.1 before calling this.
func (ob *OrderBookState) ApplyDiff(u int64, bids, asks []PriceLevel) {
	applyLevels(ob.bids, bids)
	applyLevels(ob.asks, asks)
	ob.lastUpdateID = u
}

// sortedLevels returns levels on one side ordered best-first: descending
// price for bids, ascending price for asks.
func sortedLevels(side map[string]decimal.Decimal, descending bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(side))
	for priceStr, size := range side {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		out = append(out, PriceLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Bids returns resting bid levels, best (highest price) first.
func (ob *OrderBookState) Bids() []PriceLevel { return sortedLevels(ob.bids, true) }

// Asks returns resting ask levels, best (lowest price) first.
func (ob *OrderBookState) Asks() []PriceLevel { return sortedLevels(ob.asks, false) }

// BestBid returns the highest-priced bid and true, or zero/false if the side
// is empty.
func (ob *OrderBookState) BestBid() (decimal.Decimal, bool) {
	bids := ob.Bids()
	if len(bids) == 0 {
		return decimal.Zero, false
	}
	return bids[0].Price, true
}

// BestAsk returns the lowest-priced ask and true, or zero/false if the side
// is empty.
func (ob *OrderBookState) BestAsk() (decimal.Decimal, bool) {
	asks := ob.Asks()
	if len(asks) == 0 {
		return decimal.Zero, false
	}
	return asks[0].Price, true
}

// VolumeAtDepth sums the sizes of the D best levels on one side, per
// spec.md §4.5.
func (ob *OrderBookState) VolumeAtDepth(isBid bool, depth int) decimal.Decimal {
	levels := ob.Asks()
	if isBid {
		levels = ob.Bids()
	}
	if depth > len(levels) {
		depth = len(levels)
	}
	total := decimal.Zero
	for i := 0; i < depth; i++ {
		total = total.Add(levels[i].Size)
	}
	return total
}

// MidPrice returns (bestBid+bestAsk)/2, substituting 0 for a missing side
// per spec.md §4.5.
func (ob *OrderBookState) MidPrice() decimal.Decimal {
	bid, _ := ob.BestBid()
	ask, _ := ob.BestAsk()
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// TopLevels returns up to k levels per side with running cumulative size,
// the shape the MetricsEnvelope publishes (spec.md §6: "bids": [[p,s,cum]]).
func (ob *OrderBookState) TopLevels(k int) (bids, asks []LevelWithCum) {
	bids = cumulate(ob.Bids(), k)
	asks = cumulate(ob.Asks(), k)
	return
}

// LevelWithCum is one published book row: price, size, and running total.
type LevelWithCum struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	Cumulative decimal.Decimal
}

func cumulate(levels []PriceLevel, k int) []LevelWithCum {
	if k > len(levels) {
		k = len(levels)
	}
	out := make([]LevelWithCum, 0, k)
	running := decimal.Zero
	for i := 0; i < k; i++ {
		running = running.Add(levels[i].Size)
		out = append(out, LevelWithCum{Price: levels[i].Price, Size: levels[i].Size, Cumulative: running})
	}
	return out
}
