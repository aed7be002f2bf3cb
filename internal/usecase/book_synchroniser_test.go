package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_trade_level/internal/domain"
)

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{
			Price: decimal.NewFromFloat(pairs[i]),
			Size:  decimal.NewFromFloat(pairs[i+1]),
		})
	}
	return out
}

// S1 — Sequence rule, spec.md §8.
func TestBookSynchroniser_SequenceRule_S1(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 10, Bids: levels(100, 1), Asks: levels(101, 1)})

	res := s.ApplyDiff(domain.DepthDiff{U: 11, U2: 15})
	if !res.OK || !res.Applied {
		t.Fatalf("expected applied, got %+v", res)
	}
	if got := s.View(1).LastUpdateID; got != 15 {
		t.Fatalf("expected lastUpdateID 15, got %d", got)
	}

	res = s.ApplyDiff(domain.DepthDiff{U: 22, U2: 25})
	if res.OK || !res.GapDetected {
		t.Fatalf("expected gap detected, got %+v", res)
	}
	if got := s.View(1).LastUpdateID; got != 15 {
		t.Fatalf("state must be unchanged after a gap, got lastUpdateID %d", got)
	}
	if s.State() != domain.StateResync {
		t.Fatalf("expected RESYNC after gap, got %s", s.State())
	}

	// Recover with a fresh snapshot at 30.
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 30, Bids: levels(100, 1), Asks: levels(101, 1)})
	if s.State() != domain.StateSynced {
		t.Fatalf("expected SYNCED after snapshot, got %s", s.State())
	}

	res = s.ApplyDiff(domain.DepthDiff{U: 28, U2: 30})
	if !res.OK || !res.Dropped {
		t.Fatalf("expected dropped, got %+v", res)
	}
	if got := s.View(1).LastUpdateID; got != 30 {
		t.Fatalf("dropped diff must not change state, got %d", got)
	}
}

// Invariant 1: for every accepted diff, old.lastUpdateId < new.lastUpdateId
// and new.lastUpdateId = u.
func TestBookSynchroniser_AcceptedDiffAdvancesSequence(t *testing.T) {
	s := NewBookSynchroniser("ETHUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 5})

	before := s.View(1).LastUpdateID
	res := s.ApplyDiff(domain.DepthDiff{U: 6, U2: 9})
	after := s.View(1).LastUpdateID

	if !res.Applied {
		t.Fatalf("expected applied")
	}
	if !(before < after) || after != 9 {
		t.Fatalf("expected lastUpdateID to advance to 9, before=%d after=%d", before, after)
	}
}

// Invariant 2/3: gap leaves state unchanged; stale diff is dropped and
// leaves state unchanged.
func TestBookSynchroniser_GapAndStaleLeaveStateUnchanged(t *testing.T) {
	s := NewBookSynchroniser("SOLUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 100, Bids: levels(50, 2)})

	gapRes := s.ApplyDiff(domain.DepthDiff{U: 150, U2: 160})
	if gapRes.OK || !gapRes.GapDetected {
		t.Fatalf("expected gap detected")
	}
	if s.View(1).LastUpdateID != 100 {
		t.Fatalf("gap must not mutate state")
	}

	s2 := NewBookSynchroniser("SOLUSDT")
	s2.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 100})
	staleRes := s2.ApplyDiff(domain.DepthDiff{U: 50, U2: 99})
	if !staleRes.OK || !staleRes.Dropped {
		t.Fatalf("expected dropped")
	}
	if s2.View(1).LastUpdateID != 100 {
		t.Fatalf("stale diff must not mutate state")
	}
}

// Invariant 4: after any snapshot, bestBid < bestAsk whenever both sides
// non-empty.
func TestBookSynchroniser_BestBidBelowBestAsk(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{
		LastUpdateID: 1,
		Bids:         levels(100, 10, 99, 5),
		Asks:         levels(101, 7, 102, 3),
	})

	v := s.View(8)
	if len(v.TopBids) == 0 || len(v.TopAsks) == 0 {
		t.Fatalf("expected both sides populated")
	}
	if !v.TopBids[0].Price.LessThan(v.TopAsks[0].Price) {
		t.Fatalf("expected bestBid < bestAsk, got %s >= %s", v.TopBids[0].Price, v.TopAsks[0].Price)
	}
}

// Downstream aggregators are not reset by a gap: the BookSynchroniser itself
// never touches aggregator state, and S4 is checked end to end in
// metrics_assembler_test.go (TestMetricsAssembler_ReconnectContinuity_S4).

func TestBookSynchroniser_ZeroSizeRemovesLevel(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1, Bids: levels(100, 10), Asks: levels(101, 5)})
	s.ApplyDiff(domain.DepthDiff{U: 2, U2: 2, Bids: levels(100, 0)})

	v := s.View(8)
	if len(v.TopBids) != 0 {
		t.Fatalf("expected bid level removed, got %+v", v.TopBids)
	}
}
