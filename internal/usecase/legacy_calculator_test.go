package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_trade_level/internal/domain"
)

// S2 — OBI, spec.md §8.
func TestLegacyCalculator_OBI_S2(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{
		LastUpdateID: 1,
		Bids:         levels(100, 10, 99, 5),
		Asks:         levels(101, 7, 102, 3),
	})

	calc := NewLegacyCalculator()
	c := calc.Compute(s.View(8), 0)

	if !almostEqual(c.ObiWeighted, 0.2) {
		t.Fatalf("expected obiWeighted 0.2, got %v", c.ObiWeighted)
	}
	if !almostEqual(c.ObiDeep, 0.2) {
		t.Fatalf("expected obiDeep 0.2 (depth<=50 fully consumed), got %v", c.ObiDeep)
	}
	if !almostEqual(c.ObiDivergence, 0) {
		t.Fatalf("expected obiDivergence 0, got %v", c.ObiDivergence)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

// Invariant 5: OBI scalars lie in [-1,+1], divergence in [-2,+2], all 0 when
// empty on either side.
func TestLegacyCalculator_OBI_EmptyBook(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})

	calc := NewLegacyCalculator()
	c := calc.Compute(s.View(8), 0)
	if c.ObiWeighted != 0 || c.ObiDeep != 0 || c.ObiDivergence != 0 {
		t.Fatalf("expected all zero on empty book, got %+v", c)
	}
}

// S3 — Delta/VWAP/CVD, spec.md §8.
func TestLegacyCalculator_DeltaVwapCvd_S3(t *testing.T) {
	calc := NewLegacyCalculator()
	now := int64(1_000_000)

	t1 := trade(domain.TradeBuy, 3, now-4000)
	t1.Price = decimal.NewFromInt(99)
	t2 := trade(domain.TradeBuy, 2, now-500)
	t2.Price = decimal.NewFromInt(100)
	t3 := trade(domain.TradeSell, 1, now-400)
	t3.Price = decimal.NewFromInt(101)
	calc.AddTrade(t1)
	calc.AddTrade(t2)
	calc.AddTrade(t3)

	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})
	c := calc.Compute(s.View(8), now)

	if !almostEqual(c.Delta1s, 1) {
		t.Fatalf("expected delta1s 1, got %v", c.Delta1s)
	}
	if !almostEqual(c.Delta5s, 4) {
		t.Fatalf("expected delta5s 4, got %v", c.Delta5s)
	}
	if !almostEqual(c.CvdSession, 4) {
		t.Fatalf("expected cvdSession 4, got %v", c.CvdSession)
	}
	expectedVwap := (3*99.0 + 2*100.0 + 1*101.0) / 6.0
	if !almostEqual(c.Vwap, expectedVwap) {
		t.Fatalf("expected vwap %v, got %v", expectedVwap, c.Vwap)
	}
}

func TestLegacyCalculator_DeltaZ_RequiresFiveSamples(t *testing.T) {
	calc := NewLegacyCalculator()
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})

	var last Composite
	for i := 0; i < 4; i++ {
		last = calc.Compute(s.View(8), int64(i)*1000)
	}
	if last.DeltaZ != 0 {
		t.Fatalf("expected deltaZ 0 with fewer than 5 history samples, got %v", last.DeltaZ)
	}
}

func TestLegacyCalculator_CvdSlope_Degenerate(t *testing.T) {
	calc := NewLegacyCalculator()
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1})
	c := calc.Compute(s.View(8), 0) // single sample -> slope 0
	if c.CvdSlope != 0 {
		t.Fatalf("expected slope 0 with <2 history samples, got %v", c.CvdSlope)
	}
}

func TestLegacyCalculator_MidPrice(t *testing.T) {
	s := NewBookSynchroniser("BTCUSDT")
	s.ApplySnapshot(domain.DepthSnapshot{LastUpdateID: 1, Bids: levels(100, 1), Asks: levels(102, 1)})
	v := s.View(8)
	if mid := v.MidPrice.InexactFloat64(); !almostEqual(mid, 101) {
		t.Fatalf("expected mid price 101, got %v", mid)
	}
}
