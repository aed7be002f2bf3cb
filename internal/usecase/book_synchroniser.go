package usecase

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_trade_level/internal/domain"
)

// DiffResult reports the outcome of applying one diff-depth event, per the
// outcome table in spec.md §4.1.
type DiffResult struct {
	OK          bool
	Applied     bool
	Dropped     bool
	GapDetected bool
}

// BookSynchroniser maintains a gap-free OrderBookState against a
// snapshot+diff wire protocol, per spec.md §4.1. It is the sole writer of
// its OrderBookState; readers call Snapshot() for a point-in-time copy.
type BookSynchroniser struct {
	mu       sync.RWMutex
	book     *domain.OrderBookState
	symbol   string
	observer MetricsObserver
}

// NewBookSynchroniser constructs a synchroniser in INIT state for symbol.
func NewBookSynchroniser(symbol string) *BookSynchroniser {
	return &BookSynchroniser{book: domain.NewOrderBookState(symbol), symbol: symbol}
}

// SetObserver wires an optional MetricsObserver after construction, since
// the teacher's collaborators are built before their logger/metrics sink is
// available.
func (s *BookSynchroniser) SetObserver(o MetricsObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// ApplySnapshot installs a fresh snapshot, transitioning INIT/RESYNC ->
// SYNCED, per the state machine in spec.md §4.1.
func (s *BookSynchroniser) ApplySnapshot(snap domain.DepthSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.ApplySnapshot(snap.LastUpdateID, snap.Bids, snap.Asks)
}

// ApplyDiff enforces the sequence rule U <= lastUpdateId+1 <= u and applies
// or drops the diff, or flags a gap and transitions to RESYNC.
//
// A diff application is an atomic unit against OrderBookState: the write
// lock is held for the whole check-then-mutate, so readers never observe a
// partially-applied diff (spec.md §5).
func (s *BookSynchroniser) ApplyDiff(diff domain.DepthDiff) DiffResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.book.LastUpdateID()

	if diff.U2 <= last {
		return DiffResult{OK: true, Dropped: true}
	}

	if diff.U <= last+1 && last+1 <= diff.U2 {
		s.book.ApplyDiff(diff.U2, diff.Bids, diff.Asks)
		return DiffResult{OK: true, Applied: true}
	}

	// diff.U > last+1: we missed updates in between.
	s.book.MarkResync()
	if s.observer != nil {
		s.observer.ObserveBookResync(s.symbol)
	}
	return DiffResult{OK: false, GapDetected: true}
}

// State returns the current connection state.
func (s *BookSynchroniser) State() domain.ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.State()
}

// BookView is a read-only, point-in-time copy of book-derived values,
// computed under the synchroniser's lock so a reader never observes a
// partially-applied diff (spec.md §5).
type BookView struct {
	State        domain.ConnState
	LastUpdateID int64
	MidPrice     decimal.Decimal
	TopBids      []domain.LevelWithCum
	TopAsks      []domain.LevelWithCum
	BidVolume10  decimal.Decimal
	AskVolume10  decimal.Decimal
	BidVolume50  decimal.Decimal
	AskVolume50  decimal.Decimal
}

// View computes a BookView with k published top-of-book levels per side.
func (s *BookSynchroniser) View(k int) BookView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topBids, topAsks := s.book.TopLevels(k)
	return BookView{
		State:        s.book.State(),
		LastUpdateID: s.book.LastUpdateID(),
		MidPrice:     s.book.MidPrice(),
		TopBids:      topBids,
		TopAsks:      topAsks,
		BidVolume10:  s.book.VolumeAtDepth(true, 10),
		AskVolume10:  s.book.VolumeAtDepth(false, 10),
		BidVolume50:  s.book.VolumeAtDepth(true, 50),
		AskVolume50:  s.book.VolumeAtDepth(false, 50),
	}
}
