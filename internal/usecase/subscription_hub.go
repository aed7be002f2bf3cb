package usecase

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vitos/crypto_trade_level/internal/domain"
)

// DefaultSubscriberQueueSize is the bounded per-subscriber send queue
// depth, per spec.md §4.7.
const DefaultSubscriberQueueSize = 64

// DefaultDropThreshold is the droppedCount past which a subscription is
// closed and a termination event emitted, per spec.md §4.7.
const DefaultDropThreshold = 1000

// Subscription is one subscriber's mailbox: a target symbol set and a
// bounded send queue. The zero value is not usable; construct via
// SubscriptionHub.Subscribe.
type Subscription struct {
	ID      string
	symbols map[string]struct{}

	mu           sync.Mutex
	queue        chan domain.MetricsEnvelope
	droppedCount int
	closed       bool
	done         chan struct{}
}

// Envelopes returns the channel subscribers read delivered envelopes from.
// It is closed when the subscription terminates (by Unsubscribe or by
// exceeding the drop threshold).
func (s *Subscription) Envelopes() <-chan domain.MetricsEnvelope { return s.queue }

// Done is closed when the subscription terminates, signalling a
// termination event to the caller regardless of why it closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// DroppedCount reports how many envelopes have been dropped for backpressure
// over this subscription's lifetime.
func (s *Subscription) DroppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedCount
}

func (s *Subscription) matches(symbol string) bool {
	_, ok := s.symbols[symbol]
	return ok
}

// deliver enqueues env, dropping the oldest queued envelope on overflow and
// closing the subscription once droppedCount exceeds dropThreshold, per
// spec.md §4.7/§7 (SubscriberOverflow).
func (s *Subscription) deliver(env domain.MetricsEnvelope, dropThreshold int) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.queue <- env:
		return false
	default:
	}

	// Queue full: drop the oldest envelope, then retry once.
	select {
	case <-s.queue:
		s.droppedCount++
		dropped = true
	default:
	}

	select {
	case s.queue <- env:
	default:
		s.droppedCount++
		dropped = true
	}

	if s.droppedCount > dropThreshold {
		s.closeLocked()
	}
	return dropped
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
	close(s.done)
}

// SubscriptionHub is the process-wide registry of subscribers, protected by
// a single critical section on subscribe/unsubscribe; delivery iterates a
// snapshot of the subscriber set, per spec.md §5 ("Shared resources").
type SubscriptionHub struct {
	mu            sync.RWMutex
	subs          map[string]*Subscription
	queueSize     int
	dropThreshold int
	observer      MetricsObserver
}

// SubscriptionHubConfig configures queue depth and the drop-to-close
// threshold; both default to the spec.md §4.7 values when zero.
type SubscriptionHubConfig struct {
	QueueSize     int
	DropThreshold int
	Observer      MetricsObserver // optional
}

// NewSubscriptionHub constructs an empty hub.
func NewSubscriptionHub(cfg SubscriptionHubConfig) *SubscriptionHub {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultSubscriberQueueSize
	}
	if cfg.DropThreshold == 0 {
		cfg.DropThreshold = DefaultDropThreshold
	}
	return &SubscriptionHub{
		subs:          make(map[string]*Subscription),
		queueSize:     cfg.QueueSize,
		dropThreshold: cfg.DropThreshold,
		observer:      cfg.Observer,
	}
}

// Subscribe registers a new subscription over the given symbol set.
func (h *SubscriptionHub) Subscribe(symbols []string) *Subscription {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		symbols: set,
		queue:   make(chan domain.MetricsEnvelope, h.queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	return sub
}

// Unsubscribe releases queue resources synchronously, per spec.md §5
// ("Cancellation... drains the queue and releases resources before
// returning").
func (h *SubscriptionHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.mu.Lock()
	sub.closeLocked()
	sub.mu.Unlock()

	// Discard whatever is still buffered; the queue is closed, so this ends.
	for range sub.queue {
	}
}

// Publish delivers env to every subscription whose symbol set contains
// env.Symbol, iterating a snapshot of the subscriber set taken under
// RLock, per spec.md §5.
func (h *SubscriptionHub) Publish(env domain.MetricsEnvelope) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.matches(env.Symbol) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		dropped := sub.deliver(env, h.dropThreshold)
		if h.observer == nil {
			continue
		}
		if dropped {
			h.observer.ObserveSubscriberDrop(sub.ID)
		}
		h.observer.ObserveSubscriberQueueDepth(sub.ID, len(sub.queue))
	}
}

// Count reports the number of active subscriptions, for admin/health
// reporting.
func (h *SubscriptionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
