package usecase

import (
	"testing"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

func envelope(symbol string, t int64) domain.MetricsEnvelope {
	return domain.MetricsEnvelope{Type: "metrics", Symbol: symbol, CanonicalTimeMs: t}
}

func TestSubscriptionHub_DeliversToMatchingSymbolOnly(t *testing.T) {
	h := NewSubscriptionHub(SubscriptionHubConfig{})
	sub := h.Subscribe([]string{"BTCUSDT"})

	h.Publish(envelope("ETHUSDT", 1))
	h.Publish(envelope("BTCUSDT", 2))

	select {
	case env := <-sub.Envelopes():
		if env.Symbol != "BTCUSDT" {
			t.Fatalf("expected only BTCUSDT delivered, got %s", env.Symbol)
		}
	default:
		t.Fatalf("expected one envelope queued")
	}

	select {
	case env := <-sub.Envelopes():
		t.Fatalf("expected no second envelope, got %+v", env)
	default:
	}
}

func TestSubscriptionHub_DropsOldestOnOverflow(t *testing.T) {
	h := NewSubscriptionHub(SubscriptionHubConfig{QueueSize: 2, DropThreshold: 1000})
	sub := h.Subscribe([]string{"BTCUSDT"})

	h.Publish(envelope("BTCUSDT", 1))
	h.Publish(envelope("BTCUSDT", 2))
	h.Publish(envelope("BTCUSDT", 3)) // overflow: drop oldest (1), keep 2,3

	first := <-sub.Envelopes()
	second := <-sub.Envelopes()
	if first.CanonicalTimeMs != 2 || second.CanonicalTimeMs != 3 {
		t.Fatalf("expected oldest dropped, queue should hold {2,3}, got {%d,%d}", first.CanonicalTimeMs, second.CanonicalTimeMs)
	}
	if sub.DroppedCount() != 1 {
		t.Fatalf("expected droppedCount 1, got %d", sub.DroppedCount())
	}
}

func TestSubscriptionHub_CloseOnThresholdExceeded(t *testing.T) {
	h := NewSubscriptionHub(SubscriptionHubConfig{QueueSize: 1, DropThreshold: 2})
	sub := h.Subscribe([]string{"BTCUSDT"})

	for i := 0; i < 5; i++ {
		h.Publish(envelope("BTCUSDT", int64(i)))
	}

	select {
	case <-sub.Done():
	default:
		t.Fatalf("expected subscription closed after exceeding drop threshold")
	}
}

func TestSubscriptionHub_UnsubscribeReleasesSynchronously(t *testing.T) {
	h := NewSubscriptionHub(SubscriptionHubConfig{})
	sub := h.Subscribe([]string{"BTCUSDT"})
	if h.Count() != 1 {
		t.Fatalf("expected 1 active subscription")
	}

	h.Unsubscribe(sub.ID)
	if h.Count() != 0 {
		t.Fatalf("expected subscription removed")
	}
	select {
	case <-sub.Done():
	default:
		t.Fatalf("expected Done() closed immediately after Unsubscribe")
	}
}

func TestSubscriptionHub_PublishAfterUnsubscribeIsNoop(t *testing.T) {
	h := NewSubscriptionHub(SubscriptionHubConfig{})
	sub := h.Subscribe([]string{"BTCUSDT"})
	h.Unsubscribe(sub.ID)

	// Must not panic sending to a closed subscription's queue.
	h.Publish(envelope("BTCUSDT", 1))
}
