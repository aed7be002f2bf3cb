package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/crypto_trade_level/internal/domain"
	"github.com/vitos/crypto_trade_level/internal/usecase"
)

func TestHandleWS_StreamsMatchingEnvelope(t *testing.T) {
	hub := usecase.NewSubscriptionHub(usecase.SubscriptionHubConfig{})
	s := NewServer(":0", hub, NewExecutionSession(20), []string{"BTCUSDT"}, nil, zap.NewNop())

	srv := httptest.NewServer(s.server.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?symbols=BTCUSDT"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the subscription before
	// publishing, since Subscribe happens inside the upgrade handler.
	time.Sleep(20 * time.Millisecond)

	hub.Publish(domain.MetricsEnvelope{Type: "metrics", Symbol: "BTCUSDT", CanonicalTimeMs: 1})
	hub.Publish(domain.MetricsEnvelope{Type: "metrics", Symbol: "ETHUSDT", CanonicalTimeMs: 2}) // should not arrive

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.MetricsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Symbol != "BTCUSDT" || env.CanonicalTimeMs != 1 {
		t.Fatalf("expected BTCUSDT envelope at t=1, got %+v", env)
	}
}

func TestHandleWS_RequiresSymbolsParam(t *testing.T) {
	hub := usecase.NewSubscriptionHub(usecase.SubscriptionHubConfig{})
	s := NewServer(":0", hub, NewExecutionSession(20), nil, nil, zap.NewNop())
	srv := httptest.NewServer(s.server.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial error for missing symbols param")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}
