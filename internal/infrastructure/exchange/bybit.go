package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_trade_level/internal/domain"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	// reconnectMinBackoff/reconnectMaxBackoff bound the exponential
	// backoff used on stream reconnect, per spec.md §7
	// ("SnapshotFailure"/"TradeStreamClosed": 1s -> 30s, x2).
	reconnectMinBackoff = 1 * time.Second
	reconnectMaxBackoff = 30 * time.Second
)

// BybitAdapter implements domain.DepthSource, domain.TradeSource,
// domain.OIPoller, and domain.FundingPoller against Bybit's v5 linear
// public API, converting wire decimal strings to decimal.Decimal at the
// decode boundary so nothing downstream touches float64 until the
// composite-metric layer.
type BybitAdapter struct {
	baseURL string
	wsURL   string
	client  *http.Client
}

// NewBybitAdapter constructs an adapter against the given REST/WS hosts.
func NewBybitAdapter(baseURL, wsURL string) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	return &BybitAdapter{
		baseURL: baseURL,
		wsURL:   wsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BybitAdapter) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("bybit: http 429: %s: %w", string(body), domain.ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bybit: http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// Snapshot fetches the current order book depth, per spec.md §6's
// depth-snapshot collaborator contract.
func (b *BybitAdapter) Snapshot(ctx context.Context, symbol string) (domain.DepthSnapshot, error) {
	path := fmt.Sprintf("/v5/market/orderbook?category=linear&symbol=%s&limit=200", symbol)

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			U int64      `json:"u"`
			B [][]string `json:"b"`
			A [][]string `json:"a"`
		} `json:"result"`
	}
	if err := b.getJSON(ctx, path, &result); err != nil {
		return domain.DepthSnapshot{}, err
	}
	if result.RetCode != 0 {
		return domain.DepthSnapshot{}, fmt.Errorf("bybit: orderbook error: %s", result.RetMsg)
	}

	return domain.DepthSnapshot{
		LastUpdateID: result.Result.U,
		Bids:         parseLevels(result.Result.B),
		Asks:         parseLevels(result.Result.A),
	}, nil
}

// PollOpenInterest fetches the latest open interest reading, per spec.md
// §6's OI poll response contract.
func (b *BybitAdapter) PollOpenInterest(ctx context.Context, symbol string) (float64, error) {
	path := fmt.Sprintf("/v5/market/open-interest?category=linear&symbol=%s&intervalTime=5min&limit=1", symbol)

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				OpenInterest string `json:"openInterest"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.getJSON(ctx, path, &result); err != nil {
		return 0, err
	}
	if result.RetCode != 0 {
		return 0, fmt.Errorf("bybit: open-interest error: %s", result.RetMsg)
	}
	if len(result.Result.List) == 0 {
		return 0, fmt.Errorf("bybit: open-interest empty for %s", symbol)
	}
	return strconv.ParseFloat(result.Result.List[0].OpenInterest, 64)
}

// PollFunding fetches the current funding rate and next funding time.
func (b *BybitAdapter) PollFunding(ctx context.Context, symbol string) (float64, int64, error) {
	path := "/v5/market/tickers?category=linear&symbol=" + symbol

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				FundingRate     string `json:"fundingRate"`
				NextFundingTime string `json:"nextFundingTime"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.getJSON(ctx, path, &result); err != nil {
		return 0, 0, err
	}
	if result.RetCode != 0 {
		return 0, 0, fmt.Errorf("bybit: tickers error: %s", result.RetMsg)
	}
	if len(result.Result.List) == 0 {
		return 0, 0, fmt.Errorf("bybit: tickers empty for %s", symbol)
	}
	raw := result.Result.List[0]
	rate, err := strconv.ParseFloat(raw.FundingRate, 64)
	if err != nil {
		return 0, 0, err
	}
	nextMs, _ := strconv.ParseInt(raw.NextFundingTime, 10, 64)
	return rate, nextMs, nil
}

// Diffs opens the orderbook.50.<symbol> public stream and emits parsed
// DepthDiffs on the returned channel, reconnecting with exponential
// backoff on stream closure until ctx is cancelled, per spec.md §7
// ("TradeStreamClosed" policy, reused here for the depth stream).
func (b *BybitAdapter) Diffs(ctx context.Context, symbol string) (<-chan domain.DepthDiff, error) {
	out := make(chan domain.DepthDiff, 256)
	topic := "orderbook.50." + symbol
	go b.streamTopic(ctx, topic, func(raw map[string]interface{}, msgType string) {
		data, ok := raw["data"].(map[string]interface{})
		if !ok {
			return
		}
		diff, ok := parseDepthMessage(data, msgType)
		if !ok {
			return
		}
		select {
		case out <- diff:
		case <-ctx.Done():
		}
	})
	return out, nil
}

// Trades opens the publicTrade.<symbol> stream and emits parsed trades.
func (b *BybitAdapter) Trades(ctx context.Context, symbol string) (<-chan domain.Trade, error) {
	out := make(chan domain.Trade, 256)
	topic := "publicTrade." + symbol
	go b.streamTopic(ctx, topic, func(raw map[string]interface{}, _ string) {
		items, ok := raw["data"].([]interface{})
		if !ok {
			return
		}
		for _, item := range items {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			t, ok := parseTradeMessage(entry)
			if !ok {
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	})
	return out, nil
}

// streamTopic owns one topic's reconnect loop: dial, subscribe, read until
// closed or ctx is done, then back off and retry. handle is invoked per
// decoded message with its "data"/"type" envelope already available as a
// generic map.
func (b *BybitAdapter) streamTopic(ctx context.Context, topic string, handle func(map[string]interface{}, string)) {
	backoff := reconnectMinBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := b.runOneConnection(ctx, topic, handle); err != nil {
			log.Printf("exchange: %s stream error, reconnecting in %s: %v", topic, backoff, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}

func (b *BybitAdapter) runOneConnection(ctx context.Context, topic string, handle func(map[string]interface{}, string)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"op":   "subscribe",
		"args": []string{topic},
	}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event map[string]interface{}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		gotTopic, _ := event["topic"].(string)
		if gotTopic != topic {
			continue
		}
		msgType, _ := event["type"].(string)
		handle(event, msgType)
	}
}

func parseLevels(raw [][]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

func toStringPairs(raw interface{}) [][]string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([][]string, 0, len(items))
	for _, item := range items {
		pair, ok := item.([]interface{})
		if !ok || len(pair) < 2 {
			continue
		}
		p, pok := pair[0].(string)
		s, sok := pair[1].(string)
		if !pok || !sok {
			continue
		}
		out = append(out, []string{p, s})
	}
	return out
}

// parseDepthMessage converts one Bybit orderbook.50 message into a
// domain.DepthDiff. Bybit's v5 stream carries a single monotonic update id
// "u" per message rather than Binance-style [U,u] ranges, so every message,
// snapshot or delta, becomes the pair [u,u]: the sequence rule applies it
// when u is exactly lastUpdateId+1, drops it when u <= lastUpdateId, and
// flags a gap otherwise. A snapshot message is applied as an upsert of its
// levels like any delta; it does not replace the book.
func parseDepthMessage(data map[string]interface{}, msgType string) (domain.DepthDiff, bool) {
	uFloat, ok := data["u"].(float64)
	if !ok {
		return domain.DepthDiff{}, false
	}
	u := int64(uFloat)

	return domain.DepthDiff{
		U:    u,
		U2:   u,
		Bids: parseLevels(toStringPairs(data["b"])),
		Asks: parseLevels(toStringPairs(data["a"])),
	}, true
}

func parseTradeMessage(entry map[string]interface{}) (domain.Trade, bool) {
	side, _ := entry["S"].(string)
	priceStr, _ := entry["p"].(string)
	sizeStr, _ := entry["v"].(string)
	tsFloat, _ := entry["T"].(float64)

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Trade{}, false
	}
	qty, err := decimal.NewFromString(sizeStr)
	if err != nil {
		return domain.Trade{}, false
	}

	tradeSide := domain.TradeBuy
	if strings.EqualFold(side, "Sell") {
		tradeSide = domain.TradeSell
	}

	return domain.Trade{
		Price:       price,
		Quantity:    qty,
		Side:        tradeSide,
		TimestampMs: int64(tsFloat),
		ArrivalMs:   time.Now().UnixMilli(),
	}, true
}
