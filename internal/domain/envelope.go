package domain

import "encoding/json"

// EnvelopeState tags whether an envelope's book levels are live or elided
// because the symbol is mid-resync, per spec.md §4.6.
type EnvelopeState string

const (
	EnvelopeLive  EnvelopeState = "LIVE"
	EnvelopeStale EnvelopeState = "STALE"
)

// BookRow is one published [price, size, cumulative] row.
type BookRow struct {
	Price      float64
	Size       float64
	Cumulative float64
}

// MarshalJSON renders BookRow as a 3-element array, matching the wire
// shape in spec.md §6 ("bids": [[p,s,cum], ...8]).
func (r BookRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{r.Price, r.Size, r.Cumulative})
}

// ConsecutiveBurst is the current same-side trade run, per spec.md §4.2.
type ConsecutiveBurst struct {
	Side  TradeSide `json:"side"`
	Count int       `json:"count"`
}

// TimeAndSales is the aggregator summary block of the envelope.
type TimeAndSales struct {
	AggressiveBuyVolume  float64          `json:"aggressiveBuyVolume"`
	AggressiveSellVolume float64          `json:"aggressiveSellVolume"`
	TradeCount           int              `json:"tradeCount"`
	PrintsPerSecond      float64          `json:"printsPerSecond"`
	SmallTrades          int              `json:"smallTrades"`
	MidTrades            int              `json:"midTrades"`
	LargeTrades          int              `json:"largeTrades"`
	BidHitAskLiftRatio   float64          `json:"bidHitAskLiftRatio"`
	ConsecutiveBurst     ConsecutiveBurst `json:"consecutiveBurst"`
	AvgLatencyMs         *float64         `json:"avgLatencyMs,omitempty"`
}

// CvdTimeframe is one entry of the per-timeframe CVD block.
type CvdTimeframe struct {
	Cvd        float64 `json:"cvd"`
	Delta      float64 `json:"delta"`
	WarmUpPct  float64 `json:"warmUpPct"`
}

// CvdBlock is the multi-timeframe CVD block, per spec.md §6.
type CvdBlock struct {
	Tf1m  CvdTimeframe `json:"tf1m"`
	Tf5m  CvdTimeframe `json:"tf5m"`
	Tf15m CvdTimeframe `json:"tf15m"`
}

// OpenInterestBlock is the published OI block.
type OpenInterestBlock struct {
	OpenInterest  float64 `json:"openInterest"`
	OiChangeAbs   float64 `json:"oiChangeAbs"`
	OiChangePct   float64 `json:"oiChangePct"`
	OiDeltaWindow float64 `json:"oiDeltaWindow"`
	Source        string  `json:"source"` // "real" | "mock"
}

// FundingTrend is the direction of the last funding-rate poll vs. the one
// before it (supplemented feature, see SPEC_FULL.md).
type FundingTrend string

const (
	FundingUp   FundingTrend = "up"
	FundingDown FundingTrend = "down"
	FundingFlat FundingTrend = "flat"
)

// FundingBlock is the optional funding-rate block.
type FundingBlock struct {
	Rate            float64      `json:"rate"`
	TimeToFundingMs int64        `json:"timeToFundingMs"`
	Trend           FundingTrend `json:"trend"`
}

// LegacyMetrics is the composite-calculator block, per spec.md §4.5/§6.
type LegacyMetrics struct {
	Delta1s         float64 `json:"delta1s"`
	Delta5s         float64 `json:"delta5s"`
	DeltaZ          float64 `json:"deltaZ"`
	CvdSession      float64 `json:"cvdSession"`
	CvdSlope        float64 `json:"cvdSlope"`
	ObiWeighted     float64 `json:"obiWeighted"`
	ObiDeep         float64 `json:"obiDeep"`
	ObiDivergence   float64 `json:"obiDivergence"`
	Vwap            float64 `json:"vwap"`
	SweepFadeScore  float64 `json:"sweepFadeScore"`
	BreakoutScore   float64 `json:"breakoutScore"`
	RegimeWeight    float64 `json:"regimeWeight"`
	AbsorptionScore float64 `json:"absorptionScore"`
}

// MetricsEnvelope is the full published per-symbol tick, per spec.md §3/§6.
type MetricsEnvelope struct {
	Type           string            `json:"type"` // always "metrics"
	Symbol         string            `json:"symbol"`
	CanonicalTimeMs int64            `json:"canonicalTimeMs"`
	State          EnvelopeState     `json:"state"`
	Price          float64           `json:"price"`
	Bids           []BookRow         `json:"bids"`
	Asks           []BookRow         `json:"asks"`
	TimeAndSales   TimeAndSales      `json:"timeAndSales"`
	Cvd            CvdBlock          `json:"cvd"`
	OpenInterest   OpenInterestBlock `json:"openInterest"`
	Funding        *FundingBlock     `json:"funding"`
	Absorption     *float64          `json:"absorption"`
	LegacyMetrics  LegacyMetrics     `json:"legacyMetrics"`
}
