package usecase

import (
	"sync"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// CvdTimeframeConfig names one timeframe bucket, per spec.md §4.3.
type CvdTimeframeConfig struct {
	Name       string
	DurationMs int64
}

// DefaultCvdTimeframes returns the spec's default {1m, 5m, 15m} buckets.
func DefaultCvdTimeframes() []CvdTimeframeConfig {
	return []CvdTimeframeConfig{
		{Name: "tf1m", DurationMs: 60000},
		{Name: "tf5m", DurationMs: 300000},
		{Name: "tf15m", DurationMs: 900000},
	}
}

type cvdBucket struct {
	durationMs int64
	window     *domain.RollingWindow[domain.Trade]
}

// CvdCalculator maintains an independent rolling window per configured
// timeframe and reports cumulative volume delta, per spec.md §4.3.
type CvdCalculator struct {
	mu      sync.Mutex
	buckets map[string]*cvdBucket
	order   []string // preserves configured timeframe order
}

// NewCvdCalculator constructs a calculator with the given timeframes.
func NewCvdCalculator(timeframes []CvdTimeframeConfig) *CvdCalculator {
	c := &CvdCalculator{buckets: make(map[string]*cvdBucket, len(timeframes))}
	for _, tf := range timeframes {
		c.buckets[tf.Name] = &cvdBucket{
			durationMs: tf.DurationMs,
			window:     domain.NewRollingWindow[domain.Trade](tf.DurationMs),
		}
		c.order = append(c.order, tf.Name)
	}
	return c
}

// AddTrade records a signed trade into every configured timeframe window.
func (c *CvdCalculator) AddTrade(t domain.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets {
		b.window.Add(t)
	}
}

// CvdReading is one timeframe's published CVD, per spec.md §4.3/§6.
type CvdReading struct {
	Cvd       float64
	Delta     float64 // equal to Cvd under the one-window-per-timeframe definition
	WarmUpPct float64
}

// Reading computes the CVD for one named timeframe. cvd is the signed sum
// of trades currently in the window (spec.md §8 invariant 7); warmUpPct is
// min(100, (now-oldestTimestamp)/durationMs*100).
func (c *CvdCalculator) Reading(name string) CvdReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	if !ok {
		return CvdReading{}
	}
	return readingFor(b)
}

func readingFor(b *cvdBucket) CvdReading {
	entries := b.window.Entries()
	var sum float64
	for _, e := range entries {
		sum += e.SignedQuantity().InexactFloat64()
	}

	warmUp := 100.0
	if len(entries) > 0 && b.durationMs > 0 {
		now := b.window.Now()
		oldest := b.window.OldestTimestamp()
		pct := float64(now-oldest) / float64(b.durationMs) * 100
		if pct < 100 {
			warmUp = pct
		}
	} else if len(entries) == 0 {
		warmUp = 0
	}

	return CvdReading{Cvd: sum, Delta: sum, WarmUpPct: warmUp}
}

// All returns every configured timeframe's reading keyed by name.
func (c *CvdCalculator) All() map[string]CvdReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]CvdReading, len(c.buckets))
	for _, name := range c.order {
		out[name] = readingFor(c.buckets[name])
	}
	return out
}
