package metrics

// Observer implements usecase.MetricsObserver against the package-level
// prometheus collectors. It has no state of its own — Prometheus vectors
// are already safe for concurrent use by every collaborator goroutine.
type Observer struct{}

func NewObserver() Observer { return Observer{} }

func (Observer) ObserveEnvelopePublished(symbol string) {
	EnvelopesPublished.WithLabelValues(symbol).Inc()
}

func (Observer) ObserveBookState(symbol string, live bool) {
	ObserveBookState(symbol, live)
}

func (Observer) ObserveBookResync(symbol string) {
	BookResyncs.WithLabelValues(symbol).Inc()
}

func (Observer) ObserveSubscriberQueueDepth(subscriptionID string, depth int) {
	SubscriberQueueDepth.WithLabelValues(subscriptionID).Set(float64(depth))
}

func (Observer) ObserveSubscriberDrop(subscriptionID string) {
	SubscriberDrops.WithLabelValues(subscriptionID).Inc()
}

func (Observer) ObserveRampBudget(symbol string, budget float64) {
	RampBudget.WithLabelValues(symbol).Set(budget)
}

func (Observer) ObserveRampClose(symbol string, pnl float64) {
	ObserveRampClose(symbol, pnl)
}
