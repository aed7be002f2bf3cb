package domain

import "errors"

// Sentinel errors surfaced by the core pipeline. Most are handled locally
// per spec (gap -> RESYNC, snapshot failure -> backoff) and never escape to
// a caller; they are exported so infrastructure adapters and tests can
// distinguish them with errors.Is.
var (
	ErrGapDetected     = errors.New("book synchroniser: sequence gap detected")
	ErrSnapshotStale   = errors.New("book synchroniser: snapshot required before diff can apply")
	ErrSubscriberQueue = errors.New("subscription hub: subscriber queue closed")
	ErrUnknownSymbol   = errors.New("no such subscribed symbol")

	// ErrRateLimited is wrapped into a collaborator's returned error when
	// the exchange responds with HTTP 429, per spec.md §7's
	// OiPollFailure/FundingPollFailure "suppress 429" handling: callers
	// check errors.Is(err, ErrRateLimited) to skip logging the noisy case.
	ErrRateLimited = errors.New("exchange: rate limited")
)
