package domain

// MaxWindowEntries bounds every RollingWindow regardless of its time
// duration, to cap memory under trade bursts (spec.md §3, MAX_WINDOW).
const MaxWindowEntries = 10000

// Timestamped is implemented by anything a RollingWindow can hold.
type Timestamped interface {
	TimestampMillis() int64
}

// RollingWindow is an array-backed deque ordered by timestamp, bounded by a
// duration and by MaxWindowEntries. Eviction runs on every mutation and
// read and removes stale entries from the front only, shifting the
// remaining entries down in the same backing slice.
type RollingWindow[T Timestamped] struct {
	entries    []T
	durationMs int64
	maxSeen    int64 // max timestamp ever observed, used as eviction reference
}

// NewRollingWindow constructs an empty window of the given duration.
func NewRollingWindow[T Timestamped](durationMs int64) *RollingWindow[T] {
	return &RollingWindow[T]{durationMs: durationMs}
}

// Add appends an entry and evicts stale ones. Out-of-order timestamps are
// accepted (appended at the tail) but eviction always uses the maximum
// timestamp ever seen as "now", per spec.md §5 ordering guarantees.
func (w *RollingWindow[T]) Add(entry T) {
	w.entries = append(w.entries, entry)
	if ts := entry.TimestampMillis(); ts > w.maxSeen {
		w.maxSeen = ts
	}
	w.evict()
}

// evict drops entries older than maxSeen-duration and trims to
// MaxWindowEntries from the front.
func (w *RollingWindow[T]) evict() {
	cutoff := w.maxSeen - w.durationMs
	i := 0
	for i < len(w.entries) && w.entries[i].TimestampMillis() < cutoff {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
	if over := len(w.entries) - MaxWindowEntries; over > 0 {
		w.entries = append(w.entries[:0], w.entries[over:]...)
	}
}

// Entries returns a read-only snapshot of the currently live entries,
// applying eviction first so callers always see a fresh view.
func (w *RollingWindow[T]) Entries() []T {
	w.evict()
	out := make([]T, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len returns the live entry count after eviction.
func (w *RollingWindow[T]) Len() int {
	w.evict()
	return len(w.entries)
}

// OldestTimestamp returns the timestamp of the oldest live entry, or 0 if
// the window is empty.
func (w *RollingWindow[T]) OldestTimestamp() int64 {
	w.evict()
	if len(w.entries) == 0 {
		return 0
	}
	return w.entries[0].TimestampMillis()
}

// Now returns the reference time (max timestamp ever observed) the window
// uses for eviction, per spec.md §5 ("window eviction still uses the max
// seen timestamp as the reference time").
func (w *RollingWindow[T]) Now() int64 { return w.maxSeen }
