// Package store provides a reactive state container for a remote-backed
// collection. Each Store owns one collection's request lifecycle: loading
// flag, last error kind, retry accounting, and the backoff gate that keeps
// the UI from hammering a failing backend.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/metrics"
)

// Loader fetches the collection from the backend.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Snapshot is an immutable view of the store's state at one point in time.
type Snapshot[T any] struct {
	Items       []T
	Loading     bool
	Err         *gateway.Kind // nil when the last load succeeded
	RetryCount  int
	LastFailure time.Time
}

// Config tunes a Store.
type Config[T any] struct {
	// Name labels the store in logs and metrics ("questions", "tags").
	Name   string
	Loader Loader[T]
	// IDOf extracts an item's identity for the local mutators.
	IDOf func(T) int
	// Attempts is the bound on tries within one Load call.
	Attempts int
	// RetryDelay is the fixed wait between attempts of one Load call.
	RetryDelay time.Duration
	// CoolDown is the minimum elapsed time after a failed Load before the
	// next Load issues a request. This gate is external to the per-Load
	// retry policy above.
	CoolDown time.Duration
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Store is a thread-safe reactive container for one remote collection.
//
// The source this design comes from ran on a single-threaded event loop and
// needed no locking; the Go port makes exclusivity explicit with a mutex so
// the container is safe from any goroutine.
type Store[T any] struct {
	cfg Config[T]

	mu          sync.Mutex
	items       []T
	loading     bool
	errKind     *gateway.Kind
	retryCount  int
	lastFailure time.Time

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot[T])
	nextSub int
}

// New creates a Store with defaults filled in.
func New[T any](cfg Config[T]) *Store[T] {
	if cfg.Attempts < 1 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.CoolDown == 0 {
		cfg.CoolDown = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Store[T]{
		cfg:  cfg,
		subs: make(map[int]func(Snapshot[T])),
	}
}

// Snapshot returns the current state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:       append([]T(nil), s.items...),
		Loading:     s.loading,
		Err:         s.errKind,
		RetryCount:  s.retryCount,
		LastFailure: s.lastFailure,
	}
}

// Subscribe registers fn to run after every state change. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store[T]) notify(snap Snapshot[T]) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Load fetches the collection. A Load issued while another is in flight
// returns the current items without a second request. A Load issued inside
// the cool-down window after a failure returns empty without touching the
// network. Failures never surface as a returned error: the store records the
// classified kind and resolves to an empty collection.
func (s *Store[T]) Load(ctx context.Context) []T {
	s.mu.Lock()
	if s.loading {
		items := append([]T(nil), s.items...)
		s.mu.Unlock()
		return items
	}
	if s.errKind != nil && time.Since(s.lastFailure) < s.cfg.CoolDown {
		s.mu.Unlock()
		s.cfg.Logger.Debug().Str("store", s.cfg.Name).Msg("load suppressed by cool-down")
		return nil
	}
	s.loading = true
	s.errKind = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	items, err := s.loadWithRetry(ctx)
	if err != nil {
		kind := gateway.KindOf(err)
		s.mu.Lock()
		s.errKind = &kind
		s.retryCount++
		s.lastFailure = time.Now()
		s.loading = false
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		s.cfg.Metrics.StoreLoads.WithLabelValues(s.cfg.Name, "failure").Inc()
		s.cfg.Logger.Warn().
			Str("store", s.cfg.Name).
			Stringer("kind", kind).
			Int("retry_count", snap.RetryCount).
			Msg("load failed")
		return nil
	}

	s.mu.Lock()
	s.items = items
	s.errKind = nil
	s.retryCount = 0
	s.loading = false
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	s.cfg.Metrics.StoreLoads.WithLabelValues(s.cfg.Name, "success").Inc()
	s.cfg.Logger.Debug().Str("store", s.cfg.Name).Int("items", len(items)).Msg("load completed")
	return append([]T(nil), items...)
}

func (s *Store[T]) loadWithRetry(ctx context.Context) ([]T, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		items, err := s.cfg.Loader(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if attempt == s.cfg.Attempts {
			break
		}
		s.cfg.Metrics.StoreRetries.Inc()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	return nil, lastErr
}

// Add appends an item locally. No network round-trip.
func (s *Store[T]) Add(item T) {
	s.mu.Lock()
	s.items = append(s.items, item)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// UpdateByID replaces the item whose ID matches. Returns false when no item
// matched.
func (s *Store[T]) UpdateByID(id int, item T) bool {
	if s.cfg.IDOf == nil {
		return false
	}
	s.mu.Lock()
	updated := false
	for i := range s.items {
		if s.cfg.IDOf(s.items[i]) == id {
			s.items[i] = item
			updated = true
			break
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if updated {
		s.notify(snap)
	}
	return updated
}

// RemoveByID deletes the item whose ID matches. Returns false when no item
// matched.
func (s *Store[T]) RemoveByID(id int) bool {
	if s.cfg.IDOf == nil {
		return false
	}
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.cfg.IDOf(s.items[i]) == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if removed {
		s.notify(snap)
	}
	return removed
}
