// Package search implements incremental question search: short inputs filter
// the already-loaded collection in process, longer inputs go through an
// LRU-backed response cache to the backend's search endpoint.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/metrics"
)

// Searcher runs one remote query.
type Searcher func(ctx context.Context, q string) ([]gateway.Question, error)

// State is the engine's observable state.
type State struct {
	Results   []gateway.Question
	Searching bool
	Focused   bool
}

// Config tunes an Engine.
type Config struct {
	Searcher Searcher
	// Threshold is the rune count at or below which input filters the
	// local base collection instead of querying the backend.
	Threshold int
	// CacheSize bounds the response cache. Within a session a repeated
	// query never re-fetches as long as it has not been evicted.
	CacheSize int
	// BlurDelay is the wait before a blur actually closes the result
	// panel, long enough for a click on a result to land first.
	BlurDelay time.Duration
	// OnSelect receives the picked question. One synchronous call per
	// selection.
	OnSelect func(gateway.Question)
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Engine produces the live result set for a stream of input values.
type Engine struct {
	cfg   Config
	cache *lru.Cache[string, []gateway.Question]

	mu        sync.Mutex
	base      []gateway.Question
	results   []gateway.Question
	pending   int
	focused   bool
	blurTimer *time.Timer
	seq       uint64 // latest issued input, for last-writer-wins

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates an Engine. It panics only on an invalid cache size, which is a
// programming error.
func New(cfg Config) *Engine {
	if cfg.Threshold == 0 {
		cfg.Threshold = 3
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 512
	}
	if cfg.BlurDelay == 0 {
		cfg.BlurDelay = 200 * time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	cache, err := lru.New[string, []gateway.Question](cfg.CacheSize)
	if err != nil {
		panic(err)
	}
	return &Engine{
		cfg:   cfg,
		cache: cache,
		subs:  make(map[int]func(State)),
	}
}

// SetBase replaces the locally available collection used for short inputs.
func (e *Engine) SetBase(questions []gateway.Question) {
	e.mu.Lock()
	e.base = append([]gateway.Question(nil), questions...)
	snap := e.stateLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// State returns the current observable state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	return State{
		Results:   append([]gateway.Question(nil), e.results...),
		Searching: e.pending > 0,
		Focused:   e.focused,
	}
}

// Subscribe registers fn to run after every state change. The returned
// function removes the subscription.
func (e *Engine) Subscribe(fn func(State)) func() {
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subsMu.Unlock()
	return func() {
		e.subsMu.Lock()
		delete(e.subs, id)
		e.subsMu.Unlock()
	}
}

func (e *Engine) notify(snap State) {
	e.subsMu.Lock()
	fns := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Input evaluates one input value and returns the resulting result set.
//
// Values at or below the threshold filter the base collection synchronously
// and never touch the network or the cache. Longer values consult the cache
// under the lower-cased query, and on a miss issue exactly one remote query.
// A remote failure yields empty results and leaves the cache untouched.
//
// Overlapping calls resolve last-writer-wins: a slow early query's response
// is discarded when a later input has been issued meanwhile.
func (e *Engine) Input(ctx context.Context, value string) []gateway.Question {
	value = strings.TrimSpace(value)

	e.mu.Lock()
	e.seq++
	mySeq := e.seq
	e.mu.Unlock()

	if len([]rune(value)) <= e.cfg.Threshold {
		results := e.filterLocal(value)
		e.apply(mySeq, results, false)
		return results
	}

	key := strings.ToLower(value)
	if cached, ok := e.cache.Get(key); ok {
		e.cfg.Metrics.SearchCacheHit.Inc()
		results := append([]gateway.Question(nil), cached...)
		e.apply(mySeq, results, false)
		return results
	}
	e.cfg.Metrics.SearchCacheMiss.Inc()

	e.mu.Lock()
	e.pending++
	snap := e.stateLocked()
	e.mu.Unlock()
	e.notify(snap)

	e.cfg.Metrics.SearchRemote.Inc()
	results, err := e.cfg.Searcher(ctx, value)
	if err != nil {
		e.cfg.Logger.Warn().Str("query", value).Err(err).Msg("remote search failed")
		e.apply(mySeq, nil, true)
		return nil
	}

	e.cache.Add(key, append([]gateway.Question(nil), results...))
	e.apply(mySeq, results, true)
	return results
}

// apply commits results for the input identified by seq, unless a newer
// input has been issued since.
func (e *Engine) apply(seq uint64, results []gateway.Question, wasPending bool) {
	e.mu.Lock()
	if wasPending {
		e.pending--
	}
	if seq == e.seq {
		e.results = append([]gateway.Question(nil), results...)
	}
	snap := e.stateLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// filterLocal does a case-insensitive substring match over title+body.
func (e *Engine) filterLocal(value string) []gateway.Question {
	needle := strings.ToLower(value)
	e.mu.Lock()
	base := e.base
	e.mu.Unlock()

	matched := make([]gateway.Question, 0, len(base))
	for _, q := range base {
		if strings.Contains(strings.ToLower(q.Title+q.Body), needle) {
			matched = append(matched, q)
		}
	}
	return matched
}

// Select commits a choice: the result set empties, focus clears, and the
// OnSelect callback fires once with the picked question.
func (e *Engine) Select(q gateway.Question) {
	e.mu.Lock()
	e.results = nil
	e.focused = false
	if e.blurTimer != nil {
		e.blurTimer.Stop()
		e.blurTimer = nil
	}
	snap := e.stateLocked()
	e.mu.Unlock()
	e.notify(snap)

	if e.cfg.OnSelect != nil {
		e.cfg.OnSelect(q)
	}
}

// Focus opens the result panel.
func (e *Engine) Focus() {
	e.mu.Lock()
	if e.blurTimer != nil {
		e.blurTimer.Stop()
		e.blurTimer = nil
	}
	e.focused = true
	snap := e.stateLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Blur schedules the panel to close after the configured delay so a pending
// click on a result can still register. A Focus before the delay elapses
// cancels the close.
func (e *Engine) Blur() {
	e.mu.Lock()
	if e.blurTimer != nil {
		e.blurTimer.Stop()
	}
	e.blurTimer = time.AfterFunc(e.cfg.BlurDelay, func() {
		e.mu.Lock()
		e.focused = false
		e.blurTimer = nil
		snap := e.stateLocked()
		e.mu.Unlock()
		e.notify(snap)
	})
	e.mu.Unlock()
}
