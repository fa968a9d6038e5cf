package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msu-forum/client_layer/internal/gateway"
)

type item struct {
	ID    int
	Title string
}

func newTestStore(loader Loader[item]) *Store[item] {
	return New(Config[item]{
		Name:       "test",
		Loader:     loader,
		IDOf:       func(i item) int { return i.ID },
		Attempts:   3,
		RetryDelay: time.Millisecond,
		CoolDown:   200 * time.Millisecond,
	})
}

func TestLoadSuccess(t *testing.T) {
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		return []item{{ID: 1, Title: "Foo"}}, nil
	})

	items := s.Load(context.Background())
	require.Len(t, items, 1)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 0, snap.RetryCount)
}

func TestLoadSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		<-release
		return []item{{ID: 1}}, nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Load(context.Background())
	}()

	// Wait until the first load is marked in flight.
	require.Eventually(t, func() bool {
		return s.Snapshot().Loading
	}, time.Second, time.Millisecond)

	// Overlapping load returns immediately without a second request.
	s.Load(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return nil, &timeoutErr{}
	})

	items := s.Load(context.Background())
	assert.Empty(t, items, "failed load resolves to an empty collection")
	assert.Equal(t, int32(3), calls.Load(), "bounded attempts within one load")

	snap := s.Snapshot()
	require.NotNil(t, snap.Err)
	assert.Equal(t, gateway.KindUnavailable, *snap.Err)
	assert.Equal(t, 1, snap.RetryCount)
	assert.False(t, snap.Loading)
	assert.False(t, snap.LastFailure.IsZero())
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		if calls.Add(1) < 3 {
			return nil, &timeoutErr{}
		}
		return []item{{ID: 9}}, nil
	})

	items := s.Load(context.Background())
	require.Len(t, items, 1)

	snap := s.Snapshot()
	assert.Nil(t, snap.Err)
	assert.Equal(t, 0, snap.RetryCount, "retry count resets on success")
}

func TestCoolDownGate(t *testing.T) {
	var calls atomic.Int32
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return nil, &timeoutErr{}
	})

	s.Load(context.Background())
	after := calls.Load()
	errBefore := *s.Snapshot().Err

	// Inside the cool-down window: no network call, error untouched.
	items := s.Load(context.Background())
	assert.Empty(t, items)
	assert.Equal(t, after, calls.Load())
	assert.Equal(t, errBefore, *s.Snapshot().Err)

	// After the window elapses the gate opens again.
	time.Sleep(250 * time.Millisecond)
	s.Load(context.Background())
	assert.Greater(t, calls.Load(), after)
}

func TestCoolDownIncrementsRetryCount(t *testing.T) {
	s := New(Config[item]{
		Name:       "test",
		Loader:     func(ctx context.Context) ([]item, error) { return nil, &timeoutErr{} },
		Attempts:   1,
		RetryDelay: time.Millisecond,
		CoolDown:   time.Millisecond,
	})

	s.Load(context.Background())
	time.Sleep(5 * time.Millisecond)
	s.Load(context.Background())
	assert.Equal(t, 2, s.Snapshot().RetryCount)
}

func TestLocalMutators(t *testing.T) {
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		return []item{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}, nil
	})
	s.Load(context.Background())

	s.Add(item{ID: 3, Title: "c"})
	assert.Len(t, s.Snapshot().Items, 3)

	assert.True(t, s.UpdateByID(2, item{ID: 2, Title: "B"}))
	assert.Equal(t, "B", s.Snapshot().Items[1].Title)

	assert.True(t, s.RemoveByID(1))
	assert.Len(t, s.Snapshot().Items, 2)

	assert.False(t, s.UpdateByID(99, item{ID: 99}))
	assert.False(t, s.RemoveByID(99))
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		return []item{{ID: 1}}, nil
	})

	var mu sync.Mutex
	var seen []Snapshot[item]
	cancel := s.Subscribe(func(snap Snapshot[item]) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	s.Load(context.Background())

	mu.Lock()
	n := len(seen)
	require.GreaterOrEqual(t, n, 2, "loading transition and completion both notify")
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[n-1].Loading)
	mu.Unlock()

	cancel()
	s.Add(item{ID: 2})
	mu.Lock()
	assert.Equal(t, n, len(seen), "unsubscribed observer receives nothing")
	mu.Unlock()
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore(func(ctx context.Context) ([]item, error) {
		return []item{{ID: 1, Title: "a"}}, nil
	})
	s.Load(context.Background())

	snap := s.Snapshot()
	snap.Items[0].Title = "mutated"
	assert.Equal(t, "a", s.Snapshot().Items[0].Title)
}

// timeoutErr mimics a transport failure with no HTTP status.
type timeoutErr struct{}

func (*timeoutErr) Error() string { return "dial tcp: connection refused" }
