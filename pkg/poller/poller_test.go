package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func TestSubscribe_ImmediateFetchAndRepeat(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	sub := Subscribe(context.Background(), fetch, 20*time.Millisecond,
		WithLogger(zaptest.NewLogger(t)), WithName("jobs"))
	defer sub.Unsubscribe()

	// Fetch #1 is issued immediately, not on the first tick.
	waitFor(t, func() bool { return calls.Load() >= 1 }, "immediate fetch")

	// Subsequent fetches arrive on the interval.
	waitFor(t, func() bool { return calls.Load() >= 3 }, "repeated fetches")

	snap := sub.Snapshot()
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.NotZero(t, snap.LastUpdate)
	assert.GreaterOrEqual(t, snap.Seq, uint64(1))
}

func TestSubscribe_OutOfOrderResponseDiscarded(t *testing.T) {
	// Fetch #1 blocks until released; fetch #2 returns right away. The
	// late #1 must never overwrite the value applied from #2.
	release := make(chan struct{})
	var calls atomic.Int64

	fetch := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "stale", nil
		}
		return "fresh", nil
	}

	sub := Subscribe(context.Background(), fetch, 15*time.Millisecond, WithName("status"))
	defer sub.Unsubscribe()

	waitFor(t, func() bool { return sub.Snapshot().Value == "fresh" }, "second response applied")
	applied := sub.Snapshot().Seq

	close(release)

	// Give the stale response time to resolve, then confirm it was dropped.
	waitFor(t, func() bool { return sub.Snapshot().Seq >= applied }, "sequence stable")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "fresh", sub.Snapshot().Value, "late response for an older tick must be discarded")
}

func TestSubscribe_ErrorKeepsPriorValue(t *testing.T) {
	var calls atomic.Int64
	fetchErr := errors.New("upstream unavailable")

	fetch := func(ctx context.Context) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "v1", nil
		case 2:
			return "", fetchErr
		default:
			return "v3", nil
		}
	}

	sub := Subscribe(context.Background(), fetch, 15*time.Millisecond, WithName("findings"))
	defer sub.Unsubscribe()

	waitFor(t, func() bool {
		s := sub.Snapshot()
		return s.Err != nil
	}, "error cycle applied")

	snap := sub.Snapshot()
	assert.Equal(t, "v1", snap.Value, "failed cycle keeps the prior value")
	assert.ErrorIs(t, snap.Err, fetchErr)

	// The next tick is the implicit retry and clears the error.
	waitFor(t, func() bool {
		s := sub.Snapshot()
		return s.Err == nil && s.Value == "v3"
	}, "error cleared on next success")
}

func TestSubscribe_ErrorDoesNotStopTimer(t *testing.T) {
	var calls atomic.Int64
	failing := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("always failing")
	}

	sub := Subscribe(context.Background(), failing, 15*time.Millisecond, WithName("status"))
	defer sub.Unsubscribe()

	waitFor(t, func() bool { return calls.Load() >= 3 }, "polling continues through failures")
	assert.Error(t, sub.Snapshot().Err)
}

func TestUnsubscribe_BeforeFirstResolve(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64

	fetch := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "never-applied", nil
	}

	sub := Subscribe(context.Background(), fetch, 10*time.Millisecond, WithName("jobs"))
	<-started
	sub.Unsubscribe()
	close(release)

	time.Sleep(50 * time.Millisecond)

	snap := sub.Snapshot()
	assert.True(t, snap.Loading, "no value was ever applied")
	assert.Empty(t, snap.Value)
	assert.Zero(t, snap.LastUpdate)
	assert.True(t, sub.Closed())

	// The timer is gone: no further fetches fire after closure.
	issued := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, issued, calls.Load())
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	fetch := func(ctx context.Context) (int, error) { return 1, nil }

	sub := Subscribe(context.Background(), fetch, 10*time.Millisecond)
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.True(t, sub.Closed())
}

func TestSubscribe_ContextCancelStopsPolling(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := Subscribe(ctx, fetch, 10*time.Millisecond)
	defer sub.Unsubscribe()

	waitFor(t, func() bool { return calls.Load() >= 1 }, "first fetch")
	cancel()
	time.Sleep(30 * time.Millisecond)

	issued := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, issued, calls.Load(), "cancelled context stops the timer")
}

func TestSubscriptions_Independent(t *testing.T) {
	var a, b atomic.Int64
	subA := Subscribe(context.Background(), func(ctx context.Context) (int64, error) {
		return a.Add(1), nil
	}, 15*time.Millisecond, WithName("a"))
	subB := Subscribe(context.Background(), func(ctx context.Context) (int64, error) {
		return b.Add(1), nil
	}, 15*time.Millisecond, WithName("b"))

	waitFor(t, func() bool { return a.Load() >= 2 && b.Load() >= 2 }, "both polling")

	subA.Unsubscribe()
	stopped := a.Load()

	waitFor(t, func() bool { return b.Load() >= stopped+2 }, "b unaffected by a closing")
	assert.Equal(t, stopped, a.Load())
	assert.NotEqual(t, subA.ID(), subB.ID())

	subB.Unsubscribe()
}

func TestUpdates_CarriesLatestSnapshot(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (int64, error) {
		return calls.Add(1), nil
	}

	sub := Subscribe(context.Background(), fetch, 15*time.Millisecond)
	defer sub.Unsubscribe()

	// The feed also carries issue-time snapshots; drain to the first
	// applied one.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-sub.Updates():
			if snap.Loading {
				continue
			}
			assert.GreaterOrEqual(t, snap.Value, int64(1))
			return
		case <-deadline:
			t.Fatal("no applied update received")
		}
	}
}

func TestUpdates_AnnouncesInFlightCycle(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "ok", nil
	}

	sub := Subscribe(context.Background(), fetch, 200*time.Millisecond)
	defer sub.Unsubscribe()

	// Before the fetch resolves the feed must already carry an in-flight
	// snapshot, so watchers can show the cycle in progress.
	select {
	case snap := <-sub.Updates():
		assert.True(t, snap.InFlight)
		assert.True(t, snap.Loading)
	case <-time.After(2 * time.Second):
		t.Fatal("no issue-time update received")
	}

	release <- struct{}{}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-sub.Updates():
			if snap.InFlight {
				continue
			}
			assert.Equal(t, "ok", snap.Value)
			assert.False(t, snap.Loading)
			return
		case <-deadline:
			t.Fatal("resolved snapshot never published")
		}
	}
}

func TestFetchOnce(t *testing.T) {
	var mu sync.Mutex
	called := 0

	value, err := FetchOnce(context.Background(), func(ctx context.Context) (string, error) {
		mu.Lock()
		called++
		mu.Unlock()
		return "detail", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "detail", value)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, called, "one-shot fetch never repeats")
}

func TestFetchOnce_Error(t *testing.T) {
	wantErr := errors.New("not found")
	_, err := FetchOnce(context.Background(), func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
