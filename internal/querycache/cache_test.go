package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return New(Options{StaleTime: time.Minute, GCTime: 10 * time.Minute, Now: clock.Now}), clock
}

func counter(calls *atomic.Int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestFetchCachesFreshValues(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache()
	key := Key{Resource: "ec2-instances", Params: "status=active"}
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		got, err := Fetch(context.Background(), c, key, counter(&calls, "v1"))
		if err != nil || got != "v1" {
			t.Fatalf("Fetch() = %q, %v", got, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	clock.Advance(2 * time.Minute)
	if !c.IsStale(key) {
		t.Fatal("entry should be stale after the stale time")
	}
	if _, err := Fetch(context.Background(), c, key, counter(&calls, "v2")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchKeysAreDistinctByParamsAndScope(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	var calls atomic.Int32
	keys := []Key{
		{Resource: "vpcs"},
		{Resource: "vpcs", Params: "region=us-east-1"},
		{Resource: "vpcs", Params: "region=us-east-1", Scope: "alice"},
		{Resource: "subnets", Params: "region=us-east-1"},
	}
	for _, key := range keys {
		if _, err := Fetch(context.Background(), c, key, counter(&calls, key.String())); err != nil {
			t.Fatalf("Fetch(%v) error = %v", key, err)
		}
	}
	if calls.Load() != int32(len(keys)) {
		t.Fatalf("calls = %d, want %d", calls.Load(), len(keys))
	}
}

func TestFetchDeduplicatesInFlightRequests(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	key := Key{Resource: "cyberark-safes"}
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32

	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return "safes", nil
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan string, callers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _ := Fetch(context.Background(), c, key, fetch)
		results <- v
	}()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := Fetch(context.Background(), c, key, fetch)
			results <- v
		}()
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		if v != "safes" {
			t.Fatalf("result = %q", v)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestAbandonedCallerDoesNotCancelSharedFetch(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	key := Key{Resource: "rds-instances"}
	release := make(chan struct{})
	fetchErr := make(chan error, 1)

	fetch := func(ctx context.Context) (string, error) {
		<-release
		fetchErr <- ctx.Err()
		return "rds", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, key, fetch)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned caller error = %v, want context.Canceled", err)
	}
	close(release)
	if err := <-fetchErr; err != nil {
		t.Fatalf("shared fetch saw ctx error %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.Peek(key); ok && v == "rds" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("abandoned fetch result was not cached")
}

func TestFetchErrorIsNotCached(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	key := Key{Resource: "vpcs"}
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, ok := c.Peek(key); ok {
		t.Fatal("failed fetch should not create an entry")
	}
}

func TestFetchTypeMismatch(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	key := Key{Resource: "vpcs"}
	if _, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) { return "x", nil }); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 1, nil }); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestInvalidateMarksMatchingEntriesStale(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	var calls atomic.Int32
	for _, key := range []Key{{Resource: "vpcs"}, {Resource: "vpcs", Params: "page=2"}, {Resource: "subnets"}} {
		if _, err := Fetch(context.Background(), c, key, counter(&calls, "x")); err != nil {
			t.Fatal(err)
		}
	}

	marked := c.Invalidate("vpcs")
	if len(marked) != 2 {
		t.Fatalf("marked = %v, want 2 vpcs keys", marked)
	}
	if !c.IsStale(Key{Resource: "vpcs"}) || c.IsStale(Key{Resource: "subnets"}) {
		t.Fatal("only vpcs entries should be stale")
	}
}

func TestInvalidateAllThenRefetch(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	resources := []string{"ec2-instances", "vpcs", "cyberark-safes"}
	calls := map[string]*atomic.Int32{}
	for _, r := range resources {
		calls[r] = &atomic.Int32{}
		key := Key{Resource: r}
		if _, err := Fetch(context.Background(), c, key, counter(calls[r], r)); err != nil {
			t.Fatal(err)
		}
	}

	keys := c.InvalidateAll()
	if len(keys) != len(resources) {
		t.Fatalf("InvalidateAll() = %v", keys)
	}
	for _, r := range resources {
		if !c.IsStale(Key{Resource: r}) {
			t.Fatalf("%s not stale after InvalidateAll", r)
		}
	}

	if err := c.Refetch(context.Background(), keys); err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}
	for _, r := range resources {
		if got := calls[r].Load(); got != 2 {
			t.Fatalf("%s fetched %d times, want 2", r, got)
		}
		if c.IsStale(Key{Resource: r}) {
			t.Fatalf("%s still stale after refetch", r)
		}
	}
}

func TestRefetchAfterInvalidateIgnoresEarlierInFlightFetch(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache()
	key := Key{Resource: "vpcs"}
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	fetch := func(context.Context) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "initial", nil
		case 2:
			close(started)
			<-release
			return "old", nil
		default:
			return "new", nil
		}
	}

	if _, err := Fetch(context.Background(), c, key, fetch); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	slow := make(chan string, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, key, fetch)
		slow <- v
	}()
	<-started

	keys := c.InvalidateAll()
	if err := c.Refetch(context.Background(), keys); err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}
	if v, _ := c.Peek(key); v != "new" {
		t.Fatalf("after refresh value = %v, want new", v)
	}

	close(release)
	if v := <-slow; v != "old" {
		t.Fatalf("earlier caller got %q, want old", v)
	}
	if v, _ := c.Peek(key); v != "new" {
		t.Fatalf("earlier fetch overwrote refreshed value with %v", v)
	}
	if c.IsStale(key) {
		t.Fatal("refreshed entry should be fresh")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestRefetchReportsErrorsButAttemptsAll(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	var okCalls atomic.Int32
	var down atomic.Bool
	if _, err := c.Get(context.Background(), Key{Resource: "a"}, func(context.Context) (any, error) {
		if down.Load() {
			return nil, errors.New("down")
		}
		return "a", nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := Fetch(context.Background(), c, Key{Resource: "b"}, counter(&okCalls, "b")); err != nil {
		t.Fatal(err)
	}
	down.Store(true)

	if err := c.Refetch(context.Background(), c.InvalidateAll()); err == nil {
		t.Fatal("expected refetch error")
	}
	if okCalls.Load() != 2 {
		t.Fatalf("b fetched %d times, want 2", okCalls.Load())
	}
}

func TestPruneDropsIdleEntries(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache()
	var calls atomic.Int32
	if _, err := Fetch(context.Background(), c, Key{Resource: "old"}, counter(&calls, "x")); err != nil {
		t.Fatal(err)
	}
	clock.Advance(9 * time.Minute)
	if _, err := Fetch(context.Background(), c, Key{Resource: "new"}, counter(&calls, "y")); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	if removed := c.Prune(); removed != 1 {
		t.Fatalf("Prune() = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestPollerRefreshesKey(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	var calls atomic.Int32
	key := Key{Resource: "status"}
	p := &Poller{
		Cache:    c,
		Key:      key,
		Interval: 10 * time.Millisecond,
		Fetch: func(context.Context) (any, error) {
			calls.Add(1)
			return "ok", nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if calls.Load() < 2 {
		t.Fatalf("poller fetched %d times, want at least 2", calls.Load())
	}
	if v, ok := c.Peek(key); !ok || v != "ok" {
		t.Fatalf("Peek() = %v, %v", v, ok)
	}
}
