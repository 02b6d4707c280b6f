package querycache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

type caseRecord struct {
	Title string `json:"title"`
}

// TestCaseRoundTrip mirrors the end-to-end example: hit on the stored key,
// miss (counted) on a neighbouring one.
func TestCaseRoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	mustSet(t, c, "case", Params{"id": "42"}, caseRecord{Title: "Roe v. Wade"}, 5*time.Second)

	v, ok := mustGet(t, c, "case", Params{"id": "42"})
	if !ok || v != (caseRecord{Title: "Roe v. Wade"}) {
		t.Fatalf("Get case 42: ok=%v v=%v", ok, v)
	}
	if v, ok := mustGet(t, c, "case", Params{"id": "43"}); ok || v != nil {
		t.Fatalf("Get case 43 should miss, ok=%v v=%v", ok, v)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Size != 1 || st.HitRate != 50 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestExpiryOnRead(t *testing.T) {
	c, mock, hooks := newTestCache(t, nil)

	mustSet(t, c, "search", Params{"q": "brown"}, "result", 10*time.Millisecond)
	before := c.Stats().Misses

	mock.Add(20 * time.Millisecond)
	if _, ok := mustGet(t, c, "search", Params{"q": "brown"}); ok {
		t.Fatalf("expired entry must not be returned")
	}
	st := c.Stats()
	if st.Misses != before+1 {
		t.Fatalf("misses=%d want %d", st.Misses, before+1)
	}
	if st.Size != 0 {
		t.Fatalf("expired entry should be deleted on read, size=%d", st.Size)
	}
	if got := hooks.expired[ExpiredOnRead]; len(got) != 1 || got[0] != `search:q="brown"` {
		t.Fatalf("expired hook=%v", got)
	}
}

// An entry is still visible when exactly ttl has elapsed.
func TestExpiryBoundaryIsInclusive(t *testing.T) {
	c, mock, _ := newTestCache(t, nil)

	mustSet(t, c, "search", Params{"q": "x"}, 1, time.Second)
	mock.Add(time.Second)
	if _, ok := mustGet(t, c, "search", Params{"q": "x"}); !ok {
		t.Fatalf("entry should be visible at now-storedAt == ttl")
	}
	mock.Add(time.Nanosecond)
	if _, ok := mustGet(t, c, "search", Params{"q": "x"}); ok {
		t.Fatalf("entry should be expired past ttl")
	}
}

func TestDefaultTTL(t *testing.T) {
	c, mock, _ := newTestCache(t, nil)

	mustSet(t, c, "user", Params{"id": 1}, "ada", 0)
	mock.Add(DefaultTTL)
	if _, ok := mustGet(t, c, "user", Params{"id": 1}); !ok {
		t.Fatalf("entry should live for the default 5m")
	}
	mock.Add(time.Millisecond)
	if _, ok := mustGet(t, c, "user", Params{"id": 1}); ok {
		t.Fatalf("entry should expire after the default 5m")
	}
}

func TestBoundedSizeEvictsFirstInserted(t *testing.T) {
	c, _, hooks := newTestCache(t, nil)

	for i := 0; i <= DefaultMaxSize; i++ {
		mustSet(t, c, "doc", Params{"n": i}, i, time.Minute)
	}
	if st := c.Stats(); st.Size != DefaultMaxSize {
		t.Fatalf("size=%d want %d", st.Size, DefaultMaxSize)
	}
	if _, ok := mustGet(t, c, "doc", Params{"n": 0}); ok {
		t.Fatalf("first inserted key should be evicted")
	}
	for _, n := range []int{1, DefaultMaxSize} {
		if _, ok := mustGet(t, c, "doc", Params{"n": n}); !ok {
			t.Fatalf("key n=%d should still be present", n)
		}
	}
	if !reflect.DeepEqual(hooks.evicted, []string{"doc:n=0"}) {
		t.Fatalf("evicted=%v", hooks.evicted)
	}
}

// Reads and overwrites never change eviction order (FIFO, not LRU).
func TestEvictionIsFIFONotLRU(t *testing.T) {
	c, _, _ := newTestCache(t, func(o *Options) { o.MaxSize = 3 })

	for _, k := range []string{"a", "b", "c"} {
		mustSet(t, c, "k", Params{"id": k}, k, time.Minute)
	}
	// touch and overwrite the oldest
	mustGet(t, c, "k", Params{"id": "a"})
	mustSet(t, c, "k", Params{"id": "a"}, "a2", time.Minute)
	if st := c.Stats(); st.Size != 3 {
		t.Fatalf("overwrite at capacity must not evict, size=%d", st.Size)
	}

	mustSet(t, c, "k", Params{"id": "d"}, "d", time.Minute)
	if _, ok := mustGet(t, c, "k", Params{"id": "a"}); ok {
		t.Fatalf("'a' was inserted first and must be evicted despite recent access")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := mustGet(t, c, "k", Params{"id": k}); !ok {
			t.Fatalf("%q should be present", k)
		}
	}
}

func TestSetOverwriteDoesNotTouchStats(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	mustSet(t, c, "case", Params{"id": "1"}, "v1", time.Minute)
	mustSet(t, c, "case", Params{"id": "1"}, "v2", time.Minute)
	st := c.Stats()
	if st.Hits != 0 || st.Misses != 0 || st.Size != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if v, _ := mustGet(t, c, "case", Params{"id": "1"}); v != "v2" {
		t.Fatalf("overwrite lost: %v", v)
	}
}

func TestStatsHitRate(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	if st := c.Stats(); st.HitRate != 0 {
		t.Fatalf("hit rate before lookups=%v want 0", st.HitRate)
	}

	mustSet(t, c, "s", Params{"q": 1}, 1, time.Minute)
	mustGet(t, c, "s", Params{"q": 1}) // hit
	mustGet(t, c, "s", Params{"q": 2}) // miss
	mustGet(t, c, "s", Params{"q": 3}) // miss

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if st.HitRate != 33.33 {
		t.Fatalf("hit rate=%v want 33.33", st.HitRate)
	}
}

func TestHitRateRounding(t *testing.T) {
	cases := []struct {
		h, m uint64
		want float64
	}{
		{0, 0, 0},
		{0, 5, 0},
		{5, 0, 100},
		{2, 1, 66.67},
		{1, 7, 12.5},
		{1, 2, 33.33},
	}
	for _, tc := range cases {
		if got := hitRate(tc.h, tc.m); got != tc.want {
			t.Fatalf("hitRate(%d,%d)=%v want %v", tc.h, tc.m, got, tc.want)
		}
	}
}

func TestClearAllIsIdempotent(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	mustSet(t, c, "s", Params{"q": 1}, 1, time.Minute)
	mustGet(t, c, "s", Params{"q": 1})
	mustGet(t, c, "s", Params{"q": 2})

	c.ClearAll()
	first := c.Stats()
	c.ClearAll()
	second := c.Stats()
	if first != (Stats{}) || second != (Stats{}) {
		t.Fatalf("ClearAll should zero everything: first=%+v second=%+v", first, second)
	}
}

func TestClearByPrefix(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	mustSet(t, c, "search", Params{"q": "brown"}, 1, time.Minute)
	mustSet(t, c, "search", Params{"q": "green"}, 2, time.Minute)
	mustSet(t, c, "searchable", Params{"q": "brown"}, 3, time.Minute)
	mustSet(t, c, "user", Params{"id": 1}, 4, time.Minute)
	mustGet(t, c, "user", Params{"id": 1})

	if n := c.ClearByPrefix("search"); n != 2 {
		t.Fatalf("removed=%d want 2", n)
	}
	if n := c.ClearByPrefix("missing"); n != 0 {
		t.Fatalf("removed=%d want 0", n)
	}
	st := c.Stats()
	if st.Size != 2 || st.Hits != 1 || st.Misses != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if _, ok := mustGet(t, c, "searchable", Params{"q": "brown"}); !ok {
		t.Fatalf("'searchable:' does not start with 'search:' and must survive")
	}
	if _, ok := mustGet(t, c, "user", Params{"id": 1}); !ok {
		t.Fatalf("unrelated prefix must survive")
	}
}

func TestCleanupRemovesOnlyExpired(t *testing.T) {
	c, mock, hooks := newTestCache(t, nil)

	mustSet(t, c, "s", Params{"q": "short"}, 1, time.Second)
	mustSet(t, c, "s", Params{"q": "long"}, 2, time.Hour)
	mock.Add(2 * time.Second)

	if n := c.Cleanup(); n != 1 {
		t.Fatalf("Cleanup removed %d want 1", n)
	}
	st := c.Stats()
	if st.Size != 1 || st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if got := hooks.expired[ExpiredOnSweep]; len(got) != 1 || got[0] != `s:q="short"` {
		t.Fatalf("sweep hook=%v", got)
	}
	if n := c.Cleanup(); n != 0 {
		t.Fatalf("second Cleanup removed %d", n)
	}
}

func TestCleanupLoopRunsOnInterval(t *testing.T) {
	c, mock, _ := newTestCache(t, func(o *Options) { o.CleanupInterval = time.Minute })

	mustSet(t, c, "s", Params{"q": 1}, 1, 10*time.Second)
	mustSet(t, c, "s", Params{"q": 2}, 2, time.Hour)

	mock.Add(time.Minute)
	waitFor(t, "sweep to drop the expired entry", func() bool { return c.Stats().Size == 1 })
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("sweep must not touch stats: %+v", st)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, _, _ := newTestCache(t, func(o *Options) { o.CleanupInterval = time.Minute })
	ctx := context.Background()
	if err := c.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	mustSet(t, c, "s", nil, 1, time.Minute)
	if _, ok := mustGet(t, c, "s", nil); !ok {
		t.Fatalf("cache should stay usable after Close")
	}
}

func TestDelete(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	mustSet(t, c, "case", Params{"id": "1"}, 1, time.Minute)
	ok, err := c.Delete("case", Params{"id": "1"})
	if err != nil || !ok {
		t.Fatalf("Delete ok=%v err=%v", ok, err)
	}
	if ok, _ := c.Delete("case", Params{"id": "1"}); ok {
		t.Fatalf("second Delete should report false")
	}
	if st := c.Stats(); st.Size != 0 || st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestUnserializableParams(t *testing.T) {
	c, _, _ := newTestCache(t, nil)

	bad := Params{"ch": make(chan int)}
	_, _, err := c.Get("search", bad)
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Param != "ch" || ke.Prefix != "search" {
		t.Fatalf("expected *KeyError for param ch, got %v", err)
	}
	if err := c.Set("search", bad, 1, 0); !errors.As(err, &ke) {
		t.Fatalf("Set: expected *KeyError, got %v", err)
	}
	if st := c.Stats(); st != (Stats{}) {
		t.Fatalf("failed key generation must not touch stats: %+v", st)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{MaxSize: -1}); err == nil {
		t.Fatalf("negative MaxSize should be rejected")
	}
	if _, err := New(Options{DefaultTTL: -time.Second}); err == nil {
		t.Fatalf("negative DefaultTTL should be rejected")
	}
	c, err := New(Options{CleanupInterval: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(context.Background())
	if c.maxSize != DefaultMaxSize || c.defaultTTL != DefaultTTL {
		t.Fatalf("defaults not applied: max=%d ttl=%s", c.maxSize, c.defaultTTL)
	}
	if c.stopCh != nil {
		t.Fatalf("negative CleanupInterval should disable the sweep loop")
	}
}

func TestJoinHooksFansOut(t *testing.T) {
	a, b := newRecHooks(), newRecHooks()
	h := JoinHooks(a, nil, b)
	h.Evicted("k")
	h.Expired("k", ExpiredOnSweep)
	h.FetchFailed("p", fmt.Errorf("boom"))
	h.RemoteError("get", "k", fmt.Errorf("down"))
	h.RemoteSelfHeal("k", "corrupt")
	for i, r := range []*recHooks{a, b} {
		if len(r.evicted) != 1 || len(r.expired[ExpiredOnSweep]) != 1 || len(r.fetchFailed) != 1 ||
			len(r.remoteOps) != 1 || len(r.selfHeals) != 1 {
			t.Fatalf("hooks[%d] missed events: %+v", i, r)
		}
	}
}
