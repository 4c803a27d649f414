package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrComputeStoresValue(t *testing.T) {
	c := New[string](10, time.Minute, true)

	calls := 0
	v, err := c.GetOrCompute("k", func() (string, error) {
		calls++
		return "value", nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if v != "value" {
		t.Fatalf("expected value, got %q", v)
	}

	v, err = c.GetOrCompute("k", func() (string, error) {
		calls++
		return "other", nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute() second call error = %v", err)
	}
	if v != "value" {
		t.Fatalf("expected cached value, got %q", v)
	}
	if calls != 1 {
		t.Fatalf("expected 1 loader call, got %d", calls)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New[int](10, time.Minute, true)

	_, err := c.GetOrCompute("k", func() (int, error) {
		return 0, errors.New("loader failed")
	})
	if err == nil {
		t.Fatalf("expected loader error")
	}

	v, err := c.GetOrCompute("k", func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute() after error = %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestConcurrentGetOrComputeCoalesces(t *testing.T) {
	c := New[string](10, time.Minute, true)

	var calls atomic.Int32
	gate := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			v, err := c.GetOrCompute("shared", func() (string, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "computed", nil
			})
			if err != nil || v != "computed" {
				t.Errorf("GetOrCompute() = %q, %v", v, err)
			}
		}()
	}
	close(gate)
	wg.Wait()

	if got := calls.Load(); got < 1 || got > 2 {
		t.Fatalf("expected coalesced loader runs, got %d", got)
	}
}

func TestEvictsBeyondMaxSize(t *testing.T) {
	c := New[int](2, time.Minute, true)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	present := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, ok := c.Get(k); ok {
			present++
		}
	}
	if present != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", present)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected oldest entry evicted first")
	}
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	c := New[int](10, 20*time.Millisecond, true)
	c.Put("k", 7)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected entry before TTL")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry gone after TTL")
	}
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := New[string](10, time.Minute, false)

	c.Put("k", "value")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("disabled cache must not store values")
	}

	calls := 0
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", func() (string, error) {
			calls++
			return "loaded", nil
		})
		if err != nil || v != "loaded" {
			t.Fatalf("GetOrCompute() = %q, %v", v, err)
		}
	}
	if calls != 3 {
		t.Fatalf("disabled cache must delegate every call, got %d loader calls", calls)
	}
}
