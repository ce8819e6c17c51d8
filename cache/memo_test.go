package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoGetWithinTTL(t *testing.T) {
	memo := NewMemo[string](time.Minute)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "proxy-a", nil
	}

	v, ok := memo.Get(compute)
	if !ok || v != "proxy-a" {
		t.Fatalf("Expected (proxy-a, true), got (%q, %v)", v, ok)
	}

	v, ok = memo.Get(compute)
	if !ok || v != "proxy-a" {
		t.Fatalf("Expected cached (proxy-a, true), got (%q, %v)", v, ok)
	}

	if calls != 1 {
		t.Errorf("Expected compute to run exactly once within TTL, ran %d times", calls)
	}
}

func TestMemoRecomputesAfterExpiry(t *testing.T) {
	memo := NewMemo[string](10 * time.Millisecond)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "proxy-a", nil
	}

	memo.Get(compute)
	time.Sleep(20 * time.Millisecond)
	memo.Get(compute)

	if calls != 2 {
		t.Errorf("Expected compute to run again after expiry, ran %d times", calls)
	}
}

func TestMemoFailureClearsSlot(t *testing.T) {
	memo := NewMemo[string](time.Minute)

	_, ok := memo.Get(func() (string, error) {
		return "", errors.New("no proxy reachable")
	})
	if ok {
		t.Fatal("Expected Get to report failure when compute fails")
	}

	// Next caller must retry, not observe a stale empty value.
	v, ok := memo.Get(func() (string, error) {
		return "proxy-b", nil
	})
	if !ok || v != "proxy-b" {
		t.Fatalf("Expected retry to succeed with (proxy-b, true), got (%q, %v)", v, ok)
	}
}

func TestMemoSingleFlight(t *testing.T) {
	memo := NewMemo[string](time.Minute)
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func() (string, error) {
		calls.Add(1)
		close(started)
		<-release
		return "proxy-a", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, ok := memo.Get(compute)
			if ok {
				results[i] = v
			}
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly one concurrent compute invocation, got %d", got)
	}
	for i, v := range results {
		if v != "proxy-a" {
			t.Errorf("Caller %d observed %q, expected shared value proxy-a", i, v)
		}
	}
}

func TestMemoInvalidate(t *testing.T) {
	memo := NewMemo[string](time.Minute)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "proxy-a", nil
	}

	memo.Get(compute)
	memo.Invalidate()
	memo.Get(compute)

	if calls != 2 {
		t.Errorf("Expected compute to run after Invalidate, ran %d times", calls)
	}
}
