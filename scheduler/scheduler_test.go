package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// collectHandler records handled requests and optionally blocks until
// released, so tests can control when a worker finishes a request.
type collectHandler struct {
	mu      sync.Mutex
	handled []Request
	block   chan struct{}
	err     error
}

func (h *collectHandler) Handle(_ context.Context, req Request) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.handled = append(h.handled, req)
	h.mu.Unlock()
	return h.err
}

func (h *collectHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestDispatcherHandlesRequest(t *testing.T) {
	h := &collectHandler{}
	d := New(h, Options{MinSpacing: time.Millisecond, CriticalBackoff: time.Millisecond})
	defer d.Close()

	busy, err := d.Enqueue(Request{Key: "42", Text: "song name"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if busy {
		t.Error("Expected first request into an empty queue to not report busy")
	}

	waitFor(t, time.Second, func() bool { return h.count() == 1 })
}

func TestDispatcherQueueFull(t *testing.T) {
	h := &collectHandler{block: make(chan struct{})}
	d := New(h, Options{Capacity: 2, MinSpacing: time.Millisecond, CriticalBackoff: time.Millisecond})
	defer d.Close()
	defer close(h.block)

	// The first request is picked up by the worker and parks in the handler;
	// the next two fill the channel.
	for i := 0; i < 3; i++ {
		if _, err := d.Enqueue(Request{Key: "42"}); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		if i == 0 {
			waitFor(t, time.Second, func() bool { return d.QueueLen("42") == 0 })
		}
	}

	if _, err := d.Enqueue(Request{Key: "42"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcherBusyNotice(t *testing.T) {
	h := &collectHandler{block: make(chan struct{})}
	d := New(h, Options{Capacity: 5, MinSpacing: time.Millisecond, CriticalBackoff: time.Millisecond})
	defer d.Close()
	defer close(h.block)

	d.Enqueue(Request{Key: "42"})
	waitFor(t, time.Second, func() bool { return d.QueueLen("42") == 0 })

	// Worker is parked on the first request; this one waits in the channel.
	d.Enqueue(Request{Key: "42"})

	busy, err := d.Enqueue(Request{Key: "42"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !busy {
		t.Error("Expected busy notice when other requests are already waiting")
	}
}

func TestDispatcherSerializesPerKey(t *testing.T) {
	var inFlight, maxInFlight int64
	h := HandlerFunc(func(_ context.Context, _ Request) error {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt64(&maxInFlight, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	})

	var done int64
	d := New(HandlerFunc(func(ctx context.Context, req Request) error {
		err := h.Handle(ctx, req)
		atomic.AddInt64(&done, 1)
		return err
	}), Options{Capacity: 10, MinSpacing: time.Millisecond, CriticalBackoff: time.Millisecond})
	defer d.Close()

	for i := 0; i < 5; i++ {
		if _, err := d.Enqueue(Request{Key: "42"}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	waitFor(t, 5*time.Second, func() bool { return atomic.LoadInt64(&done) == 5 })

	if max := atomic.LoadInt64(&maxInFlight); max != 1 {
		t.Errorf("Expected at most 1 request in flight per key, saw %d", max)
	}
}

func TestDispatcherIndependentKeys(t *testing.T) {
	h := &collectHandler{}
	d := New(h, Options{MinSpacing: time.Millisecond, CriticalBackoff: time.Millisecond})
	defer d.Close()

	d.Enqueue(Request{Key: "1"})
	d.Enqueue(Request{Key: "2"})
	d.Enqueue(Request{Key: GuestKey})

	waitFor(t, time.Second, func() bool { return h.count() == 3 })

	if got := len(d.ActiveKeys()); got != 3 {
		t.Errorf("Expected 3 active queues, got %d", got)
	}
}

func TestDispatcherMinSpacing(t *testing.T) {
	var stamps []time.Time
	var mu sync.Mutex
	h := HandlerFunc(func(_ context.Context, _ Request) error {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return nil
	})

	spacing := 60 * time.Millisecond
	d := New(h, Options{MinSpacing: spacing, CriticalBackoff: time.Millisecond})
	defer d.Close()

	d.Enqueue(Request{Key: "42"})
	d.Enqueue(Request{Key: "42"})

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(stamps) == 2
	})

	mu.Lock()
	gap := stamps[1].Sub(stamps[0])
	mu.Unlock()
	if gap < spacing {
		t.Errorf("Expected at least %v between dispatches, got %v", spacing, gap)
	}
}

func TestDispatcherHandlerErrorReported(t *testing.T) {
	wantErr := errors.New("search failed")
	var reported atomic.Value
	d := New(&collectHandler{err: wantErr}, Options{
		MinSpacing:      time.Millisecond,
		CriticalBackoff: time.Millisecond,
		OnHandlerError: func(req Request, err error) {
			reported.Store(err)
		},
	})
	defer d.Close()

	d.Enqueue(Request{Key: "42"})

	waitFor(t, time.Second, func() bool { return reported.Load() != nil })
	if got := reported.Load().(error); !errors.Is(got, wantErr) {
		t.Errorf("Expected reported error %v, got %v", wantErr, got)
	}
}

func TestDispatcherSurvivesPanic(t *testing.T) {
	calls := int64(0)
	h := HandlerFunc(func(_ context.Context, _ Request) error {
		if atomic.AddInt64(&calls, 1) == 1 {
			panic("malformed payload")
		}
		return nil
	})

	var reports int64
	d := New(h, Options{
		MinSpacing:      time.Millisecond,
		CriticalBackoff: time.Millisecond,
		OnHandlerError: func(req Request, err error) {
			atomic.AddInt64(&reports, 1)
		},
	})
	defer d.Close()

	d.Enqueue(Request{Key: "42"})
	d.Enqueue(Request{Key: "42"})

	// The worker must outlive the panic and process the second request.
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt64(&calls) == 2 })

	if got := atomic.LoadInt64(&reports); got != 1 {
		t.Errorf("Expected 1 error report for the panicking request, got %d", got)
	}
}

func TestDispatcherIdleTeardown(t *testing.T) {
	h := &collectHandler{}
	d := New(h, Options{
		MinSpacing:      time.Millisecond,
		CriticalBackoff: time.Millisecond,
		IdleTimeout:     30 * time.Millisecond,
	})
	defer d.Close()

	d.Enqueue(Request{Key: "42"})
	waitFor(t, time.Second, func() bool { return h.count() == 1 })

	waitFor(t, 2*time.Second, func() bool { return len(d.ActiveKeys()) == 0 })

	// A new request after teardown gets a fresh queue and worker.
	if _, err := d.Enqueue(Request{Key: "42"}); err != nil {
		t.Fatalf("Enqueue after teardown failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.count() == 2 })
}
