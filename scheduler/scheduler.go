package scheduler

import (
	"context"
	"errors"
	"music-bot-go/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// GuestKey is the shared pool key for users without a dedicated queue.
const GuestKey = "guest"

// ErrQueueFull is returned when a key's queue is at capacity. The request is
// dropped; admission never blocks the producer.
var ErrQueueFull = errors.New("request queue is full")

// Request is one unit of inbound work: the text to classify plus an opaque
// payload the handler knows how to interpret. Consumed exactly once.
type Request struct {
	Key     string
	Text    string
	Payload interface{}
}

// Handler processes a dequeued request. At most one invocation per key is in
// flight at any time.
type Handler interface {
	Handle(ctx context.Context, req Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) error

func (f HandlerFunc) Handle(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Options configures a Dispatcher.
type Options struct {
	Capacity        int           // bounded queue size per key
	MinSpacing      time.Duration // minimum gap between a completion and the next dispatch
	CriticalBackoff time.Duration // pause after a failure escaping the per-request boundary
	IdleTimeout     time.Duration // tear down a worker after this long without traffic

	// OnHandlerError is invoked when a handler returns an error or panics.
	// Used to report a generic failure to the request's originator.
	OnHandlerError func(req Request, err error)
}

// Dispatcher admits requests into per-key bounded queues, each drained by a
// dedicated worker that enforces minimum spacing between dispatches. Queues
// and workers are created lazily on first arrival and torn down again after
// IdleTimeout without traffic.
type Dispatcher struct {
	opts    Options
	handler Handler

	mu     sync.Mutex
	queues map[string]*keyQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type keyQueue struct {
	key string
	ch  chan Request

	// lastDone is only written by this queue's worker; it is initialized at
	// creation so the very first dispatch is not delayed.
	lastDone time.Time
}

// New creates a dispatcher that routes dequeued requests to handler.
func New(handler Handler, opts Options) *Dispatcher {
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.MinSpacing <= 0 {
		opts.MinSpacing = 5 * time.Second
	}
	if opts.CriticalBackoff <= 0 {
		opts.CriticalBackoff = 5 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		opts:    opts,
		handler: handler,
		queues:  make(map[string]*keyQueue),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue admits a request under its key, creating the queue and worker on
// first arrival. Returns ErrQueueFull when the queue is at capacity. The
// busy result reports whether other requests were already waiting, so the
// caller can emit a best-effort "queued" notice.
func (d *Dispatcher) Enqueue(req Request) (busy bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[req.Key]
	if !ok {
		q = &keyQueue{
			key:      req.Key,
			ch:       make(chan Request, d.opts.Capacity),
			lastDone: time.Now().Add(-d.opts.MinSpacing),
		}
		d.queues[req.Key] = q
		d.wg.Add(1)
		go d.runWorker(q)
		log.Infof("%s Created queue and worker for key %q", logcolors.LogQueue, req.Key)
	}

	busy = len(q.ch) > 0
	select {
	case q.ch <- req:
		return busy, nil
	default:
		log.Warnf("%s Queue for key %q is full, dropping request", logcolors.LogQueue, req.Key)
		return false, ErrQueueFull
	}
}

// QueueLen returns the number of requests waiting under key.
func (d *Dispatcher) QueueLen(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[key]; ok {
		return len(q.ch)
	}
	return 0
}

// ActiveKeys returns the keys that currently have a live queue.
func (d *Dispatcher) ActiveKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.queues))
	for k := range d.queues {
		keys = append(keys, k)
	}
	return keys
}

// Close stops all workers and waits for them to exit. Requests still queued
// are dropped.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(q *keyQueue) {
	defer d.wg.Done()
	log.Infof("%s Worker started for key %q", logcolors.LogWorker, q.key)

	idle := time.NewTimer(d.opts.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case req := <-q.ch:
			d.runOne(q, req)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.opts.IdleTimeout)

		case <-idle.C:
			if d.tearDownIfIdle(q) {
				log.Infof("%s Worker for key %q idle for %v, tearing down", logcolors.LogWorker, q.key, d.opts.IdleTimeout)
				return
			}
			idle.Reset(d.opts.IdleTimeout)

		case <-d.ctx.Done():
			return
		}
	}
}

// tearDownIfIdle removes the queue from the admission map if it is still
// empty. Admission holds the same lock while pushing, so a request admitted
// concurrently either lands before the check (worker keeps running) or finds
// the map entry gone and creates a fresh queue.
func (d *Dispatcher) tearDownIfIdle(q *keyQueue) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(q.ch) > 0 {
		return false
	}
	delete(d.queues, q.key)
	return true
}

// runOne processes a single request: spacing, dispatch, cleanup. A failure
// escaping the per-request boundary must not kill the worker; it is logged
// and followed by a fixed backoff.
func (d *Dispatcher) runOne(q *keyQueue, req Request) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s Critical failure in worker for key %q: %v", logcolors.LogWorker, q.key, r)
			d.sleep(d.opts.CriticalBackoff)
		}
	}()

	if elapsed := time.Since(q.lastDone); elapsed < d.opts.MinSpacing {
		d.sleep(d.opts.MinSpacing - elapsed)
	}

	// The timestamp update runs whether the handler succeeded or not.
	defer func() {
		q.lastDone = time.Now()
	}()

	err := d.dispatch(req)
	if err != nil {
		log.Errorf("%s Handler failed for key %q: %v", logcolors.LogWorker, q.key, err)
		if d.opts.OnHandlerError != nil {
			d.opts.OnHandlerError(req, err)
		}
	}
}

// dispatch invokes the handler with a panic boundary so one bad request is
// reported like any other handler error.
func (d *Dispatcher) dispatch(req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorFromPanic(r)
		}
	}()
	return d.handler.Handle(d.ctx, req)
}

func (d *Dispatcher) sleep(dur time.Duration) {
	select {
	case <-time.After(dur):
	case <-d.ctx.Done():
	}
}

func errorFromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("handler panic")
}
