package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultPoolSize = 10000
	defaultTimeout  = 30 * time.Second
)

type Event interface {
	Name() string
}

// Keyed is an event that belongs to an ordered stream, such as a session room.
// Handlers for events sharing a key run one at a time, in publish order.
type Keyed interface {
	Event
	Key() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory event bus.
type Bus struct {
	pool     chan struct{}
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]Handler

	qmu    sync.Mutex
	queues map[string]*queue
}

type queue struct {
	jobs []job
}

type job struct {
	ctx context.Context
	h   Handler
	e   Event
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus() *Bus {
	return &Bus{
		pool:     make(chan struct{}, defaultPoolSize),
		wg:       new(sync.WaitGroup),
		handlers: make(map[string][]Handler),
		queues:   make(map[string]*queue),
	}
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish an event. Publishing a Keyed event never blocks the caller.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if k, ok := e.(Keyed); ok {
		b.enqueue(ctx, k.Key(), b.handlers[e.Name()], e)
		return
	}

	for _, h := range b.handlers[e.Name()] {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) enqueue(ctx context.Context, key string, hs []Handler, e Event) {
	if len(hs) == 0 {
		return
	}

	b.qmu.Lock()
	defer b.qmu.Unlock()

	q, running := b.queues[key]
	if !running {
		q = &queue{}
		b.queues[key] = q
	}

	for _, h := range hs {
		b.wg.Add(1)
		q.jobs = append(q.jobs, job{ctx: ctx, h: h, e: e})
	}

	if !running {
		go b.drain(key, q)
	}
}

func (b *Bus) drain(key string, q *queue) {
	for {
		b.qmu.Lock()
		if len(q.jobs) == 0 {
			delete(b.queues, key)
			b.qmu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		b.qmu.Unlock()

		b.pool <- struct{}{}
		b.run(j.ctx, j.h, j.e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)

	b.pool <- struct{}{}

	go b.run(ctx, h, e)
}

// run executes h holding a pool slot acquired by the caller.
func (b *Bus) run(ctx context.Context, h Handler, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", e.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}

		cancel()
		<-b.pool
		b.wg.Done()
	}()

	if err := h(ctx, e); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", e.Name(),
			"error", err,
		)
	}
}

// Stop waits for all handlers to finish
func (b *Bus) Stop() {
	b.wg.Wait()
}
