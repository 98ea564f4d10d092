// Package decay drains a session's score pool over time once answering begins.
package decay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const defaultInterval = 100 * time.Millisecond

var ErrAlreadyRunning = errors.New("decay: process already running")

// Pool is the score available to the next correct answer. It is safe for concurrent use.
type Pool struct {
	v atomic.Int64
}

func NewPool(start int64) *Pool {
	p := new(Pool)
	p.Reset(start)
	return p
}

func (p *Pool) Reset(v int64) { p.v.Store(v) }

func (p *Pool) Value() int64 { return p.v.Load() }

// Drain decrements the pool by step unless that would take it below floor.
// It reports whether the pool changed.
func (p *Pool) Drain(step, floor int64) bool {
	for {
		cur := p.v.Load()
		if cur <= floor {
			return false
		}

		next := max(cur-step, floor)
		if p.v.CompareAndSwap(cur, next) {
			return true
		}
	}
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Config struct {
	Interval time.Duration
	Step     int64
	Floor    int64

	// NewTickerFunc overrides the ticker, tests use it to drive ticks by hand.
	NewTickerFunc func(d time.Duration) Ticker

	// OnTick is called after every tick with the pool value, if set.
	OnTick func(v int64)
}

// Process is a cancellable repeating task draining one Pool.
// A Process may be started again after it has been stopped.
type Process struct {
	c    Config
	pool *Pool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewProcess(c Config, pool *Pool) *Process {
	if c.NewTickerFunc == nil {
		c.NewTickerFunc = newTimeTicker
	}
	if c.Step <= 0 {
		c.Step = 1
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}

	return &Process{
		c:    c,
		pool: pool,
	}
}

// Start begins draining. Starting a running process returns ErrAlreadyRunning.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return ErrAlreadyRunning
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(p.c.NewTickerFunc(p.c.Interval), p.stop, p.done)
	return nil
}

// Stop asks the process to halt and returns immediately. A tick already in flight may still complete.
func (p *Process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}

	close(p.stop)
	p.stop = nil
}

// Running reports whether the process has been started and not stopped.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stop != nil
}

// Done returns a channel closed when the most recently started loop exits.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}

	return p.done
}

func (p *Process) loop(t Ticker, stop, done chan struct{}) {
	defer close(done)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			p.pool.Drain(p.c.Step, p.c.Floor)
			if p.c.OnTick != nil {
				p.c.OnTick(p.pool.Value())
			}
		}
	}
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop() { t.t.Stop() }
