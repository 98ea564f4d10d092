package decay_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/decay"
)

func TestPool_Drain(t *testing.T) {
	tests := map[string]struct {
		start, step, floor int64
		drains             int
		want               int64
	}{
		"should decrement by step": {
			start: 1000, step: 1, floor: 100, drains: 10, want: 990,
		},
		"should stop at floor": {
			start: 105, step: 1, floor: 100, drains: 50, want: 100,
		},
		"should clamp a step that crosses the floor": {
			start: 103, step: 5, floor: 100, drains: 1, want: 100,
		},
		"should not move a pool already below floor": {
			start: 50, step: 1, floor: 100, drains: 3, want: 50,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := decay.NewPool(tt.start)
			for range tt.drains {
				p.Drain(tt.step, tt.floor)
			}
			assert.Equal(t, tt.want, p.Value())
		})
	}
}

func TestPool_ConcurrentDrainNeverCrossesFloor(t *testing.T) {
	p := decay.NewPool(1000)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Drain(3, 100)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(100), p.Value())
}

func TestProcess(t *testing.T) {
	ft := newFakeTicker()
	ticked := make(chan int64)

	pool := decay.NewPool(1000)
	p := decay.NewProcess(decay.Config{
		Interval:      100 * time.Millisecond,
		Step:          1,
		Floor:         998,
		NewTickerFunc: func(time.Duration) decay.Ticker { return ft },
		OnTick:        func(v int64) { ticked <- v },
	}, pool)

	require.NoError(t, p.Start())
	require.ErrorIs(t, p.Start(), decay.ErrAlreadyRunning, "a second start should be rejected")

	for _, want := range []int64{999, 998, 998, 998} {
		ft.c <- time.Now()
		require.Equal(t, want, <-ticked)
	}

	p.Stop()
	<-p.Done()
	require.False(t, p.Running())
	require.True(t, ft.stopped())

	p.Stop()

	pool.Reset(1000)
	require.NoError(t, p.Start(), "a stopped process should start again")
	p.Stop()
	<-p.Done()
	require.Equal(t, int64(1000), pool.Value())
}

type fakeTicker struct {
	c  chan time.Time
	mu sync.Mutex
	s  bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{c: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.s = true
	f.mu.Unlock()
}

func (f *fakeTicker) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}
