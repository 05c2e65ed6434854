package app

import (
	"context"
	"sync"
	"time"
)

// TimerEventKind distinguishes countdown refreshes from expiry.
type TimerEventKind string

const (
	TimerTick    TimerEventKind = "tick"
	TimerExpired TimerEventKind = "expired"
)

// TimerEvent is emitted by a Countdown for one question.
type TimerEvent struct {
	Kind       TimerEventKind
	Index      int
	Generation uint64
	Remaining  int
}

// Cadence decides whether a tick with remaining seconds is worth an update.
type Cadence func(remaining, budget int) bool

// DefaultCadence refreshes at the start, every 5 seconds after it, and on
// every tick of the last 5 seconds.
func DefaultCadence(remaining, budget int) bool {
	return remaining == budget || remaining <= 5 || (budget-remaining)%5 == 0
}

// TickerFactory returns a tick source and a function releasing it.
type TickerFactory func(interval time.Duration) (<-chan time.Time, func())

// RealTicker backs countdowns with time.Ticker.
func RealTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Countdown times one question. Live is consulted on every tick; once it
// reports false the countdown stops without emitting anything.
type Countdown struct {
	Index      int
	Generation uint64
	Budget     int
	Live       func(generation uint64) bool
}

// Run consumes ticks until the budget is spent, ctx is done or the question
// is no longer live.
func (c Countdown) Run(ctx context.Context, ticks <-chan time.Time, cadence Cadence, emit func(TimerEvent)) {
	if c.Budget <= 0 || !c.live() {
		return
	}
	if cadence == nil {
		cadence = DefaultCadence
	}
	remaining := c.Budget
	emit(c.event(TimerTick, remaining))
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			remaining--
			if !c.live() {
				return
			}
			if remaining <= 0 {
				emit(c.event(TimerExpired, 0))
				return
			}
			if cadence(remaining, c.Budget) {
				emit(c.event(TimerTick, remaining))
			}
		}
	}
}

func (c Countdown) live() bool {
	return c.Live == nil || c.Live(c.Generation)
}

func (c Countdown) event(kind TimerEventKind, remaining int) TimerEvent {
	return TimerEvent{Kind: kind, Index: c.Index, Generation: c.Generation, Remaining: remaining}
}

// TimerCoordinator runs at most one countdown goroutine per session key.
// Starting a countdown for a key cancels the one it replaces.
type TimerCoordinator struct {
	interval  time.Duration
	newTicker TickerFactory
	cadence   Cadence

	mu      sync.Mutex
	running map[SessionKey]*timerHandle
	closed  bool
	wg      sync.WaitGroup
}

type timerHandle struct {
	cancel context.CancelFunc
}

func NewTimerCoordinator(interval time.Duration, newTicker TickerFactory, cadence Cadence) *TimerCoordinator {
	if interval <= 0 {
		interval = time.Second
	}
	if newTicker == nil {
		newTicker = RealTicker
	}
	if cadence == nil {
		cadence = DefaultCadence
	}
	return &TimerCoordinator{
		interval:  interval,
		newTicker: newTicker,
		cadence:   cadence,
		running:   make(map[SessionKey]*timerHandle),
	}
}

// Start launches cd for key. Budgets of zero mean no time limit.
func (c *TimerCoordinator) Start(key SessionKey, cd Countdown, emit func(TimerEvent)) {
	if cd.Budget <= 0 {
		c.Cancel(key)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle := &timerHandle{cancel: cancel}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := c.running[key]; ok {
		prev.cancel()
	}
	c.running[key] = handle
	c.wg.Add(1)
	c.mu.Unlock()

	ticks, stop := c.newTicker(c.interval)
	go func() {
		defer c.wg.Done()
		defer stop()
		defer c.release(key, handle)
		cd.Run(ctx, ticks, c.cadence, emit)
	}()
}

// Cancel abandons the countdown running for key, if any.
func (c *TimerCoordinator) Cancel(key SessionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.running[key]; ok {
		h.cancel()
		delete(c.running, key)
	}
}

// Active returns the number of running countdowns.
func (c *TimerCoordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

// Stop cancels every countdown and waits for their goroutines to exit.
func (c *TimerCoordinator) Stop() {
	c.mu.Lock()
	c.closed = true
	for key, h := range c.running {
		h.cancel()
		delete(c.running, key)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *TimerCoordinator) release(key SessionKey, handle *timerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[key] == handle {
		delete(c.running, key)
	}
	handle.cancel()
}
