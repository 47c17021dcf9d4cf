// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock pinned to initial. Time moves only through
// Advance, so a test can register a thirty-second dial timeout and fire
// it instantly.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{current: initial}
	fake.registered = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is the deterministic Clock for tests. Timers, tickers, and
// sleeps park until Advance carries the clock past their deadline.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order. Calling Advance or Sleep from inside such a callback
// deadlocks; don't.
//
// Safe for concurrent use.
type FakeClock struct {
	mu         sync.Mutex
	current    time.Time
	pending    []*waiter
	registered *sync.Cond
}

// waiter is one parked timer, ticker, or sleep.
type waiter struct {
	deadline time.Time

	// ch receives the fire time for After, Sleep, and ticker waiters;
	// nil for AfterFunc waiters.
	ch chan time.Time

	// fn runs synchronously during Advance for AfterFunc waiters; nil
	// otherwise.
	fn func()

	// interval is non-zero for tickers: after firing, the waiter is
	// rescheduled at deadline + interval.
	interval time.Duration

	// stopped waiters are skipped and dropped on the next Advance.
	stopped bool

	// fired marks one-shot waiters so overlapping Advance calls can't
	// fire them twice.
	fired bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once Advance passes d from now.
// If d <= 0 it receives immediately without registering a waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.pending = append(c.pending, &waiter{deadline: c.current.Add(d), ch: ch})
	c.registered.Broadcast()
	return ch
}

// AfterFunc schedules f at now+d. If d <= 0, f runs synchronously
// before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()

	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	w := &waiter{deadline: c.current.Add(d), fn: f}
	c.pending = append(c.pending, w)
	c.registered.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w.stopped || w.fired {
				return false
			}
			w.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasPending := !w.stopped && !w.fired
			w.stopped = false
			w.fired = false
			w.deadline = c.current.Add(d)
			if !wasPending {
				// It was removed from pending after firing; put it back.
				c.pending = append(c.pending, w)
				c.registered.Broadcast()
			}
			return wasPending
		},
	}
}

// NewTicker returns a Ticker firing every d fake-time units. Panics if
// d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	w := &waiter{deadline: c.current.Add(d), ch: ch, interval: d}
	c.pending = append(c.pending, w)
	c.registered.Broadcast()

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			w.stopped = true
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			w.interval = d
			w.deadline = c.current.Add(d)
			w.stopped = false
		},
	}
}

// Sleep parks the calling goroutine until Advance passes d from now.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires everything whose
// deadline falls within the new time, in deadline order. Channel sends
// are non-blocking (a lagging ticker consumer drops ticks, same as
// time.Ticker). Tickers spanning several intervals fire once per
// interval.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}

		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})

		for _, w := range due {
			switch {
			case w.fn != nil:
				w.fn()
			case w.ch != nil:
				select {
				case w.ch <- target:
				default:
				}
			}
		}
	}
}

// takeDue removes due waiters from pending, reschedules tickers, and
// returns what should fire. Acquires c.mu itself.
func (c *FakeClock) takeDue(target time.Time) []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, rest []*waiter
	for _, w := range c.pending {
		if w.stopped {
			continue
		}
		if !w.deadline.After(target) {
			due = append(due, w)
		} else {
			rest = append(rest, w)
		}
	}

	for _, w := range due {
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
			rest = append(rest, w)
		} else {
			w.fired = true
		}
	}

	c.pending = rest
	return due
}

// WaitForTimers blocks until at least n waiters are pending. It closes
// the race between a goroutine under test registering its timeout and
// the test advancing the clock:
//
//	go transport.Connect(ctx)        // registers the dial timeout
//	fake.WaitForTimers(1)            // wait for the registration
//	fake.Advance(30 * time.Second)   // deterministically time out
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of live (not stopped) waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, w := range c.pending {
		if !w.stopped {
			count++
		}
	}
	return count
}
