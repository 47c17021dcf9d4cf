// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(time.Minute)
	if got := fake.Now(); !got.Equal(epoch.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v, want %v", got, epoch.Add(time.Minute))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	ch := fake.After(30 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(30 * time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(30 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, epoch.Add(30*time.Second))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterImmediateForNonPositive(t *testing.T) {
	fake := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-fake.After(d):
		default:
			t.Errorf("After(%v) did not fire immediately", d)
		}
	}
}

func TestFakeAfterPartialAdvance(t *testing.T) {
	fake := Fake(epoch)
	ch := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired one second early")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("did not fire at the deadline")
	}
}

func TestFakeAfterFunc(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	fake.AfterFunc(5*time.Second, func() { calls.Add(1) })

	fake.Advance(4 * time.Second)
	if calls.Load() != 0 {
		t.Fatal("callback ran early")
	}
	fake.Advance(time.Second)
	if calls.Load() != 1 {
		t.Fatalf("callback ran %d times, want 1", calls.Load())
	}
	// One-shot: further advances must not re-fire.
	fake.Advance(10 * time.Second)
	if calls.Load() != 1 {
		t.Fatalf("one-shot fired again, total %d", calls.Load())
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	timer := fake.AfterFunc(5*time.Second, func() { calls.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop on pending timer = false, want true")
	}
	fake.Advance(time.Minute)
	if calls.Load() != 0 {
		t.Fatal("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatal("second Stop = true, want false")
	}
}

func TestFakeAfterFuncResetAfterFire(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	timer := fake.AfterFunc(time.Second, func() { calls.Add(1) })

	fake.Advance(time.Second)
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	if timer.Reset(time.Second) {
		t.Error("Reset after fire = true, want false")
	}
	fake.Advance(time.Second)
	if calls.Load() != 2 {
		t.Fatalf("calls after re-arm = %d, want 2", calls.Load())
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// An advance spanning three intervals delivers at most the channel
	// capacity (1) per loop pass, but the clock refires until drained.
	for i := 0; i < 3; i++ {
		fake.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
}

func TestFakeTickerStopAndReset(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)

	ticker.Stop()
	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker ticked")
	default:
	}

	ticker.Reset(2 * time.Second)
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("reset ticker fired before its new interval")
	default:
	}
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("reset ticker did not fire at the new interval")
	}
}

func TestFakeTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeSleepParksUntilAdvance(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})

	go func() {
		fake.Sleep(10 * time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(10 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep never woke up")
	}
}

func TestFakeMultipleTimersFireInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var mu sync.Mutex
	var order []int

	fake.AfterFunc(3*time.Second, func() { mu.Lock(); order = append(order, 3); mu.Unlock() })
	fake.AfterFunc(1*time.Second, func() { mu.Lock(); order = append(order, 1); mu.Unlock() })
	fake.AfterFunc(2*time.Second, func() { mu.Lock(); order = append(order, 2); mu.Unlock() })

	fake.Advance(5 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakePendingCount(t *testing.T) {
	fake := Fake(epoch)
	fake.After(time.Second)
	timer := fake.AfterFunc(time.Second, func() {})
	if got := fake.PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}
	timer.Stop()
	if got := fake.PendingCount(); got != 1 {
		t.Fatalf("PendingCount after Stop = %d, want 1", got)
	}
	fake.Advance(time.Second)
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after Advance = %d, want 0", got)
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}

func TestFakeConcurrentAccess(t *testing.T) {
	fake := Fake(epoch)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := fake.After(time.Millisecond)
			fake.Advance(time.Millisecond)
			<-ch
		}()
	}
	wg.Wait()
}
