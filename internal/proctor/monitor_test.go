package proctor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memCounter struct {
	mu    sync.Mutex
	count int
}

func (c *memCounter) Increment(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count, nil
}

func (c *memCounter) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

type exitRecorder struct {
	mu        sync.Mutex
	exits     []int
	overLimit []bool
	expired   chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{expired: make(chan int, 1)}
}

func (r *exitRecorder) onExit(count int, overLimit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, count)
	r.overLimit = append(r.overLimit, overLimit)
}

func (r *exitRecorder) onExpire(count int) {
	r.expired <- count
}

func TestMonitorCountsSecureModeExits(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, time.Hour, 3, zerolog.Nop())
	m.OnExit = rec.onExit
	m.OnExpire = rec.onExpire
	defer m.Stop()

	ctx := context.Background()

	// Leaving fullscreen is one exit; staying out is not another.
	m.Update(ctx, false, true, true)
	m.Update(ctx, false, false, true)

	// Return, then hide the tab: a second exit.
	m.Update(ctx, true, true, true)
	m.Update(ctx, true, false, true)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.exits) != 2 {
		t.Fatalf("exit callbacks = %d, want 2", len(rec.exits))
	}
	if rec.exits[0] != 1 || rec.exits[1] != 2 {
		t.Errorf("exit counts = %v, want [1 2]", rec.exits)
	}
	if rec.overLimit[0] || rec.overLimit[1] {
		t.Error("overLimit raised below the ceiling")
	}
}

func TestMonitorOverLimitFlag(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, time.Hour, 2, zerolog.Nop())
	m.OnExit = rec.onExit
	defer m.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.Update(ctx, false, true, true)
		m.Update(ctx, true, true, true)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.exits) != 3 {
		t.Fatalf("exit callbacks = %d, want 3", len(rec.exits))
	}
	// Third exit crosses the ceiling of 2.
	if rec.overLimit[0] || rec.overLimit[1] || !rec.overLimit[2] {
		t.Errorf("overLimit flags = %v, want [false false true]", rec.overLimit)
	}
}

func TestMonitorGraceExpiryFiresOnExpire(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, 20*time.Millisecond, 3, zerolog.Nop())
	m.OnExit = rec.onExit
	m.OnExpire = rec.onExpire
	defer m.Stop()

	m.Update(context.Background(), false, true, true)

	select {
	case count := <-rec.expired:
		if count != 1 {
			t.Errorf("expire count = %d, want 1", count)
		}
	case <-time.After(time.Second):
		t.Fatal("grace countdown never expired")
	}
}

func TestMonitorReturnCancelsCountdown(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, 30*time.Millisecond, 3, zerolog.Nop())
	m.OnExit = rec.onExit
	m.OnExpire = rec.onExpire
	defer m.Stop()

	ctx := context.Background()
	m.Update(ctx, false, true, true)
	m.Update(ctx, true, true, true) // back before the grace elapses

	select {
	case <-rec.expired:
		t.Fatal("countdown fired despite returning to secure mode")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorIgnoresExitsWhenNotRunning(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, 10*time.Millisecond, 3, zerolog.Nop())
	m.OnExit = rec.onExit
	m.OnExpire = rec.onExpire
	defer m.Stop()

	m.Update(context.Background(), false, true, false)

	select {
	case <-rec.expired:
		t.Fatal("countdown started for a non-running attempt")
	case <-time.After(50 * time.Millisecond):
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.exits) != 0 {
		t.Errorf("exit recorded for a non-running attempt: %v", rec.exits)
	}
}

func TestMonitorStopSuppressesExpiry(t *testing.T) {
	counter := &memCounter{}
	rec := newExitRecorder()
	m := NewMonitor(counter, 20*time.Millisecond, 3, zerolog.Nop())
	m.OnExit = rec.onExit
	m.OnExpire = rec.onExpire

	m.Update(context.Background(), false, true, true)
	m.Stop()

	select {
	case <-rec.expired:
		t.Fatal("countdown fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
