package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CounterStore is the durable secure-mode exit counter for one attempt.
// It must survive reconnects and page reloads.
type CounterStore interface {
	Increment(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// Monitor tracks the two proctoring signals (fullscreen active, page
// visible) for a running attempt. Secure mode means both are true.
//
// Leaving secure mode increments the exit counter and starts a grace
// countdown; returning before it elapses cancels it. If the countdown
// expires, OnExpire fires with the final exit count and the attempt is
// auto-submitted by the owner. Crossing MaxExits only raises the warning
// flag passed to OnExit — the countdown alone decides auto-submission.
type Monitor struct {
	mu         sync.Mutex
	fullscreen bool
	visible    bool
	timer      *time.Timer
	stopped    bool

	grace    time.Duration
	maxExits int
	counter  CounterStore

	// OnExit fires on each secure→insecure transition.
	OnExit func(count int, overLimit bool)
	// OnExpire fires when the grace countdown runs out.
	OnExpire func(count int)

	log zerolog.Logger
}

// NewMonitor creates a Monitor. The attempt starts in secure mode: the
// client cannot reach the exam screen without entering fullscreen first.
func NewMonitor(counter CounterStore, grace time.Duration, maxExits int, log zerolog.Logger) *Monitor {
	return &Monitor{
		fullscreen: true,
		visible:    true,
		grace:      grace,
		maxExits:   maxExits,
		counter:    counter,
		log:        log.With().Str("component", "proctor_monitor").Logger(),
	}
}

// Update feeds a fullscreen/visibility observation into the monitor.
// running reports whether the attempt is started and not finished; exits
// observed outside a running attempt are not counted.
func (m *Monitor) Update(ctx context.Context, fullscreen, visible, running bool) {
	m.mu.Lock()

	wasSecure := m.fullscreen && m.visible
	m.fullscreen = fullscreen
	m.visible = visible
	secure := fullscreen && visible

	if m.stopped || !running {
		m.cancelCountdownLocked()
		m.mu.Unlock()
		return
	}

	switch {
	case wasSecure && !secure:
		m.startCountdownLocked()
		onExit := m.OnExit
		m.mu.Unlock()

		count, err := m.counter.Increment(ctx)
		if err != nil {
			m.log.Error().Err(err).Msg("Failed to increment exit counter")
		}
		m.log.Warn().Int("exit_count", count).Msg("Student left secure mode")
		if onExit != nil {
			onExit(count, m.maxExits > 0 && count > m.maxExits)
		}

	case !wasSecure && secure:
		m.cancelCountdownLocked()
		m.mu.Unlock()
		m.log.Info().Msg("Student returned to secure mode")

	default:
		m.mu.Unlock()
	}
}

// ExitCount reads the durable counter.
func (m *Monitor) ExitCount(ctx context.Context) (int, error) {
	return m.counter.Count(ctx)
}

// Stop cancels any pending countdown. The monitor ignores updates afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.cancelCountdownLocked()
}

func (m *Monitor) startCountdownLocked() {
	if m.timer != nil {
		return // already counting down
	}
	m.timer = time.AfterFunc(m.grace, m.expire)
}

func (m *Monitor) cancelCountdownLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// expire runs on the timer goroutine after the grace period elapsed with the
// student still outside secure mode.
func (m *Monitor) expire() {
	m.mu.Lock()
	if m.stopped || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	onExpire := m.OnExpire
	m.mu.Unlock()

	count, err := m.counter.Count(context.Background())
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to read exit counter on expiry")
	}
	m.log.Warn().Int("exit_count", count).Msg("Grace countdown expired, forcing submission")
	if onExpire != nil {
		onExpire(count)
	}
}
