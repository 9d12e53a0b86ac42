package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu          sync.Mutex
	states      []*State
	runResults  map[string]*model.GradingResult
	rejections  []string
	submitted   chan *model.SubmissionRecord
	submitAuto  bool
	submitFails chan error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		runResults:  make(map[string]*model.GradingResult),
		submitted:   make(chan *model.SubmissionRecord, 1),
		submitFails: make(chan error, 1),
	}
}

func (f *fakeSink) StateChanged(st *State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, st)
}

func (f *fakeSink) RunResult(questionID string, result *model.GradingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runResults[questionID] = result
}

func (f *fakeSink) ExitWarning(count, maxExits int, overLimit bool) {}

func (f *fakeSink) Rejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections = append(f.rejections, reason)
}

func (f *fakeSink) Submitted(rec *model.SubmissionRecord, auto bool) {
	f.mu.Lock()
	f.submitAuto = auto
	f.mu.Unlock()
	f.submitted <- rec
}

func (f *fakeSink) SubmitFailed(err error) {
	f.submitFails <- err
}

func (f *fakeSink) lastState() *State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return nil
	}
	return f.states[len(f.states)-1]
}

func (f *fakeSink) rejected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rejections...)
}

type fakeGrader struct {
	result *model.GradingResult
	err    error
}

func (g *fakeGrader) Grade(ctx context.Context, source, language string, cases []model.TestCase) (*model.GradingResult, error) {
	return g.result, g.err
}

type fakeMonitor struct {
	mu      sync.Mutex
	updates int
	stopped bool
}

func (m *fakeMonitor) Update(ctx context.Context, fullscreen, visible, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *fakeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

type submitRecorder struct {
	mu    sync.Mutex
	calls int
	auto  *AutoSubmit
	err   error

	// optional: signals when a write starts and holds it open for delay,
	// so tests can race a second submission against one in flight.
	began chan struct{}
	delay time.Duration
}

func (s *submitRecorder) fn(ctx context.Context, st *State, auto *AutoSubmit) (*model.SubmissionRecord, error) {
	s.mu.Lock()
	s.calls++
	s.auto = auto
	err := s.err
	s.mu.Unlock()

	if s.began != nil {
		select {
		case s.began <- struct{}{}:
		default:
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if err != nil {
		return nil, err
	}
	return &model.SubmissionRecord{Score: 50}, nil
}

func newTestRuntime(t *testing.T, sink *fakeSink, submit SubmitFunc, minTimeSeconds int) (*Runtime, context.CancelFunc) {
	t.Helper()
	rt := NewRuntime(RuntimeConfig{
		Log:             zerolog.Nop(),
		State:           NewState([]string{"q1", "q2"}, 600, nil),
		Language:        "python",
		TestCases:       map[string][]model.TestCase{"q1": {{Input: "1", ExpectedOutput: "1"}}},
		DurationSeconds: 600,
		MinTimeSeconds:  minTimeSeconds,
		Grader:          &fakeGrader{result: &model.GradingResult{TotalCases: 1, TotalPassed: 1}},
		Monitor:         &fakeMonitor{},
		Submit:          submit,
		Sink:            sink,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go rt.Run(ctx)
	return rt, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func TestRuntimeAppliesEventsAndNotifiesSink(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	rt.Dispatch(CodeChange{QuestionID: "q1", Code: "print(1)"})

	waitFor(t, func() bool {
		st := sink.lastState()
		return st != nil && st.Answers["q1"] == "print(1)"
	})

	st := rt.State()
	if !st.Started {
		t.Error("runtime state not started")
	}
	if st.Statuses["q1"] != StatusAnswered {
		t.Errorf("q1 status = %s, want %s", st.Statuses["q1"], StatusAnswered)
	}
}

func TestRuntimeLiveRunDeliversResult(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	rt.Dispatch(CodeChange{QuestionID: "q1", Code: "print(1)"})
	rt.RequestRun("q1")

	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.runResults["q1"] != nil
	})

	sink.mu.Lock()
	result := sink.runResults["q1"]
	sink.mu.Unlock()
	if result.TotalPassed != 1 {
		t.Errorf("TotalPassed = %d, want 1", result.TotalPassed)
	}
}

func TestRuntimeRejectsRunWithoutCode(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	rt.RequestRun("q1")

	waitFor(t, func() bool { return len(sink.rejected()) > 0 })
}

func TestRuntimeSubmitBelowMinTimeRejected(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 300)
	defer cancel()

	rt.Dispatch(Start{})
	rt.RequestSubmit()

	waitFor(t, func() bool { return len(sink.rejected()) > 0 })

	rec.mu.Lock()
	calls := rec.calls
	rec.mu.Unlock()
	if calls != 0 {
		t.Errorf("submit ran %d times despite min-time rejection", calls)
	}
	if rt.State().Finished {
		t.Error("attempt finished despite min-time rejection")
	}
}

func TestRuntimeStudentSubmit(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	rt.RequestSubmit()

	select {
	case r := <-sink.submitted:
		if r.Score != 50 {
			t.Errorf("score = %v, want 50", r.Score)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never completed")
	}

	sink.mu.Lock()
	auto := sink.submitAuto
	sink.mu.Unlock()
	if auto {
		t.Error("student submit reported as auto")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.auto != nil {
		t.Error("student submit carried proctoring context")
	}
}

func TestRuntimeForceSubmitCarriesExitCount(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 300) // min time must not block forced submits
	defer cancel()

	rt.Dispatch(Start{})
	rt.ForceSubmit(4)

	select {
	case <-sink.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("forced submission never completed")
	}

	sink.mu.Lock()
	auto := sink.submitAuto
	sink.mu.Unlock()
	if !auto {
		t.Error("forced submit not reported as auto")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.auto == nil || rec.auto.ExitCount != 4 {
		t.Errorf("auto context = %+v, want ExitCount 4", rec.auto)
	}
}

func TestRuntimeDuplicateSubmitWritesOnce(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	// Two back-to-back submits: double-clicked button, retry on a flaky
	// connection. The latch must collapse them into one write.
	rt.RequestSubmit()
	rt.RequestSubmit()

	select {
	case <-sink.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never completed")
	}

	// Give the loop a moment in case it were to process the duplicate.
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 1 {
		t.Errorf("submit writes = %d, want exactly 1", rec.calls)
	}
}

func TestRuntimeTimerZeroAndForcedSubmitWriteOnce(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{
		began: make(chan struct{}, 1),
		delay: 300 * time.Millisecond,
	}
	rt := NewRuntime(RuntimeConfig{
		Log:             zerolog.Nop(),
		State:           NewState([]string{"q1"}, 1, nil),
		Language:        "python",
		DurationSeconds: 1,
		Grader:          &fakeGrader{},
		Monitor:         &fakeMonitor{},
		Submit:          rec.fn,
		Sink:            sink,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	rt.Dispatch(Start{})

	// Wait for the clock to hit zero and the write to start.
	select {
	case <-rec.began:
	case <-time.After(3 * time.Second):
		t.Fatal("timer-zero submission never started")
	}

	// Proctoring countdown expires while the timer-zero write is in flight.
	rt.ForceSubmit(2)

	select {
	case <-sink.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never completed")
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 1 {
		t.Errorf("submit writes = %d, want exactly 1", rec.calls)
	}
	if rec.auto != nil {
		t.Error("timer-zero submission carried proctoring context")
	}
}

func TestRuntimeSubmitFailureReleasesLatch(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{err: errors.New("db down")}
	rt, cancel := newTestRuntime(t, sink, rec.fn, 0)
	defer cancel()

	rt.Dispatch(Start{})
	rt.RequestSubmit()

	select {
	case <-sink.submitFails:
	case <-time.After(2 * time.Second):
		t.Fatal("submit failure never surfaced")
	}

	// Retry succeeds once the store recovers.
	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	rt.RequestSubmit()

	select {
	case <-sink.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("retry submission never completed")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 2 {
		t.Errorf("submit calls = %d, want 2", rec.calls)
	}
}

func TestRuntimeStopsMonitorOnExit(t *testing.T) {
	sink := newFakeSink()
	rec := &submitRecorder{}
	monitor := &fakeMonitor{}
	rt := NewRuntime(RuntimeConfig{
		Log:             zerolog.Nop(),
		State:           NewState([]string{"q1"}, 600, nil),
		Language:        "python",
		DurationSeconds: 600,
		Grader:          &fakeGrader{},
		Monitor:         monitor,
		Submit:          rec.fn,
		Sink:            sink,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if !monitor.stopped {
		t.Error("monitor not stopped when the run loop exited")
	}
}
