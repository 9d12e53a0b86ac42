package session

import (
	"context"
	"time"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/rs/zerolog"
)

// Grader produces an authoritative result for one question's source code.
type Grader interface {
	Grade(ctx context.Context, source, language string, cases []model.TestCase) (*model.GradingResult, error)
}

// SecurityMonitor observes fullscreen/visibility signals for the attempt.
type SecurityMonitor interface {
	Update(ctx context.Context, fullscreen, visible, running bool)
	Stop()
}

// AutoSubmit carries the proctoring context attached to a forced submission.
type AutoSubmit struct {
	ExitCount int
}

// SubmitFunc persists the final SubmissionRecord for a frozen snapshot.
// Implemented by the submission orchestrator.
type SubmitFunc func(ctx context.Context, st *State, auto *AutoSubmit) (*model.SubmissionRecord, error)

// Sink receives runtime outputs destined for the student's client.
type Sink interface {
	// StateChanged fires after every client event is applied, with the fresh
	// snapshot. Ticks do not fire it; the clock is enforced server-side anyway.
	StateChanged(st *State)
	RunResult(questionID string, result *model.GradingResult)
	ExitWarning(count, maxExits int, overLimit bool)
	Rejected(reason string)
	Submitted(rec *model.SubmissionRecord, auto bool)
	SubmitFailed(err error)
}

// internal command types carried on the same channel as reducer events

type runCmd struct{ questionID string }

type securityCmd struct{ fullscreen, visible bool }

type submitCmd struct{ auto *AutoSubmit }

// RuntimeConfig wires a Runtime's collaborators.
type RuntimeConfig struct {
	Log             zerolog.Logger
	State           *State
	Language        string
	TestCases       map[string][]model.TestCase
	DurationSeconds int
	MinTimeSeconds  int
	Grader          Grader
	Monitor         SecurityMonitor
	Submit          SubmitFunc
	Sink            Sink
}

// Runtime is the single consumer of an attempt's events. Client messages,
// the one-second timer, and the proctoring countdown all funnel into one
// channel so the state machine never mutates concurrently with itself.
type Runtime struct {
	log             zerolog.Logger
	st              *State
	language        string
	testCases       map[string][]model.TestCase
	durationSeconds int
	minTimeSeconds  int
	grader          Grader
	monitor         SecurityMonitor
	submit          SubmitFunc
	sink            Sink

	inputs chan any

	// Single-flight submission latch. Only touched from the run loop.
	submitting bool
	submitted  bool
}

// NewRuntime creates an attempt runtime. Call Run in a goroutine.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	return &Runtime{
		log:             cfg.Log.With().Str("component", "attempt_runtime").Logger(),
		st:              cfg.State,
		language:        cfg.Language,
		testCases:       cfg.TestCases,
		durationSeconds: cfg.DurationSeconds,
		minTimeSeconds:  cfg.MinTimeSeconds,
		grader:          cfg.Grader,
		monitor:         cfg.Monitor,
		submit:          cfg.Submit,
		sink:            cfg.Sink,
		inputs:          make(chan any, 64),
	}
}

// State returns the current snapshot. Safe to read from other goroutines
// because snapshots are never mutated after Apply returns them, but the value
// may be stale by the time the caller looks at it.
func (r *Runtime) State() *State {
	return r.st
}

// Dispatch queues a reducer event from the client. Events arriving while the
// loop is busy submitting are processed afterwards against the frozen state.
func (r *Runtime) Dispatch(ev Event) {
	r.enqueue(ev)
}

// RequestRun queues a live execution of one question's current source.
func (r *Runtime) RequestRun(questionID string) {
	r.enqueue(runCmd{questionID: questionID})
}

// SecurityUpdate queues a fullscreen/visibility observation.
func (r *Runtime) SecurityUpdate(fullscreen, visible bool) {
	r.enqueue(securityCmd{fullscreen: fullscreen, visible: visible})
}

// RequestSubmit queues a student-initiated submission.
func (r *Runtime) RequestSubmit() {
	r.enqueue(submitCmd{})
}

// ForceSubmit queues a proctoring auto-submission. Called by the monitor
// when the grace countdown expires.
func (r *Runtime) ForceSubmit(exitCount int) {
	r.enqueue(submitCmd{auto: &AutoSubmit{ExitCount: exitCount}})
}

func (r *Runtime) enqueue(in any) {
	select {
	case r.inputs <- in:
	default:
		// The loop is wedged in a long submission and the buffer is full.
		// Anything arriving now cannot change a frozen attempt.
		r.log.Warn().Msg("Input dropped: attempt event buffer full")
	}
}

// Run consumes inputs until ctx is cancelled or the attempt is submitted.
func (r *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer r.monitor.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !r.st.Started || r.st.Finished {
				continue
			}
			r.st = Apply(r.st, Tick{})
			if r.st.Finished {
				// Timer reached zero: normal terminal transition, not an error.
				r.doSubmit(ctx, nil)
				if r.submitted {
					return
				}
			}

		case in := <-r.inputs:
			r.handle(ctx, in)
			if r.submitted {
				return
			}
		}
	}
}

func (r *Runtime) handle(ctx context.Context, in any) {
	switch cmd := in.(type) {
	case Event:
		r.st = Apply(r.st, cmd)
		r.sink.StateChanged(r.st)

	case runCmd:
		r.startRun(ctx, cmd.questionID)

	case runResult:
		r.handleRunResult(cmd)

	case securityCmd:
		running := r.st.Started && !r.st.Finished && !r.submitted
		r.monitor.Update(ctx, cmd.fullscreen, cmd.visible, running)

	case submitCmd:
		if !r.st.Started {
			return
		}
		if cmd.auto == nil && !r.st.Finished {
			elapsed := r.durationSeconds - r.st.TimeLeft
			if elapsed < r.minTimeSeconds {
				r.sink.Rejected("minimum exam time not reached")
				return
			}
		}
		r.st = Apply(r.st, Finish{})
		r.doSubmit(ctx, cmd.auto)
	}
}

// startRun kicks off an asynchronous grading run for one question. Runs for
// different questions may overlap; a re-run supersedes the prior result for
// that question once it resolves.
func (r *Runtime) startRun(ctx context.Context, questionID string) {
	if r.st.Finished {
		return
	}
	if r.st.Executing[questionID] {
		return
	}
	code, ok := r.st.Answers[questionID]
	if !ok || code == "" {
		r.sink.Rejected("no source code to run")
		return
	}

	r.st = Apply(r.st, RunStarted{QuestionID: questionID})

	cases := r.testCases[questionID]
	go func() {
		result, err := r.grader.Grade(ctx, code, r.language, cases)
		if err != nil {
			result = &model.GradingResult{Error: err.Error()}
		}
		r.enqueue(runResult{questionID: questionID, result: result})
	}()
}

type runResult struct {
	questionID string
	result     *model.GradingResult
}

// handleRunResult applies the grading outcome and forwards it to the client.
func (r *Runtime) handleRunResult(res runResult) {
	r.st = Apply(r.st, RunFinished{QuestionID: res.questionID, Result: res.result})
	r.sink.RunResult(res.questionID, res.result)
}

// doSubmit performs the single-flight final submission. The loop blocks here
// on purpose: the orchestrator's grading pass is strictly sequential and the
// frozen state cannot change underneath it. A second submit observed later
// sees the latch and becomes a no-op.
func (r *Runtime) doSubmit(ctx context.Context, auto *AutoSubmit) {
	if r.submitted || r.submitting {
		return
	}
	r.submitting = true

	rec, err := r.submit(ctx, r.st, auto)

	r.submitting = false
	if err != nil {
		// Latch released: the student may retry. The attempt row stays
		// IN_PROGRESS until a submission write succeeds.
		r.log.Error().Err(err).Msg("Final submission failed")
		r.sink.SubmitFailed(err)
		return
	}

	r.submitted = true
	r.sink.Submitted(rec, auto != nil)
}
