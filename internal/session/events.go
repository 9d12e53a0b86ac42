package session

import (
	"github.com/codelock/codelock-backend/internal/model"
)

// Event is a discrete input to the attempt state machine. Events are applied
// one at a time by a single consumer; no two are processed concurrently.
type Event interface {
	isEvent()
}

// Start begins the attempt and visits the first question.
type Start struct{}

// Next moves to the following question (clamped).
type Next struct{}

// Prev moves to the preceding question (clamped).
type Prev struct{}

// Jump moves directly to a question index (clamped).
type Jump struct {
	To int
}

// CodeChange records the student's current source for a question. An empty
// string behaves like ClearAnswer.
type CodeChange struct {
	QuestionID string
	Code       string
}

// ClearAnswer removes the student's source for a question.
type ClearAnswer struct {
	QuestionID string
}

// ToggleMark flips a question in or out of marked-for-review.
type ToggleMark struct {
	QuestionID string
}

// Tick decrements the attempt clock by one second. Reaching zero finishes
// the attempt; a finished attempt ignores further ticks.
type Tick struct{}

// Finish terminates the attempt unconditionally. Idempotent.
type Finish struct{}

// RunStarted flags a question's live run as in flight.
type RunStarted struct {
	QuestionID string
}

// RunFinished records a live run's grading result for a question.
type RunFinished struct {
	QuestionID string
	Result     *model.GradingResult
}

func (Start) isEvent()       {}
func (Next) isEvent()        {}
func (Prev) isEvent()        {}
func (Jump) isEvent()        {}
func (CodeChange) isEvent()  {}
func (ClearAnswer) isEvent() {}
func (ToggleMark) isEvent()  {}
func (Tick) isEvent()        {}
func (Finish) isEvent()      {}
func (RunStarted) isEvent()  {}
func (RunFinished) isEvent() {}
