package session

import (
	"testing"

	"github.com/codelock/codelock-backend/internal/model"
)

func newTestState() *State {
	return NewState([]string{"q1", "q2", "q3"}, 600, nil)
}

func TestNewStateSeedsSavedAnswers(t *testing.T) {
	saved := map[string]string{
		"q2":      "print(42)",
		"q3":      "",        // empty autosave must not flip the status
		"unknown": "ignored", // not part of this paper
	}
	st := NewState([]string{"q1", "q2", "q3"}, 600, saved)

	if st.Statuses["q1"] != StatusNotVisited {
		t.Errorf("q1 status = %s, want %s", st.Statuses["q1"], StatusNotVisited)
	}
	if st.Statuses["q2"] != StatusAnswered {
		t.Errorf("q2 status = %s, want %s", st.Statuses["q2"], StatusAnswered)
	}
	if st.Answers["q2"] != "print(42)" {
		t.Errorf("q2 answer = %q, want %q", st.Answers["q2"], "print(42)")
	}
	if st.Statuses["q3"] != StatusNotVisited {
		t.Errorf("q3 status = %s, want %s", st.Statuses["q3"], StatusNotVisited)
	}
	if _, ok := st.Answers["unknown"]; ok {
		t.Error("answer for unknown question must be dropped")
	}
}

func TestStartVisitsFirstQuestion(t *testing.T) {
	st := Apply(newTestState(), Start{})

	if !st.Started {
		t.Fatal("Started = false after Start")
	}
	if st.Statuses["q1"] != StatusNotAnswered {
		t.Errorf("q1 status = %s, want %s", st.Statuses["q1"], StatusNotAnswered)
	}
	// Start is idempotent.
	again := Apply(st, Start{})
	if again != st {
		t.Error("second Start must return the same snapshot")
	}
}

func TestNavigationClamps(t *testing.T) {
	st := Apply(newTestState(), Start{})

	st = Apply(st, Prev{})
	if st.CurrentIndex != 0 {
		t.Errorf("Prev at index 0 moved to %d", st.CurrentIndex)
	}

	st = Apply(st, Jump{To: 99})
	if st.CurrentIndex != 2 {
		t.Errorf("Jump beyond end landed at %d, want 2", st.CurrentIndex)
	}
	if st.Statuses["q3"] != StatusNotAnswered {
		t.Errorf("q3 not visited after jump: %s", st.Statuses["q3"])
	}

	st = Apply(st, Jump{To: -5})
	if st.CurrentIndex != 0 {
		t.Errorf("Jump below 0 landed at %d, want 0", st.CurrentIndex)
	}

	st = Apply(st, Next{})
	if st.CurrentIndex != 1 {
		t.Errorf("Next moved to %d, want 1", st.CurrentIndex)
	}
}

func TestCodeChangeTransitions(t *testing.T) {
	st := Apply(newTestState(), Start{})

	st = Apply(st, CodeChange{QuestionID: "q1", Code: "x = 1"})
	if st.Statuses["q1"] != StatusAnswered {
		t.Errorf("status after code change = %s, want %s", st.Statuses["q1"], StatusAnswered)
	}

	// Empty code behaves like a clear.
	st = Apply(st, CodeChange{QuestionID: "q1", Code: ""})
	if _, ok := st.Answers["q1"]; ok {
		t.Error("empty code change must delete the answer")
	}
	if st.Statuses["q1"] != StatusNotAnswered {
		t.Errorf("status after empty code = %s, want %s", st.Statuses["q1"], StatusNotAnswered)
	}

	// Unknown question id is a no-op.
	before := st
	st = Apply(st, CodeChange{QuestionID: "nope", Code: "y"})
	if st != before {
		t.Error("code change for unknown question must be a no-op")
	}
}

func TestMarkForReviewSticksThroughEdits(t *testing.T) {
	st := Apply(newTestState(), Start{})
	st = Apply(st, ToggleMark{QuestionID: "q1"})

	if st.Statuses["q1"] != StatusMarkedForReview {
		t.Fatalf("status = %s, want %s", st.Statuses["q1"], StatusMarkedForReview)
	}

	// Editing a marked question keeps the mark.
	st = Apply(st, CodeChange{QuestionID: "q1", Code: "a"})
	if st.Statuses["q1"] != StatusMarkedForReview {
		t.Errorf("mark lost after edit: %s", st.Statuses["q1"])
	}

	// Un-marking restores the answer-implied status.
	st = Apply(st, ToggleMark{QuestionID: "q1"})
	if st.Statuses["q1"] != StatusAnswered {
		t.Errorf("status after unmark = %s, want %s", st.Statuses["q1"], StatusAnswered)
	}

	st = Apply(st, ClearAnswer{QuestionID: "q1"})
	st = Apply(st, ToggleMark{QuestionID: "q1"})
	st = Apply(st, ToggleMark{QuestionID: "q1"})
	if st.Statuses["q1"] != StatusNotAnswered {
		t.Errorf("status after unmark without answer = %s, want %s", st.Statuses["q1"], StatusNotAnswered)
	}
}

func TestTickCountsDownAndFinishes(t *testing.T) {
	st := NewState([]string{"q1"}, 2, nil)

	// Ticks before Start are ignored.
	if next := Apply(st, Tick{}); next != st {
		t.Error("tick before start must be a no-op")
	}

	st = Apply(st, Start{})
	st = Apply(st, Tick{})
	if st.TimeLeft != 1 || st.Finished {
		t.Fatalf("after one tick: TimeLeft=%d Finished=%v", st.TimeLeft, st.Finished)
	}

	st = Apply(st, Tick{})
	if st.TimeLeft != 0 || !st.Finished {
		t.Fatalf("after final tick: TimeLeft=%d Finished=%v", st.TimeLeft, st.Finished)
	}
}

func TestFinishedStateIsFrozen(t *testing.T) {
	st := Apply(newTestState(), Start{})
	st = Apply(st, Finish{})

	if !st.Finished || st.TimeLeft != 0 {
		t.Fatalf("after Finish: Finished=%v TimeLeft=%d", st.Finished, st.TimeLeft)
	}

	frozen := st
	for _, ev := range []Event{
		Start{}, Next{}, Prev{}, Jump{To: 1},
		CodeChange{QuestionID: "q1", Code: "late"},
		ClearAnswer{QuestionID: "q1"},
		ToggleMark{QuestionID: "q1"},
		Tick{},
	} {
		if Apply(frozen, ev) != frozen {
			t.Errorf("event %T mutated a finished state", ev)
		}
	}
}

func TestRunLifecycleNeverTouchesStatus(t *testing.T) {
	st := Apply(newTestState(), Start{})
	st = Apply(st, CodeChange{QuestionID: "q1", Code: "x"})

	st = Apply(st, RunStarted{QuestionID: "q1"})
	if !st.Executing["q1"] {
		t.Fatal("Executing not set after RunStarted")
	}

	res := &model.GradingResult{TotalCases: 2, TotalPassed: 1}
	st = Apply(st, RunFinished{QuestionID: "q1", Result: res})
	if st.Executing["q1"] {
		t.Error("Executing still set after RunFinished")
	}
	if st.Results["q1"] != res {
		t.Error("result not recorded")
	}
	if st.Statuses["q1"] != StatusAnswered {
		t.Errorf("run changed question status to %s", st.Statuses["q1"])
	}
}

func TestApplyNeverMutatesPriorSnapshot(t *testing.T) {
	st := Apply(newTestState(), Start{})
	before := st.Statuses["q2"]

	next := Apply(st, Jump{To: 1})
	if st.Statuses["q2"] != before {
		t.Error("Apply mutated the prior snapshot")
	}
	if next.Statuses["q2"] == before {
		t.Error("Apply did not produce a new snapshot")
	}
}
