package grading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/rs/zerolog"
)

// scriptedExecutor returns a queued output (or error) per call, recording the
// stdin it was handed.
type scriptedExecutor struct {
	outputs []*Output
	errs    []error
	calls   int
	stdins  []string
	langs   []string
}

func (e *scriptedExecutor) Execute(ctx context.Context, language, source, stdin string) (*Output, error) {
	i := e.calls
	e.calls++
	e.stdins = append(e.stdins, stdin)
	e.langs = append(e.langs, language)
	var err error
	if i < len(e.errs) {
		err = e.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(e.outputs) {
		return e.outputs[i], nil
	}
	return &Output{}, nil
}

func TestGradeRejectsEmptyPreconditions(t *testing.T) {
	g := NewGrader(&scriptedExecutor{}, 0, zerolog.Nop())

	if _, err := g.Grade(context.Background(), "   ", "python", nil); !errors.Is(err, ErrNoSource) {
		t.Errorf("blank source: err = %v, want ErrNoSource", err)
	}
	if _, err := g.Grade(context.Background(), "print(1)", "", nil); !errors.Is(err, ErrNoLanguage) {
		t.Errorf("blank language: err = %v, want ErrNoLanguage", err)
	}
}

func TestGradeFreeRunReturnsTrimmedOutput(t *testing.T) {
	exec := &scriptedExecutor{outputs: []*Output{{Stdout: "  hello\n"}}}
	g := NewGrader(exec, 0, zerolog.Nop())

	result, err := g.Grade(context.Background(), "print('hello')", "py", nil)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Output != "hello" {
		t.Errorf("Output = %q, want %q", result.Output, "hello")
	}
	if exec.langs[0] != "python" {
		t.Errorf("language sent = %q, want %q (mapped)", exec.langs[0], "python")
	}
}

func TestGradeFreeRunSurfacesStderr(t *testing.T) {
	exec := &scriptedExecutor{outputs: []*Output{{Stderr: "SyntaxError: bad\n"}}}
	g := NewGrader(exec, 0, zerolog.Nop())

	result, err := g.Grade(context.Background(), "print(", "python", nil)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Error != "SyntaxError: bad" {
		t.Errorf("Error = %q", result.Error)
	}
}

func TestGradeComparesTrimmedOutputs(t *testing.T) {
	cases := []model.TestCase{
		{Input: "1 2", ExpectedOutput: "3"},
		{Input: "5 5", ExpectedOutput: "10\n"},
		{Input: "0 0", ExpectedOutput: "1"},
	}
	exec := &scriptedExecutor{outputs: []*Output{
		{Stdout: "3\n"},
		{Stdout: "  10  "},
		{Stdout: "0"},
	}}
	g := NewGrader(exec, 0, zerolog.Nop())

	result, err := g.Grade(context.Background(), "src", "python", cases)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.TotalCases != 3 || result.TotalPassed != 2 {
		t.Fatalf("TotalCases=%d TotalPassed=%d, want 3/2", result.TotalCases, result.TotalPassed)
	}
	if !result.Cases[0].Passed || !result.Cases[1].Passed || result.Cases[2].Passed {
		t.Errorf("pass flags = %v %v %v, want true true false",
			result.Cases[0].Passed, result.Cases[1].Passed, result.Cases[2].Passed)
	}
	if exec.stdins[1] != "5 5" {
		t.Errorf("stdin for case 2 = %q", exec.stdins[1])
	}
}

func TestGradeCaseFailureDoesNotStopGrading(t *testing.T) {
	cases := []model.TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
	}
	exec := &scriptedExecutor{
		errs:    []error{errors.New("sandbox 500"), nil},
		outputs: []*Output{nil, {Stdout: "2"}},
	}
	g := NewGrader(exec, 0, zerolog.Nop())

	result, err := g.Grade(context.Background(), "src", "python", cases)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.TotalPassed != 1 {
		t.Errorf("TotalPassed = %d, want 1", result.TotalPassed)
	}
	if result.Cases[0].Passed || result.Cases[0].Error == "" {
		t.Errorf("case 1 = %+v, want failed with error", result.Cases[0])
	}
	if !result.Cases[1].Passed {
		t.Error("case 2 should still have run and passed")
	}
}

func TestGradeCancelledContextFailsRemainingCases(t *testing.T) {
	cases := []model.TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
		{Input: "c", ExpectedOutput: "3"},
	}
	exec := &scriptedExecutor{outputs: []*Output{{Stdout: "1"}}}
	// Non-zero delay so the inter-case pause observes cancellation.
	g := NewGrader(exec, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // first case still runs; the pause before case 2 aborts

	result, err := g.Grade(ctx, "src", "python", cases)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(result.Cases) != 3 {
		t.Fatalf("cases recorded = %d, want 3", len(result.Cases))
	}
	if result.Cases[1].Error == "" || result.Cases[2].Error == "" {
		t.Error("remaining cases must carry the cancellation error")
	}
	if exec.calls != 1 {
		t.Errorf("executor calls = %d, want 1", exec.calls)
	}
}
