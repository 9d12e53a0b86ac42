package grading

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/rs/zerolog"
)

// Precondition errors, rejected before any network call.
var (
	ErrNoSource   = errors.New("no source code to run")
	ErrNoLanguage = errors.New("no language specified")
)

// Grader runs student code against a question's test cases and normalizes
// the outcome. Execution failures degrade case-by-case: a failed case is
// recorded and the remaining cases still run.
type Grader struct {
	exec Executor
	// caseDelay paces sequential requests to respect the sandbox rate limit.
	caseDelay time.Duration
	log       zerolog.Logger
}

// NewGrader creates a Grader over the given Executor.
func NewGrader(exec Executor, caseDelay time.Duration, log zerolog.Logger) *Grader {
	return &Grader{
		exec:      exec,
		caseDelay: caseDelay,
		log:       log.With().Str("component", "grader").Logger(),
	}
}

// Grade executes source against cases and returns the normalized result.
//
// With no cases, the code runs once with empty stdin and the raw output (or
// error string) is returned without any pass/fail judgement. With cases, one
// sequential execution per case compares trimmed actual vs expected output.
// The returned error is non-nil only for precondition violations; transport
// and API failures are folded into the result.
func (g *Grader) Grade(ctx context.Context, source, language string, cases []model.TestCase) (*model.GradingResult, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrNoSource
	}
	if strings.TrimSpace(language) == "" {
		return nil, ErrNoLanguage
	}

	lang := MapLanguage(language)

	if len(cases) == 0 {
		return g.runFree(ctx, source, lang), nil
	}

	result := &model.GradingResult{
		Cases:      make([]model.CaseResult, 0, len(cases)),
		TotalCases: len(cases),
	}

	for i, tc := range cases {
		if i > 0 {
			if err := g.pause(ctx); err != nil {
				// Context gone: record the remaining cases as failed and stop.
				for _, rest := range cases[i:] {
					result.Cases = append(result.Cases, model.CaseResult{
						Input:          rest.Input,
						ExpectedOutput: rest.ExpectedOutput,
						Error:          err.Error(),
					})
				}
				return result, nil
			}
		}

		result.Cases = append(result.Cases, g.runCase(ctx, source, lang, tc))
	}

	for _, cr := range result.Cases {
		if cr.Passed {
			result.TotalPassed++
		}
	}

	return result, nil
}

// runFree executes once with empty stdin; no pass/fail judgement is made.
func (g *Grader) runFree(ctx context.Context, source, lang string) *model.GradingResult {
	out, err := g.exec.Execute(ctx, lang, source, "")
	if err != nil {
		return &model.GradingResult{Error: err.Error()}
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		return &model.GradingResult{Error: stderr}
	}
	return &model.GradingResult{Output: strings.TrimSpace(out.Stdout)}
}

// runCase executes one test case. Failures never propagate: they become a
// failed case with a non-empty error.
func (g *Grader) runCase(ctx context.Context, source, lang string, tc model.TestCase) model.CaseResult {
	cr := model.CaseResult{
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
	}

	out, err := g.exec.Execute(ctx, lang, source, tc.Input)
	if err != nil {
		g.log.Warn().Err(err).Msg("Test case execution failed")
		cr.Error = err.Error()
		return cr
	}

	cr.ActualOutput = strings.TrimSpace(out.Stdout)
	cr.Passed = cr.ActualOutput == strings.TrimSpace(tc.ExpectedOutput)
	if !cr.Passed {
		if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
			cr.Error = stderr
		}
	}
	return cr
}

// pause waits the configured inter-request delay, honoring cancellation.
func (g *Grader) pause(ctx context.Context) error {
	if g.caseDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.caseDelay):
		return nil
	}
}
