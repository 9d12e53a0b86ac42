package service

import (
	"context"
	"errors"
	"testing"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type stubGrader struct {
	results map[string]*model.GradingResult
	errs    map[string]error
	graded  []string
}

func (g *stubGrader) Grade(ctx context.Context, source, language string, cases []model.TestCase) (*model.GradingResult, error) {
	g.graded = append(g.graded, source)
	if err, ok := g.errs[source]; ok {
		return nil, err
	}
	if r, ok := g.results[source]; ok {
		return r, nil
	}
	return &model.GradingResult{TotalCases: len(cases)}, nil
}

type stubStore struct {
	record *model.SubmissionRecord
	err    error
}

func (s *stubStore) Upsert(ctx context.Context, rec *model.SubmissionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.record = rec
	return nil
}

type stubCompleter struct {
	completed bool
	err       error
}

func (c *stubCompleter) Complete(ctx context.Context, examID uuid.UUID, studentID int) error {
	if c.err != nil {
		return c.err
	}
	c.completed = true
	return nil
}

// deadRedis returns a client pointing nowhere. Cache cleanup is best-effort,
// so its failure must not affect the submission outcome.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func testPaper(qIDs ...uuid.UUID) *model.ExamPaper {
	paper := &model.ExamPaper{
		ExamID:   uuid.New(),
		Title:    "Midterm",
		Duration: 60,
		Language: "python",
	}
	for i, id := range qIDs {
		paper.Questions = append(paper.Questions, model.Question{
			ID:       id,
			OrderNum: i + 1,
			TestCases: []model.TestCase{
				{Input: "1", ExpectedOutput: "1"},
				{Input: "2", ExpectedOutput: "2"},
			},
		})
	}
	return paper
}

func TestSubmitScoresMeanOfQuestionMarks(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	grader := &stubGrader{results: map[string]*model.GradingResult{
		"all-pass":  {TotalCases: 2, TotalPassed: 2},
		"half-pass": {TotalCases: 2, TotalPassed: 1},
	}}
	store := &stubStore{}
	completer := &stubCompleter{}
	svc := NewSubmissionService(grader, store, completer, deadRedis(), zerolog.Nop())

	answers := map[string]string{
		q1.String(): "all-pass",
		q2.String(): "half-pass",
	}
	rec, err := svc.Submit(context.Background(), testPaper(q1, q2), 7, answers, SubmitDetails{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Score != 75 {
		t.Errorf("score = %v, want 75", rec.Score)
	}
	if rec.Status != model.SubmissionStatusGraded {
		t.Errorf("status = %s, want %s", rec.Status, model.SubmissionStatusGraded)
	}
	if len(rec.QuestionMarks) != 2 {
		t.Fatalf("question marks = %d, want 2", len(rec.QuestionMarks))
	}
	if rec.QuestionMarks[0].Mark != 100 || rec.QuestionMarks[1].Mark != 50 {
		t.Errorf("marks = %v %v, want 100 50", rec.QuestionMarks[0].Mark, rec.QuestionMarks[1].Mark)
	}
	if store.record != rec {
		t.Error("record not persisted")
	}
	if !completer.completed {
		t.Error("attempt not completed")
	}
}

func TestSubmitEmptyAnswerScoresZero(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	grader := &stubGrader{results: map[string]*model.GradingResult{
		"works": {TotalCases: 2, TotalPassed: 2},
	}}
	svc := NewSubmissionService(grader, &stubStore{}, &stubCompleter{}, deadRedis(), zerolog.Nop())

	// q2 was never answered.
	answers := map[string]string{q1.String(): "works"}
	rec, err := svc.Submit(context.Background(), testPaper(q1, q2), 7, answers, SubmitDetails{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Score != 50 {
		t.Errorf("score = %v, want 50", rec.Score)
	}
	if len(grader.graded) != 1 {
		t.Errorf("grader ran %d times, want 1 (empty answers skip grading)", len(grader.graded))
	}
}

func TestSubmitGradingErrorDegradesToZeroMark(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	grader := &stubGrader{
		results: map[string]*model.GradingResult{"good": {TotalCases: 2, TotalPassed: 2}},
		errs:    map[string]error{"broken": errors.New("sandbox unreachable")},
	}
	svc := NewSubmissionService(grader, &stubStore{}, &stubCompleter{}, deadRedis(), zerolog.Nop())

	answers := map[string]string{
		q1.String(): "broken",
		q2.String(): "good",
	}
	rec, err := svc.Submit(context.Background(), testPaper(q1, q2), 7, answers, SubmitDetails{})
	if err != nil {
		t.Fatalf("Submit must not fail when one question's grading fails: %v", err)
	}

	if rec.Score != 50 {
		t.Errorf("score = %v, want 50", rec.Score)
	}
	if rec.QuestionMarks[0].Error == "" {
		t.Error("failed question must carry the grading error")
	}
	if rec.QuestionMarks[1].Mark != 100 {
		t.Errorf("healthy question mark = %v, want 100", rec.QuestionMarks[1].Mark)
	}
}

func TestSubmitAutoSubmittedIsSuspicious(t *testing.T) {
	q1 := uuid.New()
	grader := &stubGrader{}
	svc := NewSubmissionService(grader, &stubStore{}, &stubCompleter{}, deadRedis(), zerolog.Nop())

	rec, err := svc.Submit(context.Background(), testPaper(q1), 7, nil,
		SubmitDetails{AutoSubmitted: true, ExitCount: 5})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != model.SubmissionStatusSuspicious {
		t.Errorf("status = %s, want %s", rec.Status, model.SubmissionStatusSuspicious)
	}
	if !rec.AutoSubmitted || rec.ExitCount != 5 {
		t.Errorf("auto=%v exits=%d, want true 5", rec.AutoSubmitted, rec.ExitCount)
	}
}

func TestSubmitStoreFailurePropagates(t *testing.T) {
	q1 := uuid.New()
	store := &stubStore{err: errors.New("db down")}
	completer := &stubCompleter{}
	svc := NewSubmissionService(&stubGrader{}, store, completer, deadRedis(), zerolog.Nop())

	if _, err := svc.Submit(context.Background(), testPaper(q1), 7, nil, SubmitDetails{}); err == nil {
		t.Fatal("expected error when the store fails")
	}
	if completer.completed {
		t.Error("attempt completed despite failed persistence")
	}
}

func TestSubmitCompleteFailureIsNonFatal(t *testing.T) {
	q1 := uuid.New()
	completer := &stubCompleter{err: errors.New("attempt row gone")}
	svc := NewSubmissionService(&stubGrader{}, &stubStore{}, completer, deadRedis(), zerolog.Nop())

	if _, err := svc.Submit(context.Background(), testPaper(q1), 7, nil, SubmitDetails{}); err != nil {
		t.Errorf("Submit failed on a best-effort completion error: %v", err)
	}
}
