package service

import (
	"context"
	"fmt"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/codelock/codelock-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QuestionGrader grades one question's source against its test cases.
type QuestionGrader interface {
	Grade(ctx context.Context, source, language string, cases []model.TestCase) (*model.GradingResult, error)
}

// SubmissionStore persists the final submission record.
type SubmissionStore interface {
	Upsert(ctx context.Context, s *model.SubmissionRecord) error
}

// AttemptCompleter marks an attempt finished after its submission persisted.
type AttemptCompleter interface {
	Complete(ctx context.Context, examID uuid.UUID, studentID int) error
}

// SubmitDetails describes how the submission was triggered.
type SubmitDetails struct {
	// AutoSubmitted is true when the proctoring countdown forced the submit.
	AutoSubmitted bool
	ExitCount     int
}

// SubmissionService grades every answer of a finished attempt and persists
// exactly one submission record. Grading is fail-soft per question: a broken
// answer scores zero and the rest still grade.
type SubmissionService struct {
	grader    QuestionGrader
	store     SubmissionStore
	completer AttemptCompleter
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	grader QuestionGrader,
	store SubmissionStore,
	completer AttemptCompleter,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		grader:    grader,
		store:     store,
		completer: completer,
		rdb:       rdb,
		log:       log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit grades answers against the paper and persists the result. The final
// score is the mean of per-question marks, each mark being the passed-case
// percentage. A persistence failure is returned so the caller can retry; no
// partial state is kept.
func (s *SubmissionService) Submit(
	ctx context.Context,
	paper *model.ExamPaper,
	studentID int,
	answers map[string]string,
	details SubmitDetails,
) (*model.SubmissionRecord, error) {
	marks := make([]model.QuestionMark, 0, len(paper.Questions))
	var sum float64

	for _, q := range paper.Questions {
		mark := s.gradeQuestion(ctx, paper, &q, answers[q.ID.String()])
		sum += mark.Mark
		marks = append(marks, mark)
	}

	score := 0.0
	if len(marks) > 0 {
		score = sum / float64(len(marks))
	}

	status := model.SubmissionStatusGraded
	if details.AutoSubmitted {
		status = model.SubmissionStatusSuspicious
	}

	record := &model.SubmissionRecord{
		ExamID:        paper.ExamID,
		StudentID:     studentID,
		Answers:       answers,
		QuestionMarks: marks,
		Score:         score,
		Status:        status,
		AutoSubmitted: details.AutoSubmitted,
		ExitCount:     details.ExitCount,
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	if err := s.completer.Complete(ctx, paper.ExamID, studentID); err != nil {
		// The submission row exists; the attempt row will reconcile on the
		// next join check. Log and move on.
		s.log.Error().Err(err).
			Str("exam_id", paper.ExamID.String()).
			Int("student_id", studentID).
			Msg("Failed to complete attempt after submission")
	}

	s.cleanupAttemptCache(ctx, paper.ExamID, studentID)

	s.log.Info().
		Str("exam_id", paper.ExamID.String()).
		Int("student_id", studentID).
		Float64("score", score).
		Str("status", string(status)).
		Msg("Submission persisted")

	return record, nil
}

// gradeQuestion computes one question's mark. Empty answers and grading
// failures score zero; the failure reason travels with the mark.
func (s *SubmissionService) gradeQuestion(ctx context.Context, paper *model.ExamPaper, q *model.Question, source string) model.QuestionMark {
	mark := model.QuestionMark{
		QuestionID: q.ID.String(),
		TotalCases: len(q.TestCases),
	}

	if source == "" || len(q.TestCases) == 0 {
		return mark
	}

	result, err := s.grader.Grade(ctx, source, paper.Language, q.TestCases)
	if err != nil {
		s.log.Warn().Err(err).
			Str("question_id", q.ID.String()).
			Msg("Question grading failed")
		mark.Error = err.Error()
		return mark
	}

	mark.TotalCases = result.TotalCases
	mark.TotalPassed = result.TotalPassed
	if result.TotalCases > 0 {
		mark.Mark = 100 * float64(result.TotalPassed) / float64(result.TotalCases)
	}
	return mark
}

// cleanupAttemptCache drops the attempt's working keys from Redis. The
// durable record already lives in PostgreSQL.
func (s *SubmissionService) cleanupAttemptCache(ctx context.Context, examID uuid.UUID, studentID int) {
	eid := examID.String()
	keys := []string{
		config.CacheKey.AttemptAnswersKey(eid, studentID),
		config.CacheKey.AttemptStatusesKey(eid, studentID),
		config.CacheKey.AttemptStartKey(eid, studentID),
		config.CacheKey.ProctorExitCountKey(eid, studentID),
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clean attempt cache")
	}
}
