package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/codelock/codelock-backend/internal/model"
	"github.com/codelock/codelock-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt domain errors.
var (
	ErrExamNotJoinable   = errors.New("exam is not available for joining")
	ErrInvalidEntryToken = errors.New("invalid entry token")
	ErrAlreadySubmitted  = errors.New("exam already submitted")
	ErrNoActiveAttempt   = errors.New("no active attempt for this exam")
)

// AttemptService handles the student's path into and through an exam attempt.
type AttemptService struct {
	attemptRepo    *repository.AttemptRepository
	submissionRepo *repository.SubmissionRepository
	examRepo       *repository.ExamRepository
	questionRepo   *repository.QuestionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:    attemptRepo,
		submissionRepo: submissionRepo,
		examRepo:       examRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "attempt_service").Logger(),
	}
}

// LobbyStatus represents the concrete state of an exam in the student lobby.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyExam represents an exam as displayed in the student lobby. The entry
// token never leaves the server.
type LobbyExam struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DurationMinutes int         `json:"duration_minutes"`
	Language        string      `json:"language"`
	QuestionCount   int         `json:"question_count"`
	LobbyStatus     LobbyStatus `json:"lobby_status"`
	FinalScore      *float64    `json:"final_score,omitempty"`
}

// GetLobby returns published exams overlaid with the student's own progress.
func (s *AttemptService) GetLobby(ctx context.Context, studentID int) ([]LobbyExam, error) {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}

	lobby := make([]LobbyExam, 0, len(exams))
	for i := range exams {
		exam := &exams[i]
		entry := LobbyExam{
			ID:              exam.ID,
			Title:           exam.Title,
			Description:     exam.Description,
			DurationMinutes: exam.DurationMinutes,
			Language:        exam.Language,
			QuestionCount:   exam.QuestionCount,
			LobbyStatus:     LobbyStatusAvailable,
		}

		sub, err := s.submissionRepo.GetByExamAndStudent(ctx, exam.ID, studentID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check submission: %w", err)
		}
		if sub != nil {
			entry.LobbyStatus = LobbyStatusCompleted
			entry.FinalScore = &sub.Score
		} else {
			attempt, err := s.attemptRepo.GetByExamAndStudent(ctx, exam.ID, studentID)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("check attempt: %w", err)
			}
			if attempt != nil && attempt.Status == model.AttemptStatusInProgress {
				entry.LobbyStatus = LobbyStatusInProgress
			}
		}

		lobby = append(lobby, entry)
	}

	return lobby, nil
}

// JoinExam validates the entry token and opens an attempt for the student.
// The per-student question order is shuffled once here and persisted; every
// reconnect sees the same order. Students with a prior submission are
// rejected: one attempt per exam, forever.
func (s *AttemptService) JoinExam(ctx context.Context, examID uuid.UUID, studentID int, entryToken string) (*model.ExamAttempt, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotJoinable
	}
	if exam.EntryToken != "" && exam.EntryToken != entryToken {
		return nil, ErrInvalidEntryToken
	}

	// A graded submission permanently closes the exam for this student.
	if _, err := s.submissionRepo.GetByExamAndStudent(ctx, examID, studentID); err == nil {
		return nil, ErrAlreadySubmitted
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check submission: %w", err)
	}

	// Re-join after a reload resumes the existing attempt.
	existing, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptStatusCompleted {
			return nil, ErrAlreadySubmitted
		}
		s.cacheStartTime(ctx, examID, studentID, existing.StartedAt)
		return existing, nil
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	order := make([]string, len(questions))
	for i, q := range questions {
		order[i] = q.ID.String()
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	attempt := &model.ExamAttempt{
		ExamID:        examID,
		StudentID:     studentID,
		Status:        model.AttemptStatusInProgress,
		QuestionOrder: order,
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptExists) {
			// Concurrent join: the other request won, resume its attempt.
			existing, fetchErr := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent join detected, but fetch failed: %w", fetchErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.cacheStartTime(ctx, examID, studentID, attempt.StartedAt)

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Student joined exam")
	return attempt, nil
}

// cacheStartTime stores the attempt start in Redis so remaining-time math
// avoids a DB round trip. Best-effort: GetAttemptState falls back to the DB.
func (s *AttemptService) cacheStartTime(ctx context.Context, examID uuid.UUID, studentID int, startedAt time.Time) {
	key := config.CacheKey.AttemptStartKey(examID.String(), studentID)
	if err := s.rdb.Set(ctx, key, startedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache attempt start time")
	}
}

// VerifyActiveAttempt checks that a student has an IN_PROGRESS attempt for
// the given exam.
func (s *AttemptService) VerifyActiveAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAlreadySubmitted
	}
	return attempt, nil
}

// GetAttemptState rebuilds the reload-recovery snapshot: autosaved answers,
// per-question statuses, the persisted shuffle order, the remaining time
// computed from the durable start timestamp, and the proctoring exit count.
func (s *AttemptService) GetAttemptState(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptState, error) {
	attempt, err := s.VerifyActiveAttempt(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(examID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	statuses, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptStatusesKey(examID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get question statuses: %w", err)
	}

	durationStr, err := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get exam duration: %w", err)
	}
	durationMinutes, err := strconv.Atoi(durationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid duration format in redis: %w", err)
	}

	startTimeUnix, err := s.getStartTime(ctx, examID, studentID, attempt)
	if err != nil {
		return nil, err
	}

	endTime := time.Unix(startTimeUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	exitCount := 0
	exitStr, err := s.rdb.Get(ctx, config.CacheKey.ProctorExitCountKey(examID.String(), studentID)).Result()
	if err == nil {
		exitCount, _ = strconv.Atoi(exitStr)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get exit count: %w", err)
	}

	return &model.AttemptState{
		ExamID:           examID,
		StudentID:        studentID,
		AutosavedAnswers: answers,
		Statuses:         statuses,
		QuestionOrder:    attempt.QuestionOrder,
		RemainingTime:    remaining.Seconds(),
		ExitCount:        exitCount,
	}, nil
}

// getStartTime reads the attempt start from Redis with a DB fallback that
// self-heals the cache.
func (s *AttemptService) getStartTime(ctx context.Context, examID uuid.UUID, studentID int, attempt *model.ExamAttempt) (int64, error) {
	startKey := config.CacheKey.AttemptStartKey(examID.String(), studentID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if errors.Is(err, redis.Nil) {
		startTimeUnix := attempt.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startTimeUnix, 0)
		return startTimeUnix, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis error getting start time: %w", err)
	}

	startTimeUnix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid start time format in cache: %w", err)
	}
	return startTimeUnix, nil
}
