package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAttemptExists is returned when a student already holds an attempt row
// for the exam.
var ErrAttemptExists = errors.New("attempt already exists")

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt. The unique (exam_id, student_id) constraint
// makes a second join race lose cleanly: it reports ErrAttemptExists instead
// of a duplicate row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	order, err := json.Marshal(a.QuestionOrder)
	if err != nil {
		return fmt.Errorf("marshal question order: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, status, question_order)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.StudentID, a.Status, order,
	).Scan(&a.ID, &a.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAttemptExists
	}
	return err
}

// GetByExamAndStudent retrieves a student's attempt for an exam, if any.
func (r *AttemptRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	var order []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status, question_order
		 FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status, &order)
	if err != nil {
		return nil, err
	}
	if len(order) > 0 {
		if err := json.Unmarshal(order, &a.QuestionOrder); err != nil {
			return nil, fmt.Errorf("unmarshal question order: %w", err)
		}
	}
	return a, nil
}

// Complete marks an attempt finished.
func (r *AttemptRepository) Complete(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = $1, finished_at = NOW()
		 WHERE exam_id = $2 AND student_id = $3`,
		model.AttemptStatusCompleted, examID, studentID)
	return err
}
