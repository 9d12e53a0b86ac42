package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository handles graded submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Upsert writes a submission keyed by (exam_id, student_id). A retry after a
// partial failure overwrites the earlier row instead of duplicating it.
func (r *SubmissionRepository) Upsert(ctx context.Context, s *model.SubmissionRecord) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	marks, err := json.Marshal(s.QuestionMarks)
	if err != nil {
		return fmt.Errorf("marshal question marks: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, student_id, answers, question_marks, score,
		                          status, auto_submitted, exit_count, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET answers = EXCLUDED.answers,
		     question_marks = EXCLUDED.question_marks,
		     score = EXCLUDED.score,
		     status = EXCLUDED.status,
		     auto_submitted = EXCLUDED.auto_submitted,
		     exit_count = EXCLUDED.exit_count,
		     completed_at = EXCLUDED.completed_at
		 RETURNING id, completed_at`,
		s.ExamID, s.StudentID, answers, marks, s.Score,
		s.Status, s.AutoSubmitted, s.ExitCount,
	).Scan(&s.ID, &s.CompletedAt)
}

// GetByExamAndStudent retrieves a student's submission for an exam, if any.
func (r *SubmissionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.SubmissionRecord, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, answers, question_marks, score,
		        status, auto_submitted, exit_count, completed_at
		 FROM submissions
		 WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
}

// ListByExam retrieves every submission for an exam joined with student
// identity, best score first.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SubmissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.student_id, st.name, st.roll_number, s.score,
		        s.status, s.auto_submitted, s.exit_count, s.completed_at
		 FROM submissions s
		 JOIN students st ON st.id = s.student_id
		 WHERE s.exam_id = $1
		 ORDER BY s.score DESC, s.completed_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.SubmissionSummary
	for rows.Next() {
		var s model.SubmissionSummary
		if err := rows.Scan(&s.ID, &s.StudentID, &s.StudentName, &s.RollNumber, &s.Score,
			&s.Status, &s.AutoSubmitted, &s.ExitCount, &s.CompletedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanSubmission(row interface{ Scan(...any) error }) (*model.SubmissionRecord, error) {
	s := &model.SubmissionRecord{}
	var answers, marks []byte
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &answers, &marks, &s.Score,
		&s.Status, &s.AutoSubmitted, &s.ExitCount, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if len(marks) > 0 {
		if err := json.Unmarshal(marks, &s.QuestionMarks); err != nil {
			return nil, fmt.Errorf("unmarshal question marks: %w", err)
		}
	}
	return s, nil
}
