package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codelock/codelock-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question data access. Test cases live as a
// jsonb column on the question row.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves an exam's questions in authored order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, prompt, order_num, test_cases
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC, id ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var rawCases []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Prompt, &q.OrderNum, &rawCases); err != nil {
			return nil, err
		}
		if len(rawCases) > 0 {
			if err := json.Unmarshal(rawCases, &q.TestCases); err != nil {
				return nil, fmt.Errorf("unmarshal test cases for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Add inserts one question.
func (r *QuestionRepository) Add(ctx context.Context, q *model.Question) error {
	cases, err := json.Marshal(q.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, prompt, order_num, test_cases)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		q.ExamID, q.Prompt, q.OrderNum, cases,
	).Scan(&q.ID)
}

// ReplaceForExam atomically swaps an exam's full question set and refreshes
// the denormalized question_count.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	for i := range questions {
		cases, err := json.Marshal(questions[i].TestCases)
		if err != nil {
			return fmt.Errorf("marshal test cases: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, prompt, order_num, test_cases)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			examID, questions[i].Prompt, questions[i].OrderNum, cases,
		).Scan(&questions[i].ID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exams SET question_count = $1, updated_at = NOW() WHERE id = $2`,
		len(questions), examID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
