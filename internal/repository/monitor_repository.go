package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the live exam monitoring feature.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// AttemptOverview is one row of the faculty monitor table.
type AttemptOverview struct {
	StudentID  int       `json:"student_id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	Score      *float64  `json:"score,omitempty"`
}

// ListAttemptOverviews returns every attempt for an exam joined with student
// identity and the submission score where one exists.
func (r *MonitorRepository) ListAttemptOverviews(ctx context.Context, examID uuid.UUID) ([]AttemptOverview, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, st.name, st.roll_number, a.status, a.started_at, s.score
		 FROM exam_attempts a
		 JOIN students st ON st.id = a.student_id
		 LEFT JOIN submissions s ON s.exam_id = a.exam_id AND s.student_id = a.student_id
		 WHERE a.exam_id = $1
		 ORDER BY a.started_at ASC`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overviews []AttemptOverview
	for rows.Next() {
		var o AttemptOverview
		if err := rows.Scan(&o.StudentID, &o.Name, &o.RollNumber, &o.Status, &o.StartedAt, &o.Score); err != nil {
			return nil, err
		}
		overviews = append(overviews, o)
	}
	return overviews, rows.Err()
}

// GetAnsweredCounts returns the count of answered questions for every student
// who has at least one autosaved answer recorded for the given exam.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM student_answers
		 WHERE exam_id = $1
		 GROUP BY student_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		result[sid] = count
	}
	return result, rows.Err()
}

// GetViolationCounts returns the number of proctoring violations recorded for
// each student in the given exam.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM exam_violations
		 WHERE exam_id = $1
		 GROUP BY student_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}
