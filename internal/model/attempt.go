package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// ExamAttempt represents a student's single pass through an exam.
// Exactly one exists per (exam, student) pair.
type ExamAttempt struct {
	ID            uuid.UUID     `json:"id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	StudentID     int           `json:"student_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Status        AttemptStatus `json:"status"`
	QuestionOrder []string      `json:"question_order,omitempty"`
}

// AttemptState is the reload-recovery snapshot returned to the client:
// everything needed to restore the exam screen after a refresh.
type AttemptState struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	Statuses         map[string]string `json:"statuses"`
	QuestionOrder    []string          `json:"question_order"`
	RemainingTime    float64           `json:"remaining_time"`
	ExitCount        int               `json:"exit_count"`
}
