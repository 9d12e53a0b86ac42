package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents a coding exam definition. Immutable once published;
// read-only to student attempts.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AuthorID        int        `json:"author_id"`
	DurationMinutes int        `json:"duration_minutes"`
	// MinTimeMinutes is the minimum time a student must spend before a
	// manual submit is accepted.
	MinTimeMinutes int        `json:"min_time_minutes"`
	Language       string     `json:"language"`
	EntryToken     string     `json:"entry_token,omitempty"`
	QuestionCount  int        `json:"question_count"`
	Status         ExamStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=5000"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
	MinTimeMinutes  int    `json:"min_time_minutes" binding:"omitempty,min=0,max=480"`
	Language        string `json:"language" binding:"required,min=1,max=32"`
	EntryToken      string `json:"entry_token" binding:"omitempty,min=4,max=20"`
}

// UpdateExamRequest is the payload for updating an existing draft exam.
type UpdateExamRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=5000"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	MinTimeMinutes  int    `json:"min_time_minutes" binding:"omitempty,min=0,max=480"`
	Language        string `json:"language" binding:"omitempty,min=1,max=32"`
	EntryToken      string `json:"entry_token" binding:"omitempty,min=4,max=20"`
}

// ExamPaper is the Redis-cached payload sent to students.
type ExamPaper struct {
	ExamID         uuid.UUID  `json:"exam_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Duration       int        `json:"duration_minutes"`
	MinTimeMinutes int        `json:"min_time_minutes"`
	Language       string     `json:"language"`
	Questions      []Question `json:"questions"`
}

// JoinExamRequest is the payload for a student joining an exam. The token is
// optional: exams without one are open to every student.
type JoinExamRequest struct {
	EntryToken string `json:"entry_token" binding:"omitempty,min=4,max=20"`
}
