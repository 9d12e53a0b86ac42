package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus marks how a submission ended.
type SubmissionStatus string

const (
	// SubmissionStatusGraded is a normal, student-initiated (or timer-zero)
	// submission.
	SubmissionStatusGraded SubmissionStatus = "GRADED"
	// SubmissionStatusSuspicious is a submission forced by the proctoring
	// countdown after the student left secure mode.
	SubmissionStatusSuspicious SubmissionStatus = "SUSPICIOUS"
)

// CaseResult is the outcome of one test case execution.
type CaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
}

// GradingResult is the outcome of grading one question's source code.
// Either Cases is populated (test-case grading) or Output/Error carry the
// raw run result of a free-form execution.
type GradingResult struct {
	Output      string       `json:"output,omitempty"`
	Error       string       `json:"error,omitempty"`
	Cases       []CaseResult `json:"cases,omitempty"`
	TotalCases  int          `json:"total_cases"`
	TotalPassed int          `json:"total_passed"`
}

// QuestionMark is the final per-question grading outcome inside a submission.
type QuestionMark struct {
	QuestionID  string  `json:"question_id"`
	Mark        float64 `json:"mark"`
	TotalCases  int     `json:"total_cases"`
	TotalPassed int     `json:"total_passed"`
	Error       string  `json:"error,omitempty"`
}

// SubmissionSummary is a submission row joined with student identity, used
// in faculty result listings.
type SubmissionSummary struct {
	ID            uuid.UUID        `json:"id"`
	StudentID     int              `json:"student_id"`
	StudentName   string           `json:"student_name"`
	RollNumber    string           `json:"roll_number"`
	Score         float64          `json:"score"`
	Status        SubmissionStatus `json:"status"`
	AutoSubmitted bool             `json:"auto_submitted"`
	ExitCount     int              `json:"exit_count"`
	CompletedAt   time.Time        `json:"completed_at"`
}

// SubmissionRecord is the single persisted result of an attempt. One per
// (student, exam) pair; writes are idempotent upserts on that key.
type SubmissionRecord struct {
	ID            uuid.UUID        `json:"id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	StudentID     int              `json:"student_id"`
	Answers       map[string]string `json:"answers"`
	QuestionMarks []QuestionMark   `json:"question_marks"`
	Score         float64          `json:"score"`
	Status        SubmissionStatus `json:"status"`
	AutoSubmitted bool             `json:"auto_submitted"`
	ExitCount     int              `json:"exit_count"`
	CompletedAt   time.Time        `json:"completed_at"`
}
