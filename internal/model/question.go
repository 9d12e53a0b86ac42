package model

import (
	"github.com/google/uuid"
)

// TestCase is a single input/expected-output pair for a coding question.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Question represents a single coding question owned by an exam.
type Question struct {
	ID       uuid.UUID  `json:"id"`
	ExamID   uuid.UUID  `json:"exam_id"`
	Prompt   string     `json:"prompt"`
	OrderNum int        `json:"order_num"`
	// TestCases drive auto-grading. A question without test cases is run
	// free-form and always scores zero on final grading.
	TestCases []TestCase `json:"test_cases"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Prompt    string     `json:"prompt" binding:"required,min=1,max=10000"`
	OrderNum  int        `json:"order_num" binding:"min=0"`
	TestCases []TestCase `json:"test_cases" binding:"omitempty,dive"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
