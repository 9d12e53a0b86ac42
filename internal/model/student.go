package model

import "time"

// Student represents a student account.
type Student struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	RollNumber   string    `json:"roll_number"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StudentLoginRequest is the student login payload.
type StudentLoginRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=1,max=32"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
}

// CreateStudentRequest is the payload for creating a student account.
type CreateStudentRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=255"`
	RollNumber string `json:"roll_number" binding:"required,min=1,max=32"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
}
