package model

import "time"

// User is a registered exam candidate.
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// SelectAnswerRequest records a choice for the current question or one of
// its sub-items.
type SelectAnswerRequest struct {
	TargetID string `json:"target_id" binding:"required,uuid"`
	Value    Answer `json:"value"`
}
