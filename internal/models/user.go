package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCredits = 10000

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Credits      float64   `json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
}
