package models

import (
	"github.com/google/uuid"
)

// Admin представляет собой структуру организатора/администратора программы
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Role         string    `json:"role"` // "admin", "organizer", etc.
	Active       bool      `json:"active"`
}
