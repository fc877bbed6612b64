package domain

import (
	"time"
)

// Chat is a named conversation thread owned by exactly one user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"nombre_chat"`
	CreatedAt time.Time `json:"fecha_creacion"`
	Context   *string   `json:"contexto"`
}
