package db

import (
	"database/sql"
	"time"
)

// Submission lifecycle. Transitions are owned by the correction workflow:
// PENDING -> PROCESSING -> COMPLETED | FAILED.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

type Submission struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Theme        string         `db:"theme"`
	EssayText    string         `db:"essay_text"`
	Status       string         `db:"status"`
	Result       []byte         `db:"result"`
	ErrorMessage sql.NullString `db:"error_message"`
	PhotoRef     sql.NullString `db:"photo_ref"`
	CreatedAt    time.Time      `db:"created_at"`
}

type User struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Name         sql.NullString `db:"name"`
	CreatedAt    time.Time      `db:"created_at"`
}
