// Package schemas holds the API request/response shapes.
package schemas

import (
	"encoding/json"
	"time"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type UserOut struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateEssayRequest struct {
	Theme     string `json:"theme"`
	EssayText string `json:"essay_text"`
}

// SubmissionAccepted is the 202 body for a newly queued submission.
type SubmissionAccepted struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmissionOut carries status and, once graded, the consensus result.
type SubmissionOut struct {
	ID           string          `json:"id"`
	Theme        string          `json:"theme"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ThemeSuggestionOut struct {
	Theme           string   `json:"theme"`
	MotivatingTexts []string `json:"motivating_texts"`
}
