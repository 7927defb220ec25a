package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"essay-grader/internal/auth"
	"essay-grader/internal/db"
	"essay-grader/internal/schemas"
	"essay-grader/internal/themes"
	"essay-grader/internal/worker"
)

const maxPhotoBytes = 10 << 20

// Store is the persistence surface the handlers use.
type Store interface {
	CreateUser(ctx context.Context, u *db.User) error
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	CreateSubmission(ctx context.Context, sub *db.Submission) error
	GetUserSubmission(ctx context.Context, id, userID string) (*db.Submission, error)
	ListSubmissions(ctx context.Context, userID string) ([]db.Submission, error)
}

// ThemeSuggester generates an essay theme on demand.
type ThemeSuggester interface {
	Suggest(ctx context.Context) (*themes.Suggestion, error)
}

// Enqueuer is the slice of the asynq client the handlers need.
// Satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PhotoStore stores uploaded essay photos. Satisfied by *storage.Client.
type PhotoStore interface {
	PutPhoto(ctx context.Context, data []byte, contentType string) (string, error)
}

type Server struct {
	Store   Store
	Photos  PhotoStore
	Asynq   Enqueuer
	Tokens  *auth.TokenIssuer
	Themes  ThemeSuggester
	Healthy func() error
}

func NewServer(addr string, s *Server) *http.Server {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(s.Tokens))
			r.Get("/themes/suggest", s.suggestTheme)
			r.Post("/essays", s.createEssay)
			r.Post("/essays/photo", s.createEssayPhoto)
			r.Get("/essays", s.listEssays)
			r.Get("/essays/{id}", s.getEssay)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if s.Healthy != nil {
			if err := s.Healthy(); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &http.Server{Addr: addr, Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req schemas.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, 400, errResp{"email and password are required"})
		return
	}
	switch _, err := s.Store.GetUserByEmail(r.Context(), req.Email); {
	case err == nil:
		writeJSON(w, 409, errResp{"email already registered"})
		return
	case !errors.Is(err, db.ErrNotFound):
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	u := &db.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: auth.HashPassword(req.Password),
		Name:         sql.NullString{String: req.Name, Valid: req.Name != ""},
	}
	if err := s.Store.CreateUser(r.Context(), u); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 201, schemas.UserOut{ID: u.ID, Email: u.Email, Name: req.Name})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req schemas.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	u, err := s.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || u.PasswordHash != auth.HashPassword(req.Password) {
		writeJSON(w, 401, errResp{"invalid credentials"})
		return
	}
	tok, err := s.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) createEssay(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateEssayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Theme == "" || req.EssayText == "" {
		writeJSON(w, 400, errResp{"theme and essay_text are required"})
		return
	}
	sub := &db.Submission{
		ID:        uuid.NewString(),
		UserID:    userFrom(r).UserID,
		Theme:     req.Theme,
		EssayText: req.EssayText,
		Status:    db.StatusPending,
	}
	if err := s.Store.CreateSubmission(r.Context(), sub); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	task, err := worker.NewCorrectEssayTask(worker.CorrectEssayPayload{SubmissionID: sub.ID})
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 202, schemas.SubmissionAccepted{
		ID:      sub.ID,
		Status:  sub.Status,
		Message: "Your essay was received and is queued for correction.",
	})
}

func (s *Server) createEssayPhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	theme := r.FormValue("theme")
	if theme == "" {
		writeJSON(w, 400, errResp{"theme is required"})
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, 400, errResp{"photo file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes))
	if err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	ref, err := s.Photos.PutPhoto(r.Context(), data, contentType)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	sub := &db.Submission{
		ID:       uuid.NewString(),
		UserID:   userFrom(r).UserID,
		Theme:    theme,
		Status:   db.StatusPending,
		PhotoRef: sql.NullString{String: ref, Valid: true},
	}
	if err := s.Store.CreateSubmission(r.Context(), sub); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	task, err := worker.NewTranscribePhotoTask(sub.ID)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 202, schemas.SubmissionAccepted{
		ID:      sub.ID,
		Status:  sub.Status,
		Message: "Your photo was received and is queued for transcription and correction.",
	})
}

func (s *Server) listEssays(w http.ResponseWriter, r *http.Request) {
	subs, err := s.Store.ListSubmissions(r.Context(), userFrom(r).UserID)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.SubmissionOut, 0, len(subs))
	for i := range subs {
		out = append(out, submissionOut(&subs[i]))
	}
	writeJSON(w, 200, out)
}

func (s *Server) getEssay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.Store.GetUserSubmission(r.Context(), id, userFrom(r).UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeJSON(w, 404, errResp{"submission not found"})
			return
		}
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, submissionOut(sub))
}

func (s *Server) suggestTheme(w http.ResponseWriter, r *http.Request) {
	sug, err := s.Themes.Suggest(r.Context())
	if err != nil {
		writeJSON(w, 502, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.ThemeSuggestionOut{Theme: sug.Theme, MotivatingTexts: sug.MotivatingTexts})
}

func submissionOut(sub *db.Submission) schemas.SubmissionOut {
	out := schemas.SubmissionOut{
		ID:        sub.ID,
		Theme:     sub.Theme,
		Status:    sub.Status,
		CreatedAt: sub.CreatedAt,
	}
	if len(sub.Result) > 0 {
		out.Result = json.RawMessage(sub.Result)
	}
	if sub.ErrorMessage.Valid {
		out.ErrorMessage = sub.ErrorMessage.String
	}
	return out
}
