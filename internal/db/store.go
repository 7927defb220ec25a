package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

// Store wraps the submission and user queries. The correction workflow is
// the only writer of submission status; handlers only create and read.
type Store struct {
	DB *sqlx.DB
}

func NewStore(dbx *sqlx.DB) *Store {
	return &Store{DB: dbx}
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	_, err := s.DB.ExecContext(ctx,
		`insert into users(id, email, password_hash, name) values($1,$2,$3,$4)`,
		u.ID, u.Email, u.PasswordHash, u.Name)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.DB.GetContext(ctx, &u, `select * from users where email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub *Submission) error {
	_, err := s.DB.ExecContext(ctx,
		`insert into submissions(id, user_id, theme, essay_text, status, photo_ref)
		 values($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.UserID, sub.Theme, sub.EssayText, sub.Status, sub.PhotoRef)
	return err
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	err := s.DB.GetContext(ctx, &sub, `select * from submissions where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetUserSubmission scopes the lookup to the owning user.
func (s *Store) GetUserSubmission(ctx context.Context, id, userID string) (*Submission, error) {
	var sub Submission
	err := s.DB.GetContext(ctx, &sub, `select * from submissions where id=$1 and user_id=$2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, userID string) ([]Submission, error) {
	subs := make([]Submission, 0)
	err := s.DB.SelectContext(ctx, &subs,
		`select * from submissions where user_id=$1 order by created_at desc`, userID)
	return subs, err
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	return s.exec(ctx, `update submissions set status=$2 where id=$1`, id, status)
}

func (s *Store) SetCompleted(ctx context.Context, id string, result []byte) error {
	return s.exec(ctx,
		`update submissions set status=$2, result=$3, error_message=null where id=$1`,
		id, StatusCompleted, result)
}

func (s *Store) SetFailed(ctx context.Context, id, msg string) error {
	return s.exec(ctx,
		`update submissions set status=$2, error_message=$3 where id=$1`,
		id, StatusFailed, msg)
}

func (s *Store) SetEssayText(ctx context.Context, id, text string) error {
	return s.exec(ctx, `update submissions set essay_text=$2 where id=$1`, id, text)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission %v: %w", args[0], ErrNotFound)
	}
	return nil
}
