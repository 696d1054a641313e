package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a signed-in Google account.
type User struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Name      string `db:"name"`
	AvatarURL string `db:"avatar_url"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// UpsertUser creates the user or refreshes its profile fields, keyed by
// email, and returns the stored row.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u User) (User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return User{}, fmt.Errorf("user email must not be empty")
	}
	now := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		uuid.New().String(), u.Email, u.Name, u.AvatarURL, now, now,
	)
	if err != nil {
		return User{}, fmt.Errorf("upserting user: %w", err)
	}
	return s.GetUser(ctx, u.Email)
}

// GetUser loads a user by email.
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE email = ?", strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}
