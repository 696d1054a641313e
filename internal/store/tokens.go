package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Token is a stored OAuth grant. Token strings are stored as given; the
// caller seals them.
type Token struct {
	UserEmail    string
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

type tokenRow struct {
	UserEmail    string `db:"user_email"`
	Provider     string `db:"provider"`
	AccessToken  string `db:"access_token"`
	RefreshToken string `db:"refresh_token"`
	TokenType    string `db:"token_type"`
	ExpiresAt    int64  `db:"expires_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r tokenRow) token() Token {
	t := Token{
		UserEmail:    r.UserEmail,
		Provider:     r.Provider,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		UpdatedAt:    time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.ExpiresAt > 0 {
		t.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	}
	return t
}

// SaveToken upserts the grant for (user, provider). An empty refresh
// token keeps the stored one, since Google only sends it on consent.
func (s *SQLiteStore) SaveToken(ctx context.Context, t Token) error {
	if t.UserEmail == "" || t.Provider == "" {
		return fmt.Errorf("token user and provider must not be empty")
	}
	var expires int64
	if !t.ExpiresAt.IsZero() {
		expires = t.ExpiresAt.UTC().Unix()
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (user_email, provider, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_email, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN oauth_tokens.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		strings.ToLower(t.UserEmail), t.Provider, t.AccessToken, t.RefreshToken, t.TokenType, expires, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken loads the grant for (user, provider).
func (s *SQLiteStore) GetToken(ctx context.Context, email, provider string) (Token, error) {
	var r tokenRow
	err := s.db.GetContext(ctx, &r,
		"SELECT * FROM oauth_tokens WHERE user_email = ? AND provider = ?",
		strings.ToLower(email), provider)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("getting token: %w", err)
	}
	return r.token(), nil
}

// DeleteToken removes the grant. Missing rows are not an error.
func (s *SQLiteStore) DeleteToken(ctx context.Context, email, provider string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM oauth_tokens WHERE user_email = ? AND provider = ?",
		strings.ToLower(email), provider)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
