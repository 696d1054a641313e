// internal/auth/auth.go
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"inboxai/internal/store"
)

// Provider is the oauth_tokens.provider value for Google grants.
const Provider = "google"

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrNoToken       = errors.New("no stored token")
	ErrNoIDToken     = errors.New("token response has no id_token")
	ErrUnverified    = errors.New("email address is not verified")
)

// Scopes requested at sign-in.
var Scopes = []string{
	oidc.ScopeOpenID,
	"email",
	"profile",
	gmailapi.GmailModifyScope,
}

// Identity is the verified subject of an ID token.
type Identity struct {
	Email   string
	Name    string
	Picture string
}

// IDTokenVerifier checks a raw id_token and extracts the identity.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Identity, error)
}

// TokenStore is the persistence the manager needs.
type TokenStore interface {
	UpsertUser(ctx context.Context, u store.User) (store.User, error)
	SaveToken(ctx context.Context, t store.Token) error
	GetToken(ctx context.Context, email, provider string) (store.Token, error)
	DeleteToken(ctx context.Context, email, provider string) error
}

// Sealer encrypts token strings at rest.
type Sealer interface {
	SealString(s string) (string, error)
	OpenString(s string) (string, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint when set.
	Endpoint *oauth2.Endpoint
}

// Manager runs the Google sign-in flow and hands out refreshing token
// sources backed by the store.
type Manager struct {
	config   *oauth2.Config
	verifier IDTokenVerifier
	store    TokenStore
	sealer   Sealer
	logger   *slog.Logger
}

func NewManager(cfg Config, verifier IDTokenVerifier, ts TokenStore, sealer Sealer, logger *slog.Logger) *Manager {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		verifier: verifier,
		store:    ts,
		sealer:   sealer,
		logger:   logger,
	}
}

// NewState returns a fresh CSRF state value.
func NewState() string {
	return uuid.NewString()
}

// CheckState compares the stored and returned state values.
func CheckState(expected, got string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// AuthCodeURL is the consent URL. Offline access with forced consent
// makes Google return a refresh token.
func (m *Manager) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Complete exchanges the authorization code, verifies the ID token and
// persists the user and the sealed grant.
func (m *Manager) Complete(ctx context.Context, code string) (Identity, error) {
	tok, err := m.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return Identity{}, ErrNoIDToken
	}
	id, err := m.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))

	if _, err := m.store.UpsertUser(ctx, store.User{Email: id.Email, Name: id.Name, AvatarURL: id.Picture}); err != nil {
		return Identity{}, err
	}
	if err := m.saveToken(ctx, id.Email, tok); err != nil {
		return Identity{}, err
	}
	m.logger.Info("user signed in", "user", id.Email)
	return id, nil
}

// TokenSource returns a source for the user's stored grant. Refreshed
// tokens are written back to the store.
func (m *Manager) TokenSource(ctx context.Context, email string) (oauth2.TokenSource, error) {
	tok, err := m.loadToken(ctx, email)
	if err != nil {
		return nil, err
	}
	// The source outlives the request that created it.
	base := m.config.TokenSource(context.WithoutCancel(ctx), tok)
	return &persistingSource{
		base: base,
		last: tok.AccessToken,
		save: func(t *oauth2.Token) error {
			return m.saveToken(context.Background(), email, t)
		},
		logger: m.logger.With("user", email),
	}, nil
}

// HasToken reports whether a grant is stored for email.
func (m *Manager) HasToken(ctx context.Context, email string) bool {
	_, err := m.loadToken(ctx, email)
	return err == nil
}

// Revoke forgets the user's grant.
func (m *Manager) Revoke(ctx context.Context, email string) error {
	return m.store.DeleteToken(ctx, email, Provider)
}

func (m *Manager) saveToken(ctx context.Context, email string, tok *oauth2.Token) error {
	access, err := m.sealer.SealString(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := m.sealer.SealString(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	return m.store.SaveToken(ctx, store.Token{
		UserEmail:    email,
		Provider:     Provider,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	})
}

func (m *Manager) loadToken(ctx context.Context, email string) (*oauth2.Token, error) {
	row, err := m.store.GetToken(ctx, email, Provider)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w for %s", ErrNoToken, email)
	}
	if err != nil {
		return nil, err
	}
	access, err := m.sealer.OpenString(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	refresh, err := m.sealer.OpenString(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    row.TokenType,
		Expiry:       row.ExpiresAt,
	}, nil
}

// persistingSource saves the token whenever the access token changes.
type persistingSource struct {
	base   oauth2.TokenSource
	save   func(*oauth2.Token) error
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	changed := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()
	if changed {
		if err := p.save(tok); err != nil {
			p.logger.Warn("failed to save refreshed token", "err", err)
		}
	}
	return tok, nil
}
