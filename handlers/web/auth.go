// handlers/web/auth.go
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"inboxai/handlers/api"
	"inboxai/internal/auth"
)

// Authenticator is the OAuth flow the web handlers drive.
type Authenticator interface {
	AuthCodeURL(state string) string
	Complete(ctx context.Context, code string) (auth.Identity, error)
	Revoke(ctx context.Context, email string) error
}

// Evicter drops cached per-user state.
type Evicter interface {
	Evict(email string)
}

type AuthHandler struct {
	store     *session.Store
	auth      Authenticator
	mailboxes Evicter
	jwtSecret string
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(store *session.Store, authn Authenticator, mailboxes Evicter, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:     store,
		auth:      authn,
		mailboxes: mailboxes,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		authenticated := sess.Get("authenticated")
		if authenticated == true {
			return c.Redirect("/")
		}
	}
	return c.Render("login", fiber.Map{
		"Error": loginError(c.Query("error")),
	})
}

func loginError(code string) string {
	switch code {
	case "":
		return ""
	case "state":
		return "Your sign-in attempt expired. Please try again."
	case "reauth":
		return "Your Google session expired. Please sign in again."
	case "access_denied":
		return "Access to Gmail was not granted."
	default:
		return "Sign-in failed. Please try again."
	}
}

// BeginGoogle redirects to Google's consent screen.
func (h *AuthHandler) BeginGoogle(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Session error")
	}
	state := auth.NewState()
	sess.Set("oauth_state", state)
	if err := sess.Save(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Session error")
	}
	return c.Redirect(h.auth.AuthCodeURL(state), fiber.StatusFound)
}

// GoogleCallback finishes the OAuth flow and signs the user in.
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Session error")
	}
	expected, _ := sess.Get("oauth_state").(string)
	sess.Delete("oauth_state")

	if e := c.Query("error"); e != "" {
		h.save(sess)
		return c.Redirect("/login?error=" + e)
	}
	if err := auth.CheckState(expected, c.Query("state")); err != nil {
		h.save(sess)
		h.logger.Warn("oauth callback rejected", "err", err)
		return c.Redirect("/login?error=state")
	}

	id, err := h.auth.Complete(c.UserContext(), c.Query("code"))
	if err != nil {
		h.logger.Error("oauth exchange failed", "err", err)
		h.save(sess)
		return c.Redirect("/login?error=exchange")
	}

	token, err := api.GenerateToken(id.Email, id.Name, h.jwtSecret, h.tokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to issue token")
	}

	// New identity, new session id.
	if err := sess.Regenerate(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Session error")
	}
	sess.Set("authenticated", true)
	sess.Set("email", id.Email)
	sess.Set("name", id.Name)
	sess.Set("token", token)
	if err := sess.Save(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save session")
	}

	h.mailboxes.Evict(id.Email)
	return c.Redirect("/")
}

// save persists sess on paths that redirect regardless of the outcome.
func (h *AuthHandler) save(sess *session.Session) {
	if err := sess.Save(); err != nil {
		h.logger.Warn("failed to save session", "err", err)
	}
}

// HandleLogout ends the session and forgets the stored grant.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}
	if email, ok := sess.Get("email").(string); ok && email != "" {
		if err := h.auth.Revoke(c.UserContext(), email); err != nil && !errors.Is(err, auth.ErrNoToken) {
			h.logger.Warn("failed to revoke token", "user", email, "err", err)
		}
		h.mailboxes.Evict(email)
	}
	if err := sess.Destroy(); err != nil {
		h.logger.Warn("failed to destroy session", "err", err)
	}
	return c.Redirect("/login")
}
