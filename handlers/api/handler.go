package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"inboxai/internal/assist"
	"inboxai/internal/mailbox"
	"inboxai/internal/render"
)

// Mailboxes hands out the per-user mailbox state.
type Mailboxes interface {
	Get(ctx context.Context, email string) (*mailbox.State, error)
	Evict(email string)
}

// Handler serves the JSON API.
type Handler struct {
	mailboxes Mailboxes
	renderer  *render.Renderer
	assistant *assist.Assistant
	logger    *slog.Logger
}

func NewHandler(mailboxes Mailboxes, renderer *render.Renderer, assistant *assist.Assistant, logger *slog.Logger) *Handler {
	return &Handler{
		mailboxes: mailboxes,
		renderer:  renderer,
		assistant: assistant,
		logger:    logger,
	}
}

// state resolves the caller's mailbox state.
func (h *Handler) state(c *fiber.Ctx) (*mailbox.State, error) {
	email := GetSessionEmail(c)
	if email == "" {
		return nil, ErrNotSignedIn
	}
	return h.mailboxes.Get(c.UserContext(), email)
}

// fail logs and writes err. A state whose grant is gone is evicted so the
// next sign-in starts fresh.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	status := StatusFor(err)
	email := GetSessionEmail(c)
	if NeedsReauth(err) && email != "" {
		h.mailboxes.Evict(email)
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(op+" failed", "user", email, "status", status, "err", err)
	} else {
		h.logger.Debug(op+" rejected", "user", email, "status", status, "err", err)
	}
	return c.Status(status).JSON(ErrorBody(err, status))
}

// Register mounts the API routes on r.
func (h *Handler) Register(r fiber.Router) {
	mb := r.Group("/mailbox")
	mb.Get("/categories", h.GetCategories)
	mb.Post("/refresh", h.Refresh)
	mb.Post("/next", h.NextPage)
	mb.Post("/prev", h.PrevPage)
	mb.Put("/selection", h.PutSelection)
	mb.Get("/:view", h.OpenView)

	emails := r.Group("/emails")
	emails.Get("/", h.ListEmails)
	emails.Get("/thread/:threadId", h.GetThread)
	emails.Post("/star", h.ToggleStar)
	emails.Post("/mark-read", h.MarkRead)
	emails.Post("/mark-read-bulk", h.MarkReadBulk)
	emails.Post("/delete", h.DeleteEmails)
	emails.Post("/send", h.SendEmail)
	emails.Get("/:id", h.GetEmail)

	compose := r.Group("/compose")
	compose.Get("/", h.GetDraft)
	compose.Post("/", h.OpenDraft)
	compose.Put("/", h.UpdateDraft)
	compose.Delete("/", h.DiscardDraft)
	compose.Post("/send", h.SendDraft)
	compose.Post("/ai-reply", h.DraftAIReply)
	compose.Post("/improve", h.DraftImprove)

	ai := r.Group("/ai")
	ai.Post("/generate-reply", h.GenerateReply)
	ai.Post("/improve-email", h.ImproveEmail)
}
