// handlers/web/email.go
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"inboxai/handlers/api"
	"inboxai/internal/mailbox"
	"inboxai/internal/render"
	"inboxai/models"
)

type EmailHandler struct {
	store     *session.Store
	mailboxes api.Mailboxes
	renderer  *render.Renderer
	aiEnabled bool
	logger    *slog.Logger
}

func NewEmailHandler(store *session.Store, mailboxes api.Mailboxes, renderer *render.Renderer, aiEnabled bool, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		store:     store,
		mailboxes: mailboxes,
		renderer:  renderer,
		aiEnabled: aiEnabled,
		logger:    logger,
	}
}

// failPage sends reauth errors back to the login page and everything
// else to the error handler.
func (h *EmailHandler) failPage(c *fiber.Ctx, err error) error {
	if api.NeedsReauth(err) {
		if email := api.GetSessionEmail(c); email != "" {
			h.mailboxes.Evict(email)
		}
		if c.Get("HX-Request") != "" {
			c.Set("HX-Redirect", "/login?error=reauth")
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Redirect("/login?error=reauth")
	}
	return fiber.NewError(api.StatusFor(err), err.Error())
}

// HandleInbox renders the main inbox page and starts the category
// prefetch when nothing is loaded yet.
func (h *EmailHandler) HandleInbox(c *fiber.Ctx) error {
	email := api.GetSessionEmail(c)
	if email == "" {
		return c.Redirect("/login")
	}

	s, err := h.mailboxes.Get(c.UserContext(), email)
	if err != nil {
		return h.failPage(c, err)
	}
	if len(s.Categories()) == 0 {
		ctx := context.WithoutCancel(c.UserContext())
		go func() {
			if _, err := s.Prefetch(ctx, models.ViewInbox); err != nil {
				h.logger.Warn("inbox prefetch failed", "user", email, "err", err)
			}
		}()
	}

	// Get JWT token for API requests
	token, err := api.GetSessionToken(c, h.store)
	if err != nil {
		return c.Redirect("/login")
	}

	return c.Render("inbox", fiber.Map{
		"Email":      email,
		"Name":       api.GetSessionName(c),
		"Views":      []models.View{models.ViewInbox, models.ViewStarred, models.ViewSent, models.ViewTrash},
		"Categories": models.Categories,
		"Active":     s.Active(),
		"Token":      token,
		"AIEnabled":  h.aiEnabled,
	})
}

// HandleMailbox renders one page of a view as the email-list partial.
// nav=next or nav=prev pages within the active view.
func (h *EmailHandler) HandleMailbox(c *fiber.Ctx) error {
	view, err := models.ParseView(c.Params("view"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	category, err := models.ParseCategory(c.Query("category"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	key := models.Key(view, category)

	s, err := h.mailboxes.Get(c.UserContext(), api.GetSessionEmail(c))
	if err != nil {
		return h.failPage(c, err)
	}

	var page models.PageState
	switch c.Query("nav") {
	case "next":
		page, err = s.Next(c.UserContext(), key)
	case "prev":
		page, err = s.Prev(c.UserContext(), key)
	default:
		page, err = s.Open(c.UserContext(), key)
	}
	if err != nil {
		return h.failPage(c, err)
	}

	return c.Render("partials/email-list", fiber.Map{
		"Page":       page,
		"Key":        key,
		"HasNext":    page.HasNext(),
		"HasPrev":    page.HasPrev(),
		"Categories": categoriesFor(view),
	}, "")
}

func categoriesFor(v models.View) []models.Category {
	if !v.HasCategories() {
		return nil
	}
	return models.Categories
}

// HandleThread renders a conversation with quoted history collapsed.
func (h *EmailHandler) HandleThread(c *fiber.Ctx) error {
	threadID := c.Params("threadId")
	email := api.GetSessionEmail(c)

	s, err := h.mailboxes.Get(c.UserContext(), email)
	if err != nil {
		return h.failPage(c, err)
	}
	msgs, err := h.renderer.RenderThread(c.UserContext(), s.Provider(), threadID, email)
	if err != nil {
		return h.failPage(c, err)
	}

	subject := ""
	if len(msgs) > 0 {
		subject = msgs[0].Subject
	}
	return c.Render("partials/thread", fiber.Map{
		"ThreadID":  threadID,
		"Subject":   subject,
		"ReplyTo":   replyTarget(msgs),
		"Messages":  msgs,
		"AIEnabled": h.aiEnabled,
	}, "")
}

// replyTarget is the sender of the latest message not sent by the user,
// or the recipients of the latest message when every message is the user's.
func replyTarget(msgs []models.ThreadMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].FromSelf {
			return msgs[i].From
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].To
	}
	return ""
}

var _ api.Mailboxes = (*mailbox.Registry)(nil)
