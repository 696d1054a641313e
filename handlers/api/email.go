// handlers/api/email.go
package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"inboxai/models"
)

// ListEmails is a raw adapter listing that bypasses the view state.
func (h *Handler) ListEmails(c *fiber.Ctx) error {
	key, err := parseKey(c.Query("view"), c.Query("category"))
	if err != nil {
		return WriteError(c, err)
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "list emails", err)
	}
	res, err := s.Provider().ListMessages(c.UserContext(), key.View, key.Category, c.Query("pageToken"))
	if err != nil {
		return h.fail(c, "list emails", err)
	}
	if res.Emails == nil {
		res.Emails = []models.EmailSummary{}
	}
	return c.JSON(res)
}

// GetThread returns every message of a thread with decoded bodies.
func (h *Handler) GetThread(c *fiber.Ctx) error {
	threadID := c.Params("threadId")
	if threadID == "" {
		return WriteError(c, badRequest("thread id required"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "get thread", err)
	}
	msgs, err := h.renderer.RenderThread(c.UserContext(), s.Provider(), threadID, GetSessionEmail(c))
	if err != nil {
		return h.fail(c, "get thread", err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// GetEmail returns a single decoded message.
func (h *Handler) GetEmail(c *fiber.Ctx) error {
	id := c.Params("id")
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "get email", err)
	}
	msg, err := s.Provider().GetMessage(c.UserContext(), id)
	if err != nil {
		return h.fail(c, "get email", err)
	}
	return c.JSON(h.renderer.RenderMessage(msg, GetSessionEmail(c)))
}

type messageRequest struct {
	MessageID string `json:"messageId"`
}

func (h *Handler) ToggleStar(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil || req.MessageID == "" {
		return WriteError(c, badRequest("messageId is required"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "toggle star", err)
	}
	email, err := s.ToggleStar(c.UserContext(), req.MessageID)
	if err != nil {
		return h.fail(c, "toggle star", err)
	}
	return c.JSON(fiber.Map{"success": true, "email": email})
}

func (h *Handler) MarkRead(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil || req.MessageID == "" {
		return WriteError(c, badRequest("messageId is required"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "mark read", err)
	}
	email, err := s.MarkRead(c.UserContext(), req.MessageID)
	if err != nil {
		return h.fail(c, "mark read", err)
	}
	return c.JSON(fiber.Map{"success": true, "email": email})
}

type bulkRequest struct {
	MessageIDs []string `json:"messageIds"`
	MarkAsRead *bool    `json:"markAsRead"`
}

func (h *Handler) MarkReadBulk(c *fiber.Ctx) error {
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil || req.MessageIDs == nil {
		return WriteError(c, badRequest("Message IDs are required"))
	}
	read := true
	if req.MarkAsRead != nil {
		read = *req.MarkAsRead
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "mark read bulk", err)
	}
	return c.JSON(s.BulkMarkRead(c.UserContext(), req.MessageIDs, read))
}

func (h *Handler) DeleteEmails(c *fiber.Ctx) error {
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil || req.MessageIDs == nil {
		return WriteError(c, badRequest("Message IDs are required"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "delete", err)
	}
	return c.JSON(s.BulkDelete(c.UserContext(), req.MessageIDs))
}

type sendRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	ThreadID string `json:"threadId"`
}

// SendEmail sends a message directly, without going through the draft.
func (h *Handler) SendEmail(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, badRequest("invalid request body"))
	}
	if strings.TrimSpace(req.To) == "" {
		return WriteError(c, badRequest("recipient is required"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "send", err)
	}
	id, err := s.Provider().Send(c.UserContext(), models.OutgoingMessage{
		FromName:  GetSessionName(c),
		FromEmail: GetSessionEmail(c),
		To:        req.To,
		Subject:   req.Subject,
		HTMLBody:  req.Content,
		ThreadID:  req.ThreadID,
	})
	if err != nil {
		return h.fail(c, "send", err)
	}
	return c.JSON(fiber.Map{"messageId": id})
}
