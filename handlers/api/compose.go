package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"inboxai/internal/assist"
	"inboxai/internal/gmail"
	"inboxai/internal/mailbox"
	"inboxai/internal/render"
	"inboxai/models"
)

func (h *Handler) GetDraft(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "get draft", err)
	}
	d, err := s.Draft()
	if err != nil {
		return h.fail(c, "get draft", err)
	}
	return c.JSON(d)
}

// OpenDraft starts a draft. A reply draft gets a normalized "Re:" subject.
func (h *Handler) OpenDraft(c *fiber.Ctx) error {
	var d models.ComposeDraft
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&d); err != nil {
			return WriteError(c, badRequest("invalid request body"))
		}
	}
	if d.InReplyToThreadID != "" && d.Subject != "" {
		d.Subject = gmail.NormalizeSubject("Re: " + d.Subject)
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "open draft", err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.OpenDraft(d))
}

type draftPatch struct {
	To      *string `json:"to"`
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

func (h *Handler) UpdateDraft(c *fiber.Ctx) error {
	var p draftPatch
	if err := c.BodyParser(&p); err != nil {
		return WriteError(c, badRequest("invalid request body"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "update draft", err)
	}
	d, err := s.UpdateDraft(func(d *models.ComposeDraft) {
		if p.To != nil {
			d.To = *p.To
		}
		if p.Subject != nil {
			d.Subject = *p.Subject
		}
		if p.Body != nil {
			d.Body = *p.Body
		}
	})
	if err != nil {
		return h.fail(c, "update draft", err)
	}
	return c.JSON(d)
}

func (h *Handler) DiscardDraft(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "discard draft", err)
	}
	s.DiscardDraft()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) SendDraft(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "send draft", err)
	}
	id, err := s.SendDraft(c.UserContext(), GetSessionName(c), GetSessionEmail(c))
	if err != nil {
		return h.fail(c, "send draft", err)
	}
	return c.JSON(fiber.Map{"messageId": id})
}

// DraftAIReply fills the open reply draft with a generated answer. A
// model failure leaves the draft untouched.
func (h *Handler) DraftAIReply(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "ai reply", err)
	}
	d, err := s.Draft()
	if err != nil {
		return h.fail(c, "ai reply", err)
	}
	if d.InReplyToThreadID == "" {
		return WriteError(c, badRequest("draft is not a reply"))
	}
	reply, err := h.replyFor(c.UserContext(), s, d.InReplyToThreadID, d.Subject, GetSessionEmail(c))
	if err != nil {
		return h.fail(c, "ai reply", err)
	}
	d, err = s.UpdateDraft(func(d *models.ComposeDraft) { d.Body = asHTML(reply) })
	if err != nil {
		return h.fail(c, "ai reply", err)
	}
	return c.JSON(d)
}

// DraftImprove rewrites the open draft's subject and body.
func (h *Handler) DraftImprove(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "improve draft", err)
	}
	d, err := s.Draft()
	if err != nil {
		return h.fail(c, "improve draft", err)
	}
	improved, err := h.assistant.ImproveEmail(c.UserContext(), d.Subject, d.Body)
	if err != nil {
		return h.fail(c, "improve draft", err)
	}
	d, err = s.UpdateDraft(func(d *models.ComposeDraft) {
		d.Subject = improved.Subject
		d.Body = asHTML(improved.Content)
	})
	if err != nil {
		return h.fail(c, "improve draft", err)
	}
	return c.JSON(d)
}

type replyRequest struct {
	ThreadID string `json:"threadId"`
	Subject  string `json:"subject"`
	Emails   []struct {
		From string `json:"from"`
		To   string `json:"to"`
		Body string `json:"body"`
	} `json:"emails"`
}

// GenerateReply drafts a reply to a thread, given by id or inline.
func (h *Handler) GenerateReply(c *fiber.Ctx) error {
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, badRequest("invalid request body"))
	}
	if req.ThreadID == "" && len(req.Emails) == 0 {
		return WriteError(c, badRequest("threadId or emails is required"))
	}
	if !h.assistant.Available() {
		return h.fail(c, "generate reply", assist.ErrUnavailable)
	}
	self := GetSessionEmail(c)

	var (
		reply string
		err   error
	)
	if req.ThreadID != "" {
		var s *mailbox.State
		if s, err = h.state(c); err != nil {
			return h.fail(c, "generate reply", err)
		}
		reply, err = h.replyFor(c.UserContext(), s, req.ThreadID, req.Subject, self)
	} else {
		msgs := make([]models.ThreadMessage, 0, len(req.Emails))
		for _, e := range req.Emails {
			msgs = append(msgs, models.ThreadMessage{From: e.From, To: e.To, Body: e.Body, Main: e.Body})
		}
		reply, err = h.assistant.GenerateReply(c.UserContext(), assist.ReplyRequest{Subject: req.Subject, Self: self, Messages: msgs})
	}
	if err != nil {
		return h.fail(c, "generate reply", err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}

type improveRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (h *Handler) ImproveEmail(c *fiber.Ctx) error {
	var req improveRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, badRequest("invalid request body"))
	}
	improved, err := h.assistant.ImproveEmail(c.UserContext(), req.Subject, req.Content)
	if err != nil {
		return h.fail(c, "improve email", err)
	}
	return c.JSON(fiber.Map{
		"improvedSubject": improved.Subject,
		"improvedContent": improved.Content,
	})
}

func (h *Handler) replyFor(ctx context.Context, s *mailbox.State, threadID, subject, self string) (string, error) {
	msgs, err := h.renderer.RenderThread(ctx, s.Provider(), threadID, self)
	if err != nil {
		return "", err
	}
	if subject == "" && len(msgs) > 0 {
		subject = msgs[0].Subject
	}
	return h.assistant.GenerateReply(ctx, assist.ReplyRequest{Subject: subject, Self: self, Messages: msgs})
}

// asHTML promotes model plain text to the editor's HTML.
func asHTML(s string) string {
	if strings.Contains(s, "</") || strings.Contains(s, "<br") {
		return s
	}
	return render.PlainToHTML(s)
}
