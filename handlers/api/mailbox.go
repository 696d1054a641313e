package api

import (
	"github.com/gofiber/fiber/v2"

	"inboxai/internal/mailbox"
	"inboxai/models"
)

type pageResponse struct {
	models.PageState
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

func newPageResponse(p models.PageState) pageResponse {
	if p.Emails == nil {
		p.Emails = []models.EmailSummary{}
	}
	if p.PrevTokens == nil {
		p.PrevTokens = []string{}
	}
	return pageResponse{PageState: p, HasNext: p.HasNext(), HasPrev: p.HasPrev()}
}

// parseKey reads a view key from route param or query values.
func parseKey(view, category string) (models.ViewKey, error) {
	v, err := models.ParseView(view)
	if err != nil {
		return models.ViewKey{}, badRequest(err.Error())
	}
	cat, err := models.ParseCategory(category)
	if err != nil {
		return models.ViewKey{}, badRequest(err.Error())
	}
	return models.Key(v, cat), nil
}

// navKey is the key a next/prev call targets: the query's view and
// category when given, otherwise the active one.
func navKey(c *fiber.Ctx, s *mailbox.State) (models.ViewKey, error) {
	if c.Query("view") == "" && c.Query("category") == "" {
		return s.Active(), nil
	}
	return parseKey(c.Query("view"), c.Query("category"))
}

// OpenView switches to a view or category and returns its first page.
func (h *Handler) OpenView(c *fiber.Ctx) error {
	key, err := parseKey(c.Params("view"), c.Query("category"))
	if err != nil {
		return WriteError(c, err)
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "open view", err)
	}
	page, err := s.Open(c.UserContext(), key)
	if err != nil {
		return h.fail(c, "open view", err)
	}
	return c.JSON(newPageResponse(page))
}

// Refresh re-runs the category prefetch for a view.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	view, err := models.ParseView(c.Query("view"))
	if err != nil {
		return WriteError(c, badRequest(err.Error()))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	cats, err := s.Refresh(c.UserContext(), view)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return c.JSON(fiber.Map{
		"categories": cats,
		"current":    newPageResponse(s.Current()),
	})
}

func (h *Handler) NextPage(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "next page", err)
	}
	key, err := navKey(c, s)
	if err != nil {
		return WriteError(c, err)
	}
	page, err := s.Next(c.UserContext(), key)
	if err != nil {
		return h.fail(c, "next page", err)
	}
	return c.JSON(newPageResponse(page))
}

func (h *Handler) PrevPage(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "previous page", err)
	}
	key, err := navKey(c, s)
	if err != nil {
		return WriteError(c, err)
	}
	page, err := s.Prev(c.UserContext(), key)
	if err != nil {
		return h.fail(c, "previous page", err)
	}
	return c.JSON(newPageResponse(page))
}

// GetCategories returns the prefetched first pages by category.
func (h *Handler) GetCategories(c *fiber.Ctx) error {
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "categories", err)
	}
	return c.JSON(fiber.Map{
		"categories": s.Categories(),
		"active":     s.Active(),
	})
}

type selectionRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// PutSelection replaces the multi-select set.
func (h *Handler) PutSelection(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, badRequest("invalid request body"))
	}
	s, err := h.state(c)
	if err != nil {
		return h.fail(c, "selection", err)
	}
	sel := s.Select(req.MessageIDs)
	if sel == nil {
		sel = []string{}
	}
	return c.JSON(fiber.Map{"selection": sel})
}
