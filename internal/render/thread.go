package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"

	"inboxai/internal/address"
	"inboxai/models"
)

// ThreadSource fetches the raw messages of a thread.
type ThreadSource interface {
	GetThread(ctx context.Context, threadID string) ([]models.ThreadMessage, error)
}

// Rendered is a decoded, sanitized body with its quote split applied.
type Rendered struct {
	Body     string
	Main     string
	Quoted   string
	HasQuote bool
}

// Renderer decodes message bodies. It is safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
	logger *slog.Logger
}

func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{policy: NewPolicy(), logger: logger}
}

// Sanitize runs html through the body allow-list.
func (r *Renderer) Sanitize(s string) string {
	return r.policy.Sanitize(s)
}

// Render decodes a payload tree. It never fails: undecodable bodies are
// replaced with a visible placeholder.
func (r *Renderer) Render(p *models.MessagePart) Rendered {
	d, err := decode(p)
	switch {
	case errors.Is(err, errNoContent):
		body := "<p>" + NotAvailable + "</p>"
		return Rendered{Body: body, Main: body}
	case err != nil:
		r.logger.Warn("decode message body", "err", err)
		body := "<p>" + DecodeFailed + "</p>"
		return Rendered{Body: body, Main: body}
	}

	if !d.isHTML {
		split := SplitQuoted(d.text)
		out := Rendered{Body: PlainToHTML(d.text), Main: PlainToHTML(split.Main)}
		if split.Found {
			out.Quoted = PlainToHTML(split.Quoted)
			out.HasQuote = true
		}
		return out
	}

	split := SplitQuotedHTML(d.text)
	out := Rendered{Body: r.policy.Sanitize(d.text), Main: r.policy.Sanitize(split.Main)}
	if split.Found {
		out.Quoted = r.policy.Sanitize(split.Quoted)
		out.HasQuote = true
	}
	return out
}

// RenderMessage fills the rendered fields of m and attributes the sender.
func (r *Renderer) RenderMessage(m models.ThreadMessage, self string) models.ThreadMessage {
	body := r.Render(m.Payload)
	m.Body = body.Body
	m.Main = body.Main
	m.Quoted = body.Quoted
	m.HasQuote = body.HasQuote
	m.FromSelf = address.IsSelf(m.From, self)
	return m
}

// RenderThread fetches threadID from src and renders every message in
// provider order.
func (r *Renderer) RenderThread(ctx context.Context, src ThreadSource, threadID, self string) ([]models.ThreadMessage, error) {
	msgs, err := src.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("render thread %s: %w", threadID, err)
	}
	out := make([]models.ThreadMessage, len(msgs))
	for i, m := range msgs {
		out[i] = r.RenderMessage(m, self)
	}
	return out, nil
}
