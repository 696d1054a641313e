// Package assist drafts and polishes email text with a generative model.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"inboxai/internal/address"
	"inboxai/models"
)

var (
	// ErrUnavailable is returned when no model backend is configured.
	ErrUnavailable = errors.New("assist: no model configured")
	// ErrModel wraps failures of the model backend itself.
	ErrModel = errors.New("assist: model call failed")
	// ErrEmptyInput is returned when there is nothing to work on.
	ErrEmptyInput = errors.New("assist: empty input")
)

// Generator produces model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant builds prompts and interprets model answers.
type Assistant struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// New returns an assistant over gen. A nil gen yields an assistant whose
// calls fail with ErrUnavailable.
func New(gen Generator, timeout time.Duration, logger *slog.Logger) *Assistant {
	return &Assistant{gen: gen, timeout: timeout, logger: logger}
}

// Available reports whether a backend is configured.
func (a *Assistant) Available() bool { return a != nil && a.gen != nil }

func (a *Assistant) generate(ctx context.Context, op, prompt string) (string, error) {
	if !a.Available() {
		return "", ErrUnavailable
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrModel, err)
	}
	a.logger.Debug("model call", "op", op, "duration_ms", time.Since(start).Milliseconds(), "chars", len(out))
	return out, nil
}

// ReplyRequest is the input of GenerateReply. Messages are in thread order.
type ReplyRequest struct {
	Subject  string
	Self     string
	Messages []models.ThreadMessage
}

// GenerateReply drafts a complete reply to the latest message of a thread.
func (a *Assistant) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("generate reply: %w: no messages", ErrEmptyInput)
	}
	out, err := a.generate(ctx, "generate reply", replyPrompt(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Improved is a rewritten draft.
type Improved struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// ImproveEmail rewrites a draft's subject and body.
func (a *Assistant) ImproveEmail(ctx context.Context, subject, content string) (Improved, error) {
	if strings.TrimSpace(content) == "" {
		return Improved{}, fmt.Errorf("improve email: %w: no content", ErrEmptyInput)
	}
	out, err := a.generate(ctx, "improve email", improvePrompt(subject, content))
	if err != nil {
		return Improved{}, err
	}
	return ParseImproved(out, subject), nil
}

var (
	subjectLine  = regexp.MustCompile(`SUBJECT:\s*([^\n]+)`)
	contentBlock = regexp.MustCompile(`CONTENT:\s*\n([\s\S]+)$`)
)

// ParseImproved extracts the SUBJECT:/CONTENT: template from a model
// answer. A missing subject keeps fallbackSubject and a missing content
// block keeps the whole answer.
func ParseImproved(text, fallbackSubject string) Improved {
	out := Improved{Subject: fallbackSubject, Content: strings.TrimSpace(text)}
	if m := subjectLine.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(strings.Map(dropMarkup, m[1])); s != "" {
			out.Subject = s
		}
	}
	if m := contentBlock.FindStringSubmatch(text); m != nil {
		if c := strings.TrimLeft(strings.TrimSpace(m[1]), "* "); c != "" {
			out.Content = c
		}
	}
	return out
}

func dropMarkup(r rune) rune {
	switch r {
	case '*', '[', ']':
		return -1
	}
	return r
}

func senderLabel(m models.ThreadMessage, self string) string {
	if address.IsSelf(m.From, self) {
		return m.From + " (you)"
	}
	return m.From
}
