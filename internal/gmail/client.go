// Package gmail adapts the Gmail REST API to the mailbox's canonical
// records. The adapter holds no mailbox state.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxai/models"
	"inboxai/pkg/concurrent"
)

const (
	defaultPageSize    = 50
	defaultConcurrency = 5
	me                 = "me"
)

var metadataHeaders = []string{"From", "Sender", "To", "Subject", "Date"}

// Client is the Gmail provider adapter.
type Client struct {
	svc      *gmailapi.Service
	pageSize int64
	batch    *concurrent.BatchProcessor
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = int64(n)
		}
	}
}

// WithConcurrency bounds the parallel metadata fetches of a list call.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.batch = concurrent.NewBatchProcessor(n) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client authorized by ts.
func New(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewWithService(svc, opts...), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gmailapi.Service, opts ...Option) *Client {
	c := &Client{
		svc:      svc,
		pageSize: defaultPageSize,
		batch:    concurrent.NewBatchProcessor(defaultConcurrency),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// labelFilter maps a view and category to the list label filter.
func labelFilter(view models.View, category models.Category) (labels []string, includeSpamTrash bool) {
	switch view {
	case models.ViewStarred:
		return []string{models.LabelStarred}, false
	case models.ViewSent:
		return []string{models.LabelSent}, false
	case models.ViewTrash:
		return []string{models.LabelTrash}, true
	}
	labels = []string{models.LabelInbox}
	if l := category.Label(); l != "" {
		labels = append(labels, l)
	}
	return labels, false
}

// ListMessages returns one page of thread summaries for the view. Threads
// whose metadata cannot be fetched are skipped.
func (c *Client) ListMessages(ctx context.Context, view models.View, category models.Category, pageToken string) (models.ListResult, error) {
	labels, spamTrash := labelFilter(view, category)
	call := c.svc.Users.Threads.List(me).LabelIds(labels...).MaxResults(c.pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	if spamTrash {
		call = call.IncludeSpamTrash(true)
	}
	resp, err := call.Do()
	if err != nil {
		return models.ListResult{}, wrapErr("list threads", err)
	}

	threads := make([]*gmailapi.Thread, len(resp.Threads))
	errs := c.batch.ProcessBatch(ctx, len(resp.Threads), func(ctx context.Context, i int) error {
		th, err := c.svc.Users.Threads.Get(me, resp.Threads[i].Id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			return wrapErr("get thread", err)
		}
		threads[i] = th
		return nil
	})

	out := models.ListResult{Emails: make([]models.EmailSummary, 0, len(threads)), NextPageToken: resp.NextPageToken}
	for i, th := range threads {
		if errs[i] != nil {
			if ctx.Err() != nil {
				return models.ListResult{}, ctx.Err()
			}
			c.logger.Warn("skip thread", "thread_id", resp.Threads[i].Id, "err", errs[i])
			continue
		}
		out.Emails = append(out.Emails, summarizeThread(th))
	}
	return out, nil
}

// GetThread returns every message of the thread with its raw payload.
func (c *Client) GetThread(ctx context.Context, threadID string) ([]models.ThreadMessage, error) {
	th, err := c.svc.Users.Threads.Get(me, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("get thread", err)
	}
	out := make([]models.ThreadMessage, 0, len(th.Messages))
	for _, m := range th.Messages {
		out = append(out, convertMessage(m))
	}
	return out, nil
}

// GetMessage returns a single message with its raw payload.
func (c *Client) GetMessage(ctx context.Context, id string) (models.ThreadMessage, error) {
	m, err := c.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return models.ThreadMessage{}, wrapErr("get message", err)
	}
	return convertMessage(m), nil
}

// ModifyLabels adds and removes labels on one message.
func (c *Client) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	req := &gmailapi.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	if _, err := c.svc.Users.Messages.Modify(me, id, req).Context(ctx).Do(); err != nil {
		return wrapErr("modify labels", err)
	}
	return nil
}

// Trash moves one message to the trash.
func (c *Client) Trash(ctx context.Context, id string) error {
	if _, err := c.svc.Users.Messages.Trash(me, id).Context(ctx).Do(); err != nil {
		return wrapErr("trash", err)
	}
	return nil
}

// Send delivers msg and returns the new message id. Replies reference the
// first message of msg.ThreadID.
func (c *Client) Send(ctx context.Context, msg models.OutgoingMessage) (string, error) {
	var inReplyTo string
	if msg.ThreadID != "" {
		th, err := c.svc.Users.Threads.Get(me, msg.ThreadID).
			Format("metadata").
			MetadataHeaders("Message-ID").
			Context(ctx).
			Do()
		if err != nil {
			return "", wrapErr("get reply thread", err)
		}
		if len(th.Messages) > 0 {
			inReplyTo = header(th.Messages[0].Payload, "Message-ID")
		}
	}

	raw, err := buildRaw(msg, inReplyTo, c.now())
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	sent, err := c.svc.Users.Messages.Send(me, &gmailapi.Message{Raw: encodeRaw(raw), ThreadId: msg.ThreadID}).Context(ctx).Do()
	if err != nil {
		return "", wrapErr("send", err)
	}
	return sent.Id, nil
}
