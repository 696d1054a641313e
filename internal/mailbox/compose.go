package mailbox

import (
	"context"
	"fmt"
	"strings"

	"inboxai/models"
)

// OpenDraft starts a new draft, replacing any open one.
func (s *State) OpenDraft(d models.ComposeDraft) models.ComposeDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &d
	return d
}

// Draft returns the open draft.
func (s *State) Draft() (models.ComposeDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.ComposeDraft{}, ErrNoDraft
	}
	return *s.draft, nil
}

// UpdateDraft edits the open draft in place.
func (s *State) UpdateDraft(fn func(*models.ComposeDraft)) (models.ComposeDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.ComposeDraft{}, ErrNoDraft
	}
	fn(s.draft)
	return *s.draft, nil
}

// DiscardDraft drops the open draft, if any.
func (s *State) DiscardDraft() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

// SendDraft sends the open draft from the given sender and destroys it.
// A failed send keeps the draft so it can be retried.
func (s *State) SendDraft(ctx context.Context, fromName, fromEmail string) (string, error) {
	d, err := s.Draft()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(d.To) == "" {
		return "", ErrDraftIncomplete
	}
	id, err := s.provider.Send(ctx, models.OutgoingMessage{
		FromName:  fromName,
		FromEmail: fromEmail,
		To:        d.To,
		Subject:   d.Subject,
		HTMLBody:  d.Body,
		ThreadID:  d.InReplyToThreadID,
	})
	if err != nil {
		return "", fmt.Errorf("send draft: %w", err)
	}

	s.mu.Lock()
	if s.draft != nil && *s.draft == d {
		s.draft = nil
	}
	s.mu.Unlock()
	return id, nil
}
