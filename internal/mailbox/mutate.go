package mailbox

import (
	"context"
	"fmt"

	"inboxai/models"
	"inboxai/pkg/concurrent"
)

// ItemResult is the outcome of one item of a bulk operation.
type ItemResult struct {
	ID      string `json:"messageId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkResult reports a best-effort bulk operation.
type BulkResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []ItemResult `json:"results"`
}

const msgSomeFailed = "Some operations failed"

func newBulkResult(ids []string, errs []error, okMessage string) BulkResult {
	r := BulkResult{Success: true, Message: okMessage, Results: make([]ItemResult, len(ids))}
	for i, id := range ids {
		r.Results[i] = ItemResult{ID: id, Success: errs[i] == nil}
		if errs[i] != nil {
			r.Results[i].Error = errs[i].Error()
			r.Success = false
			r.Message = msgSomeFailed
		}
	}
	return r
}

// ToggleStar flips STARRED on id locally, then on the provider.
func (s *State) ToggleStar(ctx context.Context, id string) (models.EmailSummary, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	cur, ok := s.find(id)
	if !ok {
		s.mu.Unlock()
		return models.EmailSummary{}, fmt.Errorf("%w: %s", ErrUnknownEmail, id)
	}
	var add, remove []string
	if cur.Starred() {
		remove = []string{models.LabelStarred}
	} else {
		add = []string{models.LabelStarred}
	}
	updated, _ := s.relabel(id, add, remove)
	s.mu.Unlock()

	if err := s.provider.ModifyLabels(ctx, id, add, remove); err != nil {
		s.reconcile(ctx, "toggle star", err)
		return updated, fmt.Errorf("toggle star %s: %w", id, err)
	}
	return updated, nil
}

// MarkRead removes UNREAD from id locally, then on the provider.
func (s *State) MarkRead(ctx context.Context, id string) (models.EmailSummary, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	remove := []string{models.LabelUnread}
	s.mu.Lock()
	updated, ok := s.relabel(id, nil, remove)
	s.mu.Unlock()
	if !ok {
		updated = models.EmailSummary{ID: id}
	}

	if err := s.provider.ModifyLabels(ctx, id, nil, remove); err != nil {
		s.reconcile(ctx, "mark read", err)
		return updated, fmt.Errorf("mark read %s: %w", id, err)
	}
	return updated, nil
}

// BulkMarkRead marks every id read or unread. Items are independent: one
// failure does not stop the rest.
func (s *State) BulkMarkRead(ctx context.Context, ids []string, read bool) BulkResult {
	ids = dedupe(ids)
	var add, remove []string
	okMessage := "Successfully marked as read"
	if read {
		remove = []string{models.LabelUnread}
	} else {
		add = []string{models.LabelUnread}
		okMessage = "Successfully marked as unread"
	}

	s.mu.Lock()
	for _, id := range ids {
		s.relabel(id, add, remove)
	}
	s.selection = nil
	s.mu.Unlock()

	errs := s.batch.ProcessBatch(ctx, len(ids), func(ctx context.Context, i int) error {
		unlock := s.locks.Lock(ids[i])
		defer unlock()
		return s.provider.ModifyLabels(ctx, ids[i], add, remove)
	})
	return s.finishBulk(ctx, "bulk mark read", ids, errs, okMessage)
}

// BulkDelete removes every id from the loaded lists and trashes it.
func (s *State) BulkDelete(ctx context.Context, ids []string) BulkResult {
	ids = dedupe(ids)

	s.mu.Lock()
	for _, id := range ids {
		s.drop(id)
	}
	s.selection = nil
	s.mu.Unlock()

	errs := s.batch.ProcessBatch(ctx, len(ids), func(ctx context.Context, i int) error {
		unlock := s.locks.Lock(ids[i])
		defer unlock()
		return s.provider.Trash(ctx, ids[i])
	})
	return s.finishBulk(ctx, "bulk delete", ids, errs, "Successfully moved to trash")
}

func (s *State) finishBulk(ctx context.Context, op string, ids []string, errs []error, okMessage string) BulkResult {
	res := newBulkResult(ids, errs, okMessage)
	if concurrent.Failed(errs) == 0 {
		return res
	}
	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		s.logger.Warn("bulk item failed", "op", op, "message_id", ids[i], "err", err)
		if first == nil {
			first = err
		}
	}
	s.reconcile(ctx, op, first)
	return res
}

// Select replaces the multi-select set.
func (s *State) Select(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = dedupe(ids)
	return append([]string{}, s.selection...)
}

// Selection returns the selected ids in selection order.
func (s *State) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.selection...)
}

func (s *State) ClearSelection() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
