package mailbox

import (
	"context"
	"fmt"

	"inboxai/models"
)

// Prefetch loads page 1 of every category of view, one call at a time,
// waiting on the pacer after each call. A failed category is logged and
// left out of the result. When the run completes the personal category
// becomes the active view. Views without categories drop the cache and
// load their own first page instead.
func (s *State) Prefetch(ctx context.Context, view models.View) (map[models.Category]models.PageState, error) {
	return s.prefetch(ctx, view, true)
}

func (s *State) prefetch(ctx context.Context, view models.View, selectDefault bool) (map[models.Category]models.PageState, error) {
	if !view.HasCategories() {
		s.mu.Lock()
		s.categories = make(map[models.Category]models.PageState)
		key := s.active
		s.mu.Unlock()
		if selectDefault || key.View != view {
			key = models.Key(view, "")
		}
		if _, err := s.Open(ctx, key); err != nil {
			return nil, err
		}
		return map[models.Category]models.PageState{}, nil
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	pacer := s.newPacer()
	result := make(map[models.Category]models.PageState, len(models.Categories))
	var firstErr error
	for _, cat := range models.Categories {
		key := models.Key(view, cat)
		res, err := s.provider.ListMessages(ctx, view, cat, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if s.abortOn(err) {
				return nil, fmt.Errorf("prefetch %s: %w", key, err)
			}
			s.logger.Warn("prefetch category failed", "category", cat, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			result[cat] = firstPage(key, res)
		}
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.categories = make(map[models.Category]models.PageState, len(result))
	for c, p := range result {
		s.categories[c] = p.Clone()
	}
	if gen == s.generation {
		key := models.Key(view, models.CategoryPersonal)
		if !selectDefault && s.active.View == view {
			key = s.active
		}
		page, ok := result[key.Category]
		if !ok {
			page = emptyPage(key)
		}
		s.setActive(key, page)
	}
	s.mu.Unlock()

	if len(result) == 0 && firstErr != nil {
		return nil, fmt.Errorf("prefetch %s: every category failed: %w", view, firstErr)
	}
	return result, nil
}

// Refresh drops the category cache and prefetches the active view again.
func (s *State) Refresh(ctx context.Context, view models.View) (map[models.Category]models.PageState, error) {
	s.mu.Lock()
	s.categories = make(map[models.Category]models.PageState)
	s.mu.Unlock()
	return s.Prefetch(ctx, view)
}

// Resync reconciles local state with the provider after a failed
// mutation. It re-runs the prefetcher for the active view and keeps the
// active key, back at page 1.
func (s *State) Resync(ctx context.Context) error {
	view := s.Active().View
	_, err := s.prefetch(ctx, view, false)
	return err
}

// reconcile logs a failed mutation and starts a background resync unless
// one is already running or the error aborts resyncs.
func (s *State) reconcile(ctx context.Context, op string, err error) {
	s.logger.Warn("optimistic update failed, resyncing", "op", op, "err", err)
	if s.abortOn(err) {
		return
	}
	s.resyncMu.Lock()
	if s.resyncing {
		s.resyncMu.Unlock()
		return
	}
	s.resyncing = true
	s.resyncs.Add(1)
	s.resyncMu.Unlock()

	go func() {
		defer s.resyncs.Done()
		defer func() {
			s.resyncMu.Lock()
			s.resyncing = false
			s.resyncMu.Unlock()
		}()
		if err := s.Resync(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("resync failed", "err", err)
		}
	}()
}

// WaitIdle blocks until background resyncs have finished.
func (s *State) WaitIdle() {
	s.resyncs.Wait()
}
