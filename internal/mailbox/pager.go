package mailbox

import (
	"context"
	"fmt"

	"inboxai/models"
)

// Open makes key the active view at page 1 with an empty token stack.
// Inbox categories are served from the category cache when present.
// Opening a view without categories invalidates the cache.
func (s *State) Open(ctx context.Context, key models.ViewKey) (models.PageState, error) {
	key = models.Key(key.View, key.Category)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if !key.View.HasCategories() {
		s.categories = make(map[models.Category]models.PageState)
	} else if cached, ok := s.categories[key.Category]; ok {
		s.setActive(key, cached)
		out := s.page.Clone()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	res, err := s.provider.ListMessages(ctx, key.View, key.Category, "")
	if err != nil {
		return models.PageState{}, fmt.Errorf("open %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return models.PageState{}, ErrSuperseded
	}
	page := firstPage(key, res)
	s.setActive(key, page)
	if key.View.HasCategories() {
		s.categories[key.Category] = page.Clone()
	}
	return s.page.Clone(), nil
}

// Next moves the active view forward one page using its next token.
func (s *State) Next(ctx context.Context, key models.ViewKey) (models.PageState, error) {
	key = models.Key(key.View, key.Category)

	s.mu.Lock()
	if key != s.active {
		s.mu.Unlock()
		return models.PageState{}, ErrNotActive
	}
	if !s.page.HasNext() {
		s.mu.Unlock()
		return models.PageState{}, ErrNoNextPage
	}
	s.generation++
	gen := s.generation
	token := s.page.NextToken
	base := s.page.Clone()
	s.mu.Unlock()

	res, err := s.provider.ListMessages(ctx, key.View, key.Category, token)
	if err != nil {
		return models.PageState{}, fmt.Errorf("next page of %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return models.PageState{}, ErrSuperseded
	}
	page := firstPage(key, res)
	page.Page = base.Page + 1
	page.PrevTokens = append(base.PrevTokens, token)
	s.page = page
	s.pages[page.Page] = page.Clone()
	return s.page.Clone(), nil
}

// Prev moves the active view back one page. The page cache is used when
// it holds the target page; otherwise the page is fetched again with the
// second-to-last stored token, or no token for page 1.
func (s *State) Prev(ctx context.Context, key models.ViewKey) (models.PageState, error) {
	key = models.Key(key.View, key.Category)

	s.mu.Lock()
	if key != s.active {
		s.mu.Unlock()
		return models.PageState{}, ErrNotActive
	}
	if !s.page.HasPrev() {
		s.mu.Unlock()
		return models.PageState{}, ErrNoPrevPage
	}
	target := s.page.Page - 1
	tokens := s.page.PrevTokens
	stack := append([]string{}, tokens[:len(tokens)-1]...)
	if cached, ok := s.pages[target]; ok && s.pageCache {
		s.generation++
		s.page = cached.Clone()
		s.page.PrevTokens = stack
		out := s.page.Clone()
		s.mu.Unlock()
		return out, nil
	}
	var token string
	if len(tokens) >= 2 {
		token = tokens[len(tokens)-2]
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	res, err := s.provider.ListMessages(ctx, key.View, key.Category, token)
	if err != nil {
		return models.PageState{}, fmt.Errorf("previous page of %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return models.PageState{}, ErrSuperseded
	}
	page := firstPage(key, res)
	page.Page = target
	page.PrevTokens = stack
	s.page = page
	s.pages[target] = page.Clone()
	return s.page.Clone(), nil
}
