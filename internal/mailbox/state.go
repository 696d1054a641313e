// Package mailbox holds the per-user view state: the category cache, the
// active page with its token stack and page cache, multi-select, and the
// compose draft. Local data is guarded by one mutex that is never held
// across provider calls.
package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inboxai/models"
	"inboxai/pkg/concurrent"
)

var (
	ErrNoNextPage      = errors.New("mailbox: no next page")
	ErrNoPrevPage      = errors.New("mailbox: no previous page")
	ErrNotActive       = errors.New("mailbox: view is not active")
	ErrSuperseded      = errors.New("mailbox: navigation superseded by a newer one")
	ErrUnknownEmail    = errors.New("mailbox: email not loaded")
	ErrNoDraft         = errors.New("mailbox: no open draft")
	ErrDraftIncomplete = errors.New("mailbox: draft needs a recipient")
)

// Provider is the mail provider adapter contract.
type Provider interface {
	ListMessages(ctx context.Context, view models.View, category models.Category, pageToken string) (models.ListResult, error)
	GetThread(ctx context.Context, threadID string) ([]models.ThreadMessage, error)
	GetMessage(ctx context.Context, id string) (models.ThreadMessage, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	Trash(ctx context.Context, id string) error
	Send(ctx context.Context, msg models.OutgoingMessage) (string, error)
}

// State is one user's mailbox view state.
type State struct {
	provider  Provider
	newPacer  func() Pacer
	batch     *concurrent.BatchProcessor
	logger    *slog.Logger
	pageCache bool
	abortOn   func(error) bool
	locks     keyedMutex

	mu         sync.Mutex
	categories map[models.Category]models.PageState
	active     models.ViewKey
	page       models.PageState
	pages      map[int]models.PageState
	generation uint64
	selection  []string
	draft      *models.ComposeDraft

	resyncMu  sync.Mutex
	resyncing bool
	resyncs   sync.WaitGroup
}

// Option configures a State.
type Option func(*State)

func WithLogger(l *slog.Logger) Option {
	return func(s *State) { s.logger = l }
}

// WithPrefetchRate paces category fetches at one per interval, allowing
// bursts of burst calls after idle time.
func WithPrefetchRate(interval time.Duration, burst int) Option {
	return func(s *State) {
		s.newPacer = func() Pacer { return NewRatePacer(interval, burst) }
	}
}

// WithPacer overrides the pacer built for each prefetch run.
func WithPacer(newPacer func() Pacer) Option {
	return func(s *State) { s.newPacer = newPacer }
}

// WithBulkConcurrency bounds parallel provider calls of bulk operations.
func WithBulkConcurrency(n int) Option {
	return func(s *State) { s.batch = concurrent.NewBatchProcessor(n) }
}

// WithPageCache toggles the per-view page cache used by Prev.
func WithPageCache(enabled bool) Option {
	return func(s *State) { s.pageCache = enabled }
}

// WithAbortOn marks errors that stop a prefetch run and skip resync,
// such as an expired grant.
func WithAbortOn(fn func(error) bool) Option {
	return func(s *State) { s.abortOn = fn }
}

// New creates an empty state over provider. The active view starts at
// inbox/personal, page 1, with nothing loaded.
func New(provider Provider, opts ...Option) *State {
	s := &State{
		provider:   provider,
		batch:      concurrent.NewBatchProcessor(4),
		logger:     slog.Default(),
		pageCache:  true,
		abortOn:    func(error) bool { return false },
		categories: make(map[models.Category]models.PageState),
		pages:      make(map[int]models.PageState),
	}
	s.newPacer = func() Pacer { return NewRatePacer(time.Second, 1) }
	for _, opt := range opts {
		opt(s)
	}
	s.active = models.Key(models.ViewInbox, models.CategoryPersonal)
	s.page = emptyPage(s.active)
	return s
}

// Provider returns the adapter the state talks to.
func (s *State) Provider() Provider { return s.provider }

// Active returns the key of the visible view.
func (s *State) Active() models.ViewKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Current returns a copy of the visible page.
func (s *State) Current() models.PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Clone()
}

// Categories returns a copy of the category cache.
func (s *State) Categories() map[models.Category]models.PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Category]models.PageState, len(s.categories))
	for c, p := range s.categories {
		out[c] = p.Clone()
	}
	return out
}

// Lookup returns the loaded summary for id.
func (s *State) Lookup(id string) (models.EmailSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func emptyPage(key models.ViewKey) models.PageState {
	return models.PageState{
		View:       key.View,
		Category:   key.Category,
		Emails:     []models.EmailSummary{},
		PrevTokens: []string{},
		Page:       1,
	}
}

func firstPage(key models.ViewKey, res models.ListResult) models.PageState {
	p := emptyPage(key)
	if res.Emails != nil {
		p.Emails = res.Emails
	}
	p.NextToken = res.NextPageToken
	return p
}

// setActive resets navigation to page 1 of key. Must hold mu.
func (s *State) setActive(key models.ViewKey, page models.PageState) {
	s.active = key
	s.page = page.Clone()
	s.pages = map[int]models.PageState{1: page.Clone()}
}

// find returns the first loaded summary with id. Must hold mu.
func (s *State) find(id string) (models.EmailSummary, bool) {
	for _, e := range s.page.Emails {
		if e.ID == id {
			return e, true
		}
	}
	for _, p := range s.categories {
		for _, e := range p.Emails {
			if e.ID == id {
				return e, true
			}
		}
	}
	for _, p := range s.pages {
		for _, e := range p.Emails {
			if e.ID == id {
				return e, true
			}
		}
	}
	return models.EmailSummary{}, false
}

// eachList calls fn on every loaded list: the visible page, each
// category bucket and each cached page. Must hold mu.
func (s *State) eachList(fn func([]models.EmailSummary) []models.EmailSummary) {
	s.page.Emails = fn(s.page.Emails)
	for c, p := range s.categories {
		p.Emails = fn(p.Emails)
		s.categories[c] = p
	}
	for n, p := range s.pages {
		p.Emails = fn(p.Emails)
		s.pages[n] = p
	}
}

// relabel applies add/remove to every loaded copy of id. Must hold mu.
func (s *State) relabel(id string, add, remove []string) (models.EmailSummary, bool) {
	var (
		updated models.EmailSummary
		found   bool
	)
	s.eachList(func(list []models.EmailSummary) []models.EmailSummary {
		for i, e := range list {
			if e.ID == id {
				list[i] = e.WithLabels(add, remove)
				if !found {
					updated, found = list[i], true
				}
			}
		}
		return list
	})
	return updated, found
}

// drop removes every loaded copy of id. Must hold mu.
func (s *State) drop(id string) {
	s.eachList(func(list []models.EmailSummary) []models.EmailSummary {
		out := list[:0]
		for _, e := range list {
			if e.ID != id {
				out = append(out, e)
			}
		}
		return out
	})
}

// keyedMutex serializes work per record id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
