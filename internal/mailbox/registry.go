package mailbox

import (
	"context"
	"sync"
)

// Factory builds the state for a signed-in user.
type Factory func(ctx context.Context, email string) (*State, error)

// Registry keeps one State per user. Tabs of the same user share it.
type Registry struct {
	mu      sync.Mutex
	states  map[string]*State
	factory Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{states: make(map[string]*State), factory: factory}
}

// Get returns the user's state, creating it on first use.
func (r *Registry) Get(ctx context.Context, email string) (*State, error) {
	r.mu.Lock()
	s, ok := r.states[email]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	// The factory may hit the network; other users must not wait on it.
	s, err := r.factory(ctx, email)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.states[email]; ok {
		return existing, nil
	}
	r.states[email] = s
	return s, nil
}

// Evict forgets the user's state, e.g. on logout or an expired grant.
func (r *Registry) Evict(email string) {
	r.mu.Lock()
	delete(r.states, email)
	r.mu.Unlock()
}

// Len returns the number of live states.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
