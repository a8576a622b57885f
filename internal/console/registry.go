package console

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Factory builds the controller for a new session.
type Factory func(ctx context.Context) (*Controller, error)

// Registry keeps one controller per console session. Idle controllers expire after ttl.
type Registry struct {
	mu    sync.Mutex
	items *gocache.Cache
	ttl   time.Duration
}

// NewRegistry creates a registry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{items: gocache.New(ttl, ttl/2+time.Second), ttl: ttl}
}

// Get returns the session's controller, building it with factory when missing.
// Each access extends the controller's lifetime.
func (r *Registry) Get(ctx context.Context, sessionID string, factory Factory) (*Controller, error) {
	if ctrl, ok := r.touch(sessionID); ok {
		return ctrl, nil
	}
	built, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items.Get(sessionID); ok {
		// Another request for the session got there first.
		return v.(*Controller), nil
	}
	r.items.Set(sessionID, built, r.ttl)
	return built, nil
}

func (r *Registry) touch(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items.Get(sessionID)
	if !ok {
		return nil, false
	}
	ctrl := v.(*Controller)
	r.items.Set(sessionID, ctrl, r.ttl)
	return ctrl, true
}

// Drop forgets the session's controller.
func (r *Registry) Drop(sessionID string) {
	r.items.Delete(sessionID)
}

// Len reports how many controllers are live.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}
