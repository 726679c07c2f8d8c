package screen

import (
	"context"
	"sync"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/telemetry"
)

// Registry tracks open controllers so they can be counted and shut down together.
type Registry struct {
	deps Deps

	mu      sync.Mutex
	screens map[string]*Controller
}

// NewRegistry returns an empty registry that builds controllers from deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, screens: make(map[string]*Controller)}
}

// Open creates and registers a controller. Closing it unregisters it.
func (r *Registry) Open(ctx context.Context) *Controller {
	c := New(ctx, r.deps)
	c.onClose = r.remove
	r.mu.Lock()
	r.screens[c.ID()] = c
	n := len(r.screens)
	r.mu.Unlock()
	telemetry.SetActiveScreens(n)
	return c
}

// Once resolves p a single time with the registry's deps without registering a screen.
func (r *Registry) Once(ctx context.Context, p live.Platform) (State, error) {
	return Once(ctx, r.deps, p)
}

// Get returns a registered controller.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.screens[id]
	return c, ok
}

// Len returns the number of open controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.screens)
}

// CloseAll closes every controller and waits for their background refreshes.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Controller, 0, len(r.screens))
	for _, c := range r.screens {
		all = append(all, c)
	}
	r.mu.Unlock()
	for _, c := range all {
		c.Close()
		c.Wait()
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.screens, id)
	n := len(r.screens)
	r.mu.Unlock()
	telemetry.SetActiveScreens(n)
}
