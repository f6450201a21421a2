package circuitbreaker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Dependency names a remote collaborator guarded by its own breaker.
type Dependency string

const (
	DependencyUserService Dependency = "user-service"
)

// KnownDependencies is every dependency the service calls through a breaker.
func KnownDependencies() []Dependency {
	return []Dependency{DependencyUserService}
}

// Registry hands out one breaker per known dependency, created on first use.
type Registry struct {
	opts []Option

	mu       sync.Mutex
	settings map[Dependency]Settings
	breakers map[Dependency]*Breaker
}

// NewRegistry registers KnownDependencies with the given settings.
func NewRegistry(defaults Settings, opts ...Option) *Registry {
	r := &Registry{
		opts:     opts,
		settings: make(map[Dependency]Settings),
		breakers: make(map[Dependency]*Breaker),
	}
	for _, dep := range KnownDependencies() {
		r.settings[dep] = defaults
	}
	return r
}

// Register adds a dependency or replaces its settings. An existing breaker is discarded.
func (r *Registry) Register(dep Dependency, settings Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[dep] = settings
	delete(r.breakers, dep)
}

func (r *Registry) Get(dep Dependency) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[dep]; ok {
		return b, nil
	}
	settings, ok := r.settings[dep]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
	}
	b := New(string(dep), settings, r.opts...)
	r.breakers[dep] = b
	return b, nil
}

// States reports the state of every breaker created so far.
func (r *Registry) States() map[Dependency]State {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	states := make(map[Dependency]State, len(breakers))
	for _, b := range breakers {
		states[Dependency(b.Name())] = b.State()
	}
	return states
}

// Dependencies lists registered dependency names in sorted order.
func (r *Registry) Dependencies() []Dependency {
	r.mu.Lock()
	defer r.mu.Unlock()
	deps := make([]Dependency, 0, len(r.settings))
	for dep := range r.settings {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}

// Execute runs fn through the breaker registered for dep.
func Execute[T any](ctx context.Context, r *Registry, dep Dependency, fn func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	b, err := r.Get(dep)
	if err != nil {
		var zero T
		return zero, err
	}
	return Run(ctx, b, fn, fallback)
}
