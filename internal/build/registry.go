package build

import (
	"context"
	"fmt"
	"sync"
)

// Action is the work performed by a step.
type Action func(ctx context.Context, s *Session) error

// Step is a named action. The name is a display label only; duplicates are
// allowed.
type Step struct {
	Name   string
	Action Action
}

// Registry holds steps in execution order. It accepts registrations until a
// build starts and is read-only afterwards.
type Registry struct {
	mu     sync.Mutex
	steps  []Step
	sealed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a step. It fails once the registry has been handed to a
// running build.
func (r *Registry) Register(name string, action Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return &ConfigurationError{Msg: fmt.Sprintf("cannot register step %q after the build has started", name)}
	}
	if action == nil {
		return &ConfigurationError{Msg: fmt.Sprintf("step %q has no action", name)}
	}
	r.steps = append(r.steps, Step{Name: name, Action: action})
	return nil
}

// All returns the steps in registration order.
func (r *Registry) All() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.steps...)
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// seal closes the registry to further registration and returns its steps.
func (r *Registry) seal() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return append([]Step(nil), r.steps...)
}
