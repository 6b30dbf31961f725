// Package hooks provides the trigger-gated side effects performed during
// training and the registry dispatching them in priority order.
package hooks

import (
	"errors"
	"fmt"
	"sort"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/shared"
)

// ErrInvalidPriority indicates a hook with a non-positive priority.
var ErrInvalidPriority = errors.New("invalid hook priority")

// Registry holds the registered hooks sorted descending by priority. The
// training loop is single threaded; the registry is not safe for concurrent
// registration during a run.
type Registry struct {
	hooks []training.Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make([]training.Hook, 0)}
}

// Register adds a hook, keeping the descending priority order. Hooks with
// equal priority keep their registration order.
func (r *Registry) Register(hook training.Hook) error {
	if hook == nil {
		return training.ErrNilHook
	}
	if hook.Priority() <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, hook.Priority())
	}
	r.hooks = append(r.hooks, hook)
	sort.SliceStable(r.hooks, func(i, j int) bool {
		return r.hooks[i].Priority() > r.hooks[j].Priority()
	})
	return nil
}

// Hooks returns the registered hooks in dispatch order.
func (r *Registry) Hooks() []training.Hook {
	out := make([]training.Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// PreStep calls every hook's PreStep in descending priority order. The first
// error aborts the pass; because the stop hook has the lowest priority, a
// StopTraining signal is only returned after all other hooks ran.
func (r *Registry) PreStep(state *training.State) error {
	for _, hook := range r.hooks {
		if err := hook.PreStep(state); err != nil {
			return err
		}
	}
	return nil
}

// PostStep calls every hook's PostStep after a completed step.
func (r *Registry) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
	for _, hook := range r.hooks {
		hook.PostStep(state, example, modelOutput, review)
	}
}

// Close calls every hook's Close exactly once, in dispatch order, and joins
// the errors.
func (r *Registry) Close(state *training.State) error {
	var errs []error
	for _, hook := range r.hooks {
		if err := hook.Close(state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
