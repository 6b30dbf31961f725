package hooks

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/shared"
)

// ValidationHook runs a full pass over a validation dataset when its trigger
// fires, folds every yielded Review into its summary and flushes it under the
// validation prefix. The shared timer must be empty before and after the
// pass: validation must not pollute training timing statistics.
type ValidationHook struct {
	*SummaryHook
	validator training.Validator
	iterator  training.Iterator
}

// NewValidationHook creates a ValidationHook. The validator is the training
// loop; the iterator provides the validation examples and must be
// restartable.
func NewValidationHook(spec any, validator training.Validator, it training.Iterator, opts ...SummaryOption) (*ValidationHook, error) {
	base, err := NewSummaryHook(spec, append([]SummaryOption{WithPrefix("validation")}, opts...)...)
	if err != nil {
		return nil, err
	}
	base.log = logrus.WithField("component", "validation_hook")
	return &ValidationHook{
		SummaryHook: base,
		validator:   validator,
		iterator:    it,
	}, nil
}

// Priority implements training.Hook.
func (h *ValidationHook) Priority() int {
	return training.PriorityValidation
}

// PreStep runs the validation pass when triggered.
func (h *ValidationHook) PreStep(state *training.State) error {
	if !h.trigger.Fire(state.Iteration, state.Epoch) {
		return nil
	}

	if err := h.requireEmptyTimer(state, "before"); err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{
		"iteration": state.Iteration,
		"epoch":     state.Epoch,
	}).Info("starting validation")

	stream := h.validator.Validate(h.iterator)
	batches := 0
	for {
		review, ok := stream.Next()
		if !ok {
			break
		}
		h.summary.Update(review)
		batches++
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("validation pass failed: %w", err)
	}

	if err := h.flush(state); err != nil {
		return err
	}
	if err := h.requireEmptyTimer(state, "after"); err != nil {
		return err
	}

	h.log.WithField("batches", batches).Info("finished validation")
	return nil
}

// PostStep ignores training reviews: only validation Reviews enter this
// hook's summary.
func (h *ValidationHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
}

func (h *ValidationHook) requireEmptyTimer(state *training.State, when string) error {
	if state.Timer == nil {
		return nil
	}
	if n := state.Timer.Len(); n != 0 {
		return fmt.Errorf("%w: %d samples %s validation: %v",
			training.ErrTimerNotEmpty, n, when, state.Timer.AsDict())
	}
	return nil
}
