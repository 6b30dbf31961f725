package hooks

import (
	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/domain/trigger"
	"github.com/TCord/padertorch/internal/shared"
)

// StopTrainingHook wraps an End trigger and raises the StopTraining control
// signal once the configured maximum iteration or epoch is reached. It has
// the lowest priority so every other hook's PreStep runs before the loop is
// asked to stop.
type StopTrainingHook struct {
	trigger *trigger.Trigger
}

// NewStopTrainingHook creates a StopTrainingHook from a trigger spec or an
// End trigger instance.
func NewStopTrainingHook(spec any) (*StopTrainingHook, error) {
	trig, err := trigger.AsEnd(spec)
	if err != nil {
		return nil, err
	}
	return &StopTrainingHook{trigger: trig}, nil
}

// Priority implements training.Hook.
func (h *StopTrainingHook) Priority() int {
	return training.PriorityEnd
}

// PreStep returns the StopTraining signal when the end trigger fires. The
// signal carries the final counters for the loop's closing log line.
func (h *StopTrainingHook) PreStep(state *training.State) error {
	if h.trigger.Fire(state.Iteration, state.Epoch) {
		return &training.StopTraining{Iteration: state.Iteration, Epoch: state.Epoch}
	}
	return nil
}

// PostStep implements training.Hook.
func (h *StopTrainingHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
}

// Close implements training.Hook.
func (h *StopTrainingHook) Close(state *training.State) error {
	return nil
}
