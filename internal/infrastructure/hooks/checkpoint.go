package hooks

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/domain/trigger"
	"github.com/TCord/padertorch/internal/shared"
)

// CheckpointHook periodically persists model state through the
// CheckpointSaver collaborator, and once more at training end.
type CheckpointHook struct {
	trigger *trigger.Trigger
	saver   training.CheckpointSaver
	log     *logrus.Entry
	saved   bool
}

// NewCheckpointHook creates a CheckpointHook from a trigger spec or trigger
// instance.
func NewCheckpointHook(spec any, saver training.CheckpointSaver) (*CheckpointHook, error) {
	trig, err := trigger.AsInterval(spec)
	if err != nil {
		return nil, err
	}
	return &CheckpointHook{
		trigger: trig,
		saver:   saver,
		log:     logrus.WithField("component", "checkpoint_hook"),
	}, nil
}

// Priority implements training.Hook.
func (h *CheckpointHook) Priority() int {
	return training.PriorityCheckpoint
}

// PreStep saves a checkpoint when the trigger fires.
func (h *CheckpointHook) PreStep(state *training.State) error {
	if !h.trigger.Fire(state.Iteration, state.Epoch) {
		return nil
	}
	return h.save(state)
}

// PostStep implements training.Hook.
func (h *CheckpointHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
}

// Close writes a final checkpoint so the run can be resumed from its end
// state.
func (h *CheckpointHook) Close(state *training.State) error {
	if !h.saved && state.Iteration == 0 {
		// Nothing was trained.
		return nil
	}
	return h.save(state)
}

func (h *CheckpointHook) save(state *training.State) error {
	if err := h.saver.SaveCheckpoint(state); err != nil {
		return fmt.Errorf("checkpoint at iteration %d failed: %w", state.Iteration, err)
	}
	h.saved = true
	h.log.WithFields(logrus.Fields{
		"iteration": state.Iteration,
		"epoch":     state.Epoch,
	}).Info("checkpoint saved")
	return nil
}
