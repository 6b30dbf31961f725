package hooks

import (
	"github.com/sirupsen/logrus"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/domain/trigger"
	"github.com/TCord/padertorch/internal/shared"
)

// ProgressHook periodically logs a progress line with the mean loss since the
// previous line.
type ProgressHook struct {
	trigger   *trigger.Trigger
	log       *logrus.Entry
	lossSum   float64
	lossCount int
}

// NewProgressHook creates a ProgressHook from a trigger spec or trigger
// instance.
func NewProgressHook(spec any) (*ProgressHook, error) {
	trig, err := trigger.AsInterval(spec)
	if err != nil {
		return nil, err
	}
	return &ProgressHook{
		trigger: trig,
		log:     logrus.WithField("component", "progress_hook"),
	}, nil
}

// Priority implements training.Hook.
func (h *ProgressHook) Priority() int {
	return training.PriorityProgress
}

// PreStep logs progress when the trigger fires.
func (h *ProgressHook) PreStep(state *training.State) error {
	if !h.trigger.Fire(state.Iteration, state.Epoch) {
		return nil
	}
	fields := logrus.Fields{
		"iteration": state.Iteration,
		"epoch":     state.Epoch,
	}
	if h.lossCount > 0 {
		fields["loss"] = h.lossSum / float64(h.lossCount)
	}
	h.log.WithFields(fields).Info("training progress")
	h.lossSum = 0
	h.lossCount = 0
	return nil
}

// PostStep accumulates the step's losses for the next progress line.
func (h *ProgressHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
	if review == nil {
		return
	}
	for _, loss := range review.Losses {
		h.lossSum += loss
		h.lossCount++
	}
}

// Close implements training.Hook.
func (h *ProgressHook) Close(state *training.State) error {
	return nil
}
