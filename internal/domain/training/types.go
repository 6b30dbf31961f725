// Package training provides the domain contracts between the training loop
// and its hooks.
package training

import (
	"fmt"

	"github.com/TCord/padertorch/internal/shared"
)

// Hook priorities. The loop calls PreStep in descending order, so the stop
// hook always runs last: summaries are flushed and checkpoints written before
// a run can end.
const (
	PrioritySummary    = 50
	PriorityPrint      = 40
	PriorityProgress   = 30
	PriorityValidation = 20
	PriorityCheckpoint = 20
	PriorityEnd        = 10
)

// Timer accumulates named duration samples between resets. The trainer owns
// one instance shared with all hooks through State.
type Timer interface {
	// Start begins a sample for name and returns the stop func recording it.
	Start(name string) func()
	// Record appends a raw sample.
	Record(name string, seconds float64)
	// AsDict returns a copy of all accumulated sample series.
	AsDict() map[string][]float64
	// Len returns the total number of unflushed samples.
	Len() int
	// Reset drops all samples.
	Reset()
}

// Timer series names recorded by the training loop.
const (
	TimerDataLoading = "time_per_data_loading"
	TimerTrainStep   = "time_per_train_step"
	TimerStep        = "time_per_step"
)

// State is the loop state passed into every hook call. Hooks must not retain
// it across steps.
type State struct {
	// Iteration counts training steps, starting at 1 for the first step.
	Iteration int
	// Epoch counts completed passes over the training set, starting at 0.
	Epoch int
	// StorageDir is where run artifacts (metrics, checkpoints, run config)
	// are persisted.
	StorageDir string
	// Timer is the shared step timer.
	Timer Timer
}

// Hook is a priority-ordered, trigger-gated side effect performed during
// training. The loop calls PreStep for all hooks in descending priority order
// before each step, PostStep for all hooks after each step, and Close exactly
// once at termination.
type Hook interface {
	Priority() int
	PreStep(state *State) error
	PostStep(state *State, example, modelOutput any, review *shared.Review)
	Close(state *State) error
}

// Model is the external collaborator producing a Review per step. Forward and
// backward mechanics are outside this package.
type Model interface {
	Step(example any) (output any, review *shared.Review, err error)
}

// Iterator yields the examples of one pass over a dataset. Reset restarts the
// pass; validation iterators must be restartable.
type Iterator interface {
	Next() (example any, ok bool)
	Reset()
}

// ReviewStream is a lazy, finite sequence of Reviews, one per validation
// batch. After Next returns ok=false, Err reports whether the stream ended
// because of a failure.
type ReviewStream interface {
	Next() (*shared.Review, bool)
	Err() error
}

// Validator runs a full pass over validation data. The training loop
// implements it; the validation hook consumes it.
type Validator interface {
	Validate(it Iterator) ReviewStream
}

// SummaryWriter is the append-only time-series sink hooks flush into. Keys
// are `{prefix}/{name}`, timestamped by iteration; the last write for a
// key+iteration wins.
type SummaryWriter interface {
	AddScalar(tag string, value float64, iteration int) error
	AddHistogram(tag string, values []float64, iteration int) error
	AddAudio(tag string, audio shared.Audio, iteration int) error
	AddImage(tag string, image shared.Image, iteration int) error
	Close() error
}

// CheckpointSaver persists model state. Serialization mechanics are outside
// this package.
type CheckpointSaver interface {
	SaveCheckpoint(state *State) error
}

// StopTraining is the control signal raised by the stop hook when the end
// trigger fires. The loop catches it to terminate cleanly; it is not a
// failure.
type StopTraining struct {
	Iteration int
	Epoch     int
}

func (e *StopTraining) Error() string {
	return fmt.Sprintf("training ended after %d epochs and %d iterations", e.Epoch, e.Iteration)
}
