// Package trainer provides the application service driving the training
// loop: it steps the model over iterators, times each phase, dispatches
// hooks in priority order, and terminates cleanly on the stop signal.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/infrastructure/hooks"
	"github.com/TCord/padertorch/internal/infrastructure/runconfig"
	"github.com/TCord/padertorch/internal/infrastructure/timer"
	"github.com/TCord/padertorch/internal/shared"
)

var (
	// ErrEmptyIterator is returned when a full pass over an iterator yields
	// no examples.
	ErrEmptyIterator = errors.New("iterator yielded no examples")
	// ErrTestRunFailed is returned when the dry-run sanity checks fail.
	ErrTestRunFailed = errors.New("test run failed")
)

// Config holds the construction parameters of a Trainer.
type Config struct {
	// StorageDir is where run artifacts are persisted. May be empty when no
	// hook needs persistence.
	StorageDir string
	// RunConfig, when set, is persisted to the storage dir on first start
	// and compared against the persisted copy on resume.
	RunConfig map[string]any
}

// Trainer owns the loop state, the shared step timer, and the hook registry.
type Trainer struct {
	model training.Model
	hooks *hooks.Registry
	state *training.State
	log   *logrus.Entry
}

// New creates a Trainer for the given model. When cfg.RunConfig is set the
// configuration is persisted and compared per the resume policy.
func New(model training.Model, cfg Config) (*Trainer, error) {
	if model == nil {
		return nil, training.ErrNilModel
	}
	log := logrus.WithField("component", "trainer")

	if cfg.RunConfig != nil {
		snap, err := runconfig.Persist(cfg.StorageDir, cfg.RunConfig)
		if err != nil {
			return nil, fmt.Errorf("persist run config: %w", err)
		}
		if err := runconfig.Compare(snap, cfg.RunConfig); err != nil {
			return nil, err
		}
		log = log.WithField("run_id", snap.RunID)
	}

	return &Trainer{
		model: model,
		hooks: hooks.NewRegistry(),
		state: &training.State{
			StorageDir: cfg.StorageDir,
			Timer:      timer.New(),
		},
		log: log,
	}, nil
}

// Register adds a hook to the trainer.
func (t *Trainer) Register(hook training.Hook) error {
	return t.hooks.Register(hook)
}

// State returns the shared loop state.
func (t *Trainer) State() *training.State {
	return t.state
}

// Train runs the training loop until the stop signal, the context, or an
// error ends it. A StopTraining raised by a hook is the clean termination
// path and is not returned as an error. Hooks are closed exactly once on
// any exit.
func (t *Trainer) Train(ctx context.Context, it training.Iterator) (err error) {
	defer func() {
		closeErr := t.hooks.Close(t.state)
		if err == nil {
			err = closeErr
		}
	}()

	t.log.WithFields(logrus.Fields{
		"iteration": t.state.Iteration,
		"epoch":     t.state.Epoch,
	}).Info("training started")

	for {
		consumed, err := t.trainEpoch(ctx, it)
		if err != nil {
			var stop *training.StopTraining
			if errors.As(err, &stop) {
				t.log.WithFields(logrus.Fields{
					"iteration": stop.Iteration,
					"epoch":     stop.Epoch,
				}).Info("training ended")
				return nil
			}
			return err
		}
		if consumed == 0 {
			return ErrEmptyIterator
		}
		t.state.Epoch++
		it.Reset()
	}
}

// trainEpoch runs one pass over the iterator, returning the number of
// examples consumed.
func (t *Trainer) trainEpoch(ctx context.Context, it training.Iterator) (int, error) {
	consumed := 0
	for {
		select {
		case <-ctx.Done():
			return consumed, ctx.Err()
		default:
		}

		stopStep := t.state.Timer.Start(training.TimerStep)
		stopLoad := t.state.Timer.Start(training.TimerDataLoading)
		example, ok := it.Next()
		if !ok {
			return consumed, nil
		}
		stopLoad()
		consumed++

		t.state.Iteration++
		if err := t.hooks.PreStep(t.state); err != nil {
			return consumed, err
		}

		stopTrain := t.state.Timer.Start(training.TimerTrainStep)
		output, review, err := t.model.Step(example)
		stopTrain()
		if err != nil {
			return consumed, fmt.Errorf("model step at iteration %d: %w", t.state.Iteration, err)
		}

		t.hooks.PostStep(t.state, example, output, review)
		stopStep()
	}
}

// Validate runs the model over one pass of the iterator and returns the
// reviews as a lazy stream. The shared step timer is not touched, so a
// validation pass leaves no trace in the training timing statistics.
func (t *Trainer) Validate(it training.Iterator) training.ReviewStream {
	it.Reset()
	return &reviewStream{model: t.model, it: it}
}

type reviewStream struct {
	model training.Model
	it    training.Iterator
	err   error
}

func (s *reviewStream) Next() (*shared.Review, bool) {
	if s.err != nil {
		return nil, false
	}
	example, ok := s.it.Next()
	if !ok {
		return nil, false
	}
	_, review, err := s.model.Step(example)
	if err != nil {
		s.err = err
		return nil, false
	}
	return review, true
}

func (s *reviewStream) Err() error {
	return s.err
}

// TestRun performs one train step and one validation pass without touching
// the loop state, checking that the model produces finite losses on both
// paths. Run it before a long training job to catch wiring mistakes early.
func (t *Trainer) TestRun(train, validation training.Iterator) error {
	train.Reset()
	example, ok := train.Next()
	if !ok {
		return fmt.Errorf("%w: train %w", ErrTestRunFailed, ErrEmptyIterator)
	}
	_, review, err := t.model.Step(example)
	if err != nil {
		return fmt.Errorf("%w: train step: %w", ErrTestRunFailed, err)
	}
	if err := checkReview(review); err != nil {
		return fmt.Errorf("%w: train step: %w", ErrTestRunFailed, err)
	}

	stream := t.Validate(validation)
	batches := 0
	for {
		review, ok := stream.Next()
		if !ok {
			break
		}
		if err := checkReview(review); err != nil {
			return fmt.Errorf("%w: validation batch %d: %w", ErrTestRunFailed, batches, err)
		}
		batches++
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: validation: %w", ErrTestRunFailed, err)
	}
	if batches == 0 {
		return fmt.Errorf("%w: validation %w", ErrTestRunFailed, ErrEmptyIterator)
	}
	return nil
}

func checkReview(review *shared.Review) error {
	if review == nil {
		return errors.New("model returned no review")
	}
	if len(review.Losses) == 0 {
		return errors.New("review has no losses")
	}
	for name, value := range review.Losses {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("loss %q is not finite: %v", name, value)
		}
	}
	return nil
}
