package hooks

import (
	"errors"
	"testing"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/infrastructure/metrics"
	"github.com/TCord/padertorch/internal/infrastructure/timer"
	"github.com/TCord/padertorch/internal/shared"
)

type sliceIterator struct {
	examples []any
	pos      int
}

func (it *sliceIterator) Next() (any, bool) {
	if it.pos >= len(it.examples) {
		return nil, false
	}
	example := it.examples[it.pos]
	it.pos++
	return example, true
}

func (it *sliceIterator) Reset() { it.pos = 0 }

type stubStream struct {
	reviews []*shared.Review
	pos     int
	err     error
}

func (s *stubStream) Next() (*shared.Review, bool) {
	if s.pos >= len(s.reviews) {
		return nil, false
	}
	r := s.reviews[s.pos]
	s.pos++
	return r, true
}

func (s *stubStream) Err() error { return s.err }

type stubValidator struct {
	reviews []*shared.Review
	err     error
	calls   int
}

func (v *stubValidator) Validate(it training.Iterator) training.ReviewStream {
	v.calls++
	it.Reset()
	return &stubStream{reviews: v.reviews, err: v.err}
}

func TestValidationHookFoldsAndFlushes(t *testing.T) {
	w := metrics.NewMemoryWriter()
	validator := &stubValidator{reviews: []*shared.Review{
		{Losses: map[string]float64{"a": 2.0}},
		{Losses: map[string]float64{"a": 4.0}},
	}}

	hook, err := NewValidationHook(
		shared.Every(2, shared.UnitIteration),
		validator,
		&sliceIterator{examples: []any{1, 2}},
		WithWriter(w),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := &training.State{Iteration: 2, Timer: timer.New()}
	if err := hook.PreStep(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if validator.calls != 1 {
		t.Errorf("expected exactly one validation pass, got %d", validator.calls)
	}
	value, ok := w.Scalar("validation/a", 2)
	if !ok || value != 3.0 {
		t.Errorf("expected validation/a = 3.0, got %v (ok=%v)", value, ok)
	}
}

func TestValidationHookPriority(t *testing.T) {
	hook, err := NewValidationHook(shared.Every(1, shared.UnitEpoch), &stubValidator{}, &sliceIterator{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hook.Priority() != training.PriorityValidation {
		t.Errorf("expected priority %d, got %d", training.PriorityValidation, hook.Priority())
	}
}

func TestValidationHookRejectsDirtyTimer(t *testing.T) {
	w := metrics.NewMemoryWriter()
	hook, err := NewValidationHook(
		shared.Every(1, shared.UnitIteration),
		&stubValidator{},
		&sliceIterator{},
		WithWriter(w),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tm := timer.New()
	tm.Record(training.TimerStep, 1.0)
	state := &training.State{Iteration: 1, Timer: tm}

	if err := hook.PreStep(state); !errors.Is(err, training.ErrTimerNotEmpty) {
		t.Errorf("expected ErrTimerNotEmpty, got %v", err)
	}
}

func TestValidationHookPropagatesStreamError(t *testing.T) {
	w := metrics.NewMemoryWriter()
	boom := errors.New("batch failed")
	hook, err := NewValidationHook(
		shared.Every(1, shared.UnitIteration),
		&stubValidator{err: boom},
		&sliceIterator{},
		WithWriter(w),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := &training.State{Iteration: 1, Timer: timer.New()}
	if err := hook.PreStep(state); !errors.Is(err, boom) {
		t.Errorf("expected stream error to propagate, got %v", err)
	}
}

func TestValidationHookIgnoresTrainingReviews(t *testing.T) {
	w := metrics.NewMemoryWriter()
	hook, err := NewValidationHook(
		shared.Every(10, shared.UnitIteration),
		&stubValidator{},
		&sliceIterator{},
		WithWriter(w),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := &training.State{Iteration: 1}
	hook.PostStep(state, nil, nil, &shared.Review{Losses: map[string]float64{"a": 1.0}})

	if !hook.summary.Empty() {
		t.Error("training reviews must not enter the validation summary")
	}
}
