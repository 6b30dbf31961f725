package hooks

import (
	"errors"
	"testing"

	"github.com/TCord/padertorch/internal/domain/training"
	"github.com/TCord/padertorch/internal/shared"
)

type orderHook struct {
	priority int
	name     string
	calls    *[]string
	err      error
}

func (h *orderHook) Priority() int { return h.priority }

func (h *orderHook) PreStep(state *training.State) error {
	*h.calls = append(*h.calls, "pre:"+h.name)
	return h.err
}

func (h *orderHook) PostStep(state *training.State, example, modelOutput any, review *shared.Review) {
	*h.calls = append(*h.calls, "post:"+h.name)
}

func (h *orderHook) Close(state *training.State) error {
	*h.calls = append(*h.calls, "close:"+h.name)
	return nil
}

func TestRegistryDispatchesInDescendingPriority(t *testing.T) {
	var calls []string
	r := NewRegistry()

	// Registered out of order on purpose.
	for _, h := range []*orderHook{
		{priority: training.PriorityEnd, name: "stop", calls: &calls},
		{priority: training.PrioritySummary, name: "summary", calls: &calls},
		{priority: training.PriorityValidation, name: "validation", calls: &calls},
		{priority: training.PriorityProgress, name: "progress", calls: &calls},
	} {
		if err := r.Register(h); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	state := &training.State{Iteration: 1}
	if err := r.PreStep(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"pre:summary", "pre:progress", "pre:validation", "pre:stop"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestRegistryEqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&orderHook{priority: training.PriorityValidation, name: "validation", calls: &calls})
	r.Register(&orderHook{priority: training.PriorityCheckpoint, name: "checkpoint", calls: &calls})

	r.PreStep(&training.State{})
	if calls[0] != "pre:validation" || calls[1] != "pre:checkpoint" {
		t.Errorf("equal priorities should keep registration order, got %v", calls)
	}
}

func TestRegistryStopSignalAfterAllOtherHooks(t *testing.T) {
	var calls []string
	r := NewRegistry()
	stop := &training.StopTraining{Iteration: 5, Epoch: 1}
	r.Register(&orderHook{priority: training.PriorityEnd, name: "stop", calls: &calls, err: stop})
	r.Register(&orderHook{priority: training.PrioritySummary, name: "summary", calls: &calls})

	err := r.PreStep(&training.State{})
	var got *training.StopTraining
	if !errors.As(err, &got) {
		t.Fatalf("expected StopTraining, got %v", err)
	}
	if calls[0] != "pre:summary" {
		t.Errorf("summary must run before the stop signal, got %v", calls)
	}
}

func TestRegistryPostStepAndClose(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&orderHook{priority: training.PrioritySummary, name: "summary", calls: &calls})
	r.Register(&orderHook{priority: training.PriorityEnd, name: "stop", calls: &calls})

	state := &training.State{}
	r.PostStep(state, nil, nil, nil)
	if err := r.Close(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"post:summary", "post:stop", "close:summary", "close:stop"}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestRegistryRejectsInvalidHooks(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, training.ErrNilHook) {
		t.Errorf("expected ErrNilHook, got %v", err)
	}
	var calls []string
	if err := r.Register(&orderHook{priority: 0, calls: &calls}); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
}
