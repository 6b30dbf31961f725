// Package trigger provides the predicates that decide when periodic or
// terminal actions fire during training.
package trigger

import (
	"fmt"

	"github.com/TCord/padertorch/internal/shared"
)

// Kind discriminates the trigger variants.
type Kind int

const (
	// KindInterval fires on every multiple of a period.
	KindInterval Kind = iota
	// KindEnd fires once a counter reaches a maximum and stays true.
	KindEnd
	// KindOr fires if any child fires.
	KindOr
)

// Trigger is a predicate over the (iteration, epoch) counters of a training
// loop. A single instance must only be driven by one loop: it caches the last
// counters it fired at so epoch-unit intervals fire exactly once per
// qualifying epoch.
type Trigger struct {
	kind     Kind
	period   int
	unit     shared.Unit
	children []*Trigger

	// last counters this trigger fired at, -1 until the first fire.
	lastIteration int
	lastEpoch     int

	// counters observed at the most recent call, for the stop log line.
	seenIteration int
	seenEpoch     int
}

// NewInterval creates a periodic trigger. With unit iteration it fires when
// the iteration counter is an exact multiple of the period. With unit epoch it
// fires on the first call observed at every qualifying epoch.
func NewInterval(period int, unit shared.Unit) (*Trigger, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %d", ErrInvalidPeriod, period)
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return &Trigger{
		kind:          KindInterval,
		period:        period,
		unit:          unit,
		lastIteration: -1,
		lastEpoch:     -1,
	}, nil
}

// NewEnd creates a terminal trigger that fires once the counter in the
// configured unit reaches the maximum, and on every call after that.
func NewEnd(max int, unit shared.Unit) (*Trigger, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: maximum must be positive, got %d", ErrInvalidPeriod, max)
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return &Trigger{
		kind:          KindEnd,
		period:        max,
		unit:          unit,
		lastIteration: -1,
		lastEpoch:     -1,
	}, nil
}

// NewOr composes triggers into a disjunction. All children are evaluated on
// every call, regardless of earlier results, so stateful children keep their
// internal bookkeeping consistent.
func NewOr(children ...*Trigger) *Trigger {
	return &Trigger{kind: KindOr, children: children}
}

// AsInterval coerces a TriggerSpec or an existing *Trigger into a trigger
// with interval semantics. Anything else is a configuration error.
func AsInterval(v any) (*Trigger, error) {
	switch t := v.(type) {
	case *Trigger:
		return t, nil
	case shared.TriggerSpec:
		return NewInterval(t.Period, t.Unit)
	default:
		return nil, fmt.Errorf("%w: cannot build a trigger from %T", ErrInvalidSpec, v)
	}
}

// AsEnd coerces a TriggerSpec or an existing *Trigger into a trigger with
// terminal semantics.
func AsEnd(v any) (*Trigger, error) {
	switch t := v.(type) {
	case *Trigger:
		return t, nil
	case shared.TriggerSpec:
		return NewEnd(t.Period, t.Unit)
	default:
		return nil, fmt.Errorf("%w: cannot build a trigger from %T", ErrInvalidSpec, v)
	}
}

// Kind returns the trigger variant.
func (t *Trigger) Kind() Kind {
	return t.kind
}

// Fire evaluates the trigger at the given counters. Counters must be
// non-decreasing across calls on the same instance.
func (t *Trigger) Fire(iteration, epoch int) bool {
	t.seenIteration = iteration
	t.seenEpoch = epoch

	switch t.kind {
	case KindInterval:
		return t.fireInterval(iteration, epoch)
	case KindEnd:
		switch t.unit {
		case shared.UnitEpoch:
			return epoch >= t.period
		default:
			return iteration >= t.period
		}
	case KindOr:
		fired := false
		for _, child := range t.children {
			// No short circuit: every child must observe the step.
			if child.Fire(iteration, epoch) {
				fired = true
			}
		}
		return fired
	}
	return false
}

func (t *Trigger) fireInterval(iteration, epoch int) bool {
	switch t.unit {
	case shared.UnitEpoch:
		if epoch%t.period != 0 || epoch == t.lastEpoch {
			return false
		}
		t.lastEpoch = epoch
		t.lastIteration = iteration
		return true
	default:
		if iteration%t.period != 0 || iteration == t.lastIteration {
			return false
		}
		t.lastEpoch = epoch
		t.lastIteration = iteration
		return true
	}
}

// Reached returns the counters observed at the most recent call. The stop
// hook reports them when training ends.
func (t *Trigger) Reached() (iteration, epoch int) {
	return t.seenIteration, t.seenEpoch
}
