package tensor

import (
	"errors"
	"testing"
)

func TestNewValidatesLength(t *testing.T) {
	if _, err := New([]int{2, 3}, make([]float64, 6)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := New([]int{2, 3}, make([]float64, 5))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestReshape(t *testing.T) {
	x := Zeros(2, 3, 4)

	y, err := x.Reshape(-1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !SameShape(y.Shape, []int{6, 4}) {
		t.Errorf("expected shape [6 4], got %v", y.Shape)
	}

	if _, err := x.Reshape(5, -1); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for non-divisible shape, got %v", err)
	}
	if _, err := x.Reshape(-1, -1); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for double inference, got %v", err)
	}
}

func TestRow(t *testing.T) {
	x, _ := New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	row := x.Row(1)
	if len(row) != 3 || row[0] != 4 {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestPackedElement(t *testing.T) {
	// Two sequences of 2 and 3 frames, each frame 2-dimensional.
	data, _ := New([]int{5, 2}, []float64{
		1, 1,
		2, 2,
		10, 10,
		20, 20,
		30, 30,
	})
	packed, err := NewPacked(data, []int{2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := packed.Element(0)
	if !SameShape(first.Shape, []int{2, 2}) || first.Data[0] != 1 {
		t.Errorf("unexpected first element: %v %v", first.Shape, first.Data)
	}
	second := packed.Element(1)
	if !SameShape(second.Shape, []int{3, 2}) || second.Data[0] != 10 {
		t.Errorf("unexpected second element: %v %v", second.Shape, second.Data)
	}
}

func TestNewPackedValidatesLengths(t *testing.T) {
	data := Zeros(4, 2)
	if _, err := NewPacked(data, []int{2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
