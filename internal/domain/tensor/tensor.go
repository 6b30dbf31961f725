// Package tensor provides minimal dense tensors for the loss functions.
package tensor

import (
	"fmt"
)

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Int is a dense row-major integer tensor, used for class-index targets.
type Int struct {
	Shape []int
	Data  []int
}

// New creates a tensor and validates that the data length matches the shape.
func New(shape []int, data []float64) (*Tensor, error) {
	if n := Numel(shape); n != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d",
			ErrShapeMismatch, shape, n, len(data))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// Zeros creates a zero-filled tensor of the given shape.
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: shape, Data: make([]float64, Numel(shape))}
}

// NewInt creates an integer tensor and validates the data length.
func NewInt(shape []int, data []int) (*Int, error) {
	if n := Numel(shape); n != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d",
			ErrShapeMismatch, shape, n, len(data))
	}
	return &Int{Shape: shape, Data: data}, nil
}

// Numel returns the number of elements implied by a shape. An empty shape is
// a scalar with one element.
func Numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Numel returns the number of elements in the tensor.
func (t *Tensor) Numel() int {
	return Numel(t.Shape)
}

// Dim returns the size of axis i, counting negative indices from the back.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.Shape)
	}
	return t.Shape[i]
}

// Reshape returns a view of the tensor with a new shape. One dimension may be
// -1 and is inferred from the element count.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	resolved, err := resolveShape(shape, t.Numel())
	if err != nil {
		return nil, err
	}
	return &Tensor{Shape: resolved, Data: t.Data}, nil
}

func resolveShape(shape []int, numel int) ([]int, error) {
	resolved := make([]int, len(shape))
	copy(resolved, shape)
	infer := -1
	known := 1
	for i, d := range resolved {
		if d == -1 {
			if infer != -1 {
				return nil, fmt.Errorf("%w: more than one inferred dimension in %v",
					ErrShapeMismatch, shape)
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || numel%known != 0 {
			return nil, fmt.Errorf("%w: cannot infer shape %v from %d elements",
				ErrShapeMismatch, shape, numel)
		}
		resolved[infer] = numel / known
	}
	if Numel(resolved) != numel {
		return nil, fmt.Errorf("%w: shape %v does not hold %d elements",
			ErrShapeMismatch, shape, numel)
	}
	return resolved, nil
}

// Row returns the i-th slice along the first axis as a flat view.
func (t *Tensor) Row(i int) []float64 {
	stride := t.Numel() / t.Shape[0]
	return t.Data[i*stride : (i+1)*stride]
}

// PackedSequence is a ragged batch: variable-length sequences concatenated
// along the leading time axis, with per-element frame counts.
type PackedSequence struct {
	// Data has shape (sum of Lengths, trailing dims...).
	Data *Tensor
	// Lengths holds the true frame count of each batch element.
	Lengths []int
}

// PackedInt is the integer-valued counterpart of PackedSequence.
type PackedInt struct {
	Data    *Int
	Lengths []int
}

// NewPacked validates that the packed data's leading axis equals the summed
// lengths.
func NewPacked(data *Tensor, lengths []int) (*PackedSequence, error) {
	total := 0
	for _, l := range lengths {
		total += l
	}
	if len(data.Shape) == 0 || data.Shape[0] != total {
		return nil, fmt.Errorf("%w: packed data shape %v does not match summed lengths %d",
			ErrShapeMismatch, data.Shape, total)
	}
	return &PackedSequence{Data: data, Lengths: lengths}, nil
}

// Element returns the b-th sequence of the packed batch as a tensor of shape
// (Lengths[b], trailing dims...).
func (p *PackedSequence) Element(b int) *Tensor {
	stride := p.Data.Numel() / p.Data.Shape[0]
	offset := 0
	for i := 0; i < b; i++ {
		offset += p.Lengths[i]
	}
	shape := append([]int{p.Lengths[b]}, p.Data.Shape[1:]...)
	return &Tensor{
		Shape: shape,
		Data:  p.Data.Data[offset*stride : (offset+p.Lengths[b])*stride],
	}
}
