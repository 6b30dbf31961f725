package losses

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/TCord/padertorch/internal/domain/tensor"
)

// Normal is a batch of diagonal-covariance Gaussians with batch shape
// (B1, ..., Bn, D): per-dimension means and scales (standard deviations).
type Normal struct {
	Loc   *tensor.Tensor
	Scale *tensor.Tensor
}

// MultivariateNormal is a batch of full-covariance Gaussians with component
// shape (K1, ..., Kn, D): means plus the lower-triangular Cholesky factor of
// each covariance, shaped (K1, ..., Kn, D, D).
type MultivariateNormal struct {
	Loc       *tensor.Tensor
	ScaleTril *tensor.Tensor
}

// KLNormalMultivariateNormals computes the closed-form KL divergence between
// every posterior in q and every component in p, returning a tensor shaped
// (B1, ..., Bn, K1, ..., Kn).
//
// Both batches are flattened; for each component the log determinant of its
// triangular factor and its inverse (built by an explicit solve per matrix)
// are combined with the trace and quadratic-form terms of the standard
// multivariate Gaussian KL formula, then the result is reshaped back to the
// original batch and component axes.
func KLNormalMultivariateNormals(q Normal, p MultivariateNormal) (*tensor.Tensor, error) {
	if !tensor.SameShape(q.Loc.Shape, q.Scale.Shape) {
		return nil, fmt.Errorf("%w: q loc %v, q scale %v",
			tensor.ErrShapeMismatch, q.Loc.Shape, q.Scale.Shape)
	}
	if len(q.Loc.Shape) == 0 || len(p.Loc.Shape) == 0 {
		return nil, fmt.Errorf("%w: distributions need an event axis",
			tensor.ErrShapeMismatch)
	}
	dim := q.Loc.Dim(-1)
	if p.Loc.Dim(-1) != dim {
		return nil, fmt.Errorf("%w: q event size %d, p event size %d",
			tensor.ErrShapeMismatch, dim, p.Loc.Dim(-1))
	}
	wantTril := append(append([]int{}, p.Loc.Shape...), dim)
	if !tensor.SameShape(p.ScaleTril.Shape, wantTril) {
		return nil, fmt.Errorf("%w: scale_tril %v, want %v",
			tensor.ErrShapeMismatch, p.ScaleTril.Shape, wantTril)
	}

	batchShape := q.Loc.Shape[:len(q.Loc.Shape)-1]
	componentShape := p.Loc.Shape[:len(p.Loc.Shape)-1]
	batch := tensor.Numel(batchShape)
	components := tensor.Numel(componentShape)

	eye := identity(dim)
	out := tensor.Zeros(append(append([]int{}, batchShape...), componentShape...)...)

	for j := 0; j < components; j++ {
		tril := mat.NewDense(dim, dim, p.ScaleTril.Data[j*dim*dim:(j+1)*dim*dim])
		pLoc := p.Loc.Data[j*dim : (j+1)*dim]

		logDet := 0.0
		for i := 0; i < dim; i++ {
			d := tril.At(i, i)
			if d <= 0 {
				return nil, fmt.Errorf("scale_tril diagonal must be positive, got %v in component %d", d, j)
			}
			logDet += math.Log(d)
		}

		// Explicit inverse, one solve per matrix.
		var inv mat.Dense
		if err := inv.Solve(tril, eye); err != nil {
			return nil, fmt.Errorf("scale_tril of component %d is singular: %v", j, err)
		}

		// Squared column sums of the inverse, for the trace term.
		colSq := make([]float64, dim)
		for c := 0; c < dim; c++ {
			for r := 0; r < dim; r++ {
				v := inv.At(r, c)
				colSq[c] += v * v
			}
		}

		diff := make([]float64, dim)
		white := make([]float64, dim)
		for b := 0; b < batch; b++ {
			qLoc := q.Loc.Data[b*dim : (b+1)*dim]
			qScale := q.Scale.Data[b*dim : (b+1)*dim]

			term1 := logDet
			term2 := 0.0
			for i := 0; i < dim; i++ {
				term1 -= math.Log(qScale[i])
				term2 += colSq[i] * qScale[i] * qScale[i]
				diff[i] = pLoc[i] - qLoc[i]
			}

			// Whitened mean difference: inv * diff.
			term3 := 0.0
			for r := 0; r < dim; r++ {
				white[r] = 0
				for c := 0; c < dim; c++ {
					white[r] += inv.At(r, c) * diff[c]
				}
				term3 += white[r] * white[r]
			}

			out.Data[b*components+j] = term1 + 0.5*(term2+term3-float64(dim))
		}
	}
	return out, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
