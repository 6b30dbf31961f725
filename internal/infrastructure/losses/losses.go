// Package losses provides the stateless batched loss functions.
package losses

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/TCord/padertorch/internal/domain/tensor"
)

// IgnoreIndex marks target positions excluded from the cross entropy average.
const IgnoreIndex = -1

// SoftmaxCrossEntropy computes the mean cross entropy between logits of shape
// (..., K) and integer class targets of shape (...). All dimensions but the
// last are treated as independent. Positions whose target equals IgnoreIndex
// are excluded from the average.
func SoftmaxCrossEntropy(logits *tensor.Tensor, targets *tensor.Int) (float64, error) {
	if len(logits.Shape) == 0 {
		return 0, fmt.Errorf("%w: logits must have a class axis, got shape %v",
			tensor.ErrShapeMismatch, logits.Shape)
	}
	if !tensor.SameShape(logits.Shape[:len(logits.Shape)-1], targets.Shape) {
		return 0, fmt.Errorf("%w: logits %v, targets %v",
			tensor.ErrShapeMismatch, logits.Shape, targets.Shape)
	}

	k := logits.Dim(-1)
	total := 0.0
	count := 0
	for i, target := range targets.Data {
		if target == IgnoreIndex {
			continue
		}
		if target < 0 || target >= k {
			return 0, fmt.Errorf("target index %d out of range [0, %d) at position %d",
				target, k, i)
		}
		row := logits.Data[i*k : (i+1)*k]
		total += floats.LogSumExp(row) - row[target]
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}

// SoftmaxCrossEntropyPacked computes the cross entropy over packed ragged
// batches. The packed representation is already free of padding, so the loss
// operates directly on the packed data.
func SoftmaxCrossEntropyPacked(logits *tensor.PackedSequence, targets *tensor.PackedInt) (float64, error) {
	if !sameLengths(logits.Lengths, targets.Lengths) {
		return 0, fmt.Errorf("%w: packed lengths %v != %v",
			tensor.ErrShapeMismatch, logits.Lengths, targets.Lengths)
	}
	return SoftmaxCrossEntropy(logits.Data, targets.Data)
}

// DeepClusteringLoss computes the deep clustering embedding loss between
// embeddings x of shape (N, E) and a one-hot or soft assignment t of shape
// (N, K):
//
//	(|X^T X|_F^2 - 2 |X^T T|_F^2 + |T^T T|_F^2) / N^2
//
// Unit-normalizing the embedding rows is the caller's responsibility.
func DeepClusteringLoss(x, t *tensor.Tensor) (float64, error) {
	if len(x.Shape) != 2 || len(t.Shape) != 2 || x.Shape[0] != t.Shape[0] {
		return 0, fmt.Errorf("%w: embeddings %v, targets %v",
			tensor.ErrShapeMismatch, x.Shape, t.Shape)
	}

	n := x.Shape[0]
	if n == 0 {
		return 0, nil
	}
	X := mat.NewDense(n, x.Shape[1], x.Data)
	T := mat.NewDense(n, t.Shape[1], t.Data)

	var xtx, xtt, ttt mat.Dense
	xtx.Mul(X.T(), X)
	xtt.Mul(X.T(), T)
	ttt.Mul(T.T(), T)

	loss := squaredFrobenius(&xtx) - 2*squaredFrobenius(&xtt) + squaredFrobenius(&ttt)
	return loss / float64(n*n), nil
}

// DeepClusteringLossPacked computes the deep clustering loss over packed
// ragged batches with data shape (sumT, F, E) and (sumT, F, K). The loss
// couples all time-frequency slots of a sequence, so it is computed per batch
// element over its true frame count and averaged.
func DeepClusteringLossPacked(x, t *tensor.PackedSequence) (float64, error) {
	if !sameLengths(x.Lengths, t.Lengths) {
		return 0, fmt.Errorf("%w: packed lengths %v != %v",
			tensor.ErrShapeMismatch, x.Lengths, t.Lengths)
	}

	total := 0.0
	for b := range x.Lengths {
		xe, err := x.Element(b).Reshape(-1, x.Data.Dim(-1))
		if err != nil {
			return 0, err
		}
		te, err := t.Element(b).Reshape(-1, t.Data.Dim(-1))
		if err != nil {
			return 0, err
		}
		loss, err := DeepClusteringLoss(xe, te)
		if err != nil {
			return 0, err
		}
		total += loss
	}
	return total / float64(len(x.Lengths)), nil
}

// PITMSELoss computes the permutation invariant MSE between estimate and
// target, both shaped (T, K, F) with exactly two sources: the MSE is computed
// for the identity and the swapped source assignment and the minimum is
// returned.
func PITMSELoss(estimate, target *tensor.Tensor) (float64, error) {
	if !tensor.SameShape(estimate.Shape, target.Shape) {
		return 0, fmt.Errorf("%w: estimate %v, target %v",
			tensor.ErrShapeMismatch, estimate.Shape, target.Shape)
	}
	if len(estimate.Shape) != 3 || estimate.Shape[1] != 2 {
		return 0, fmt.Errorf("%w: expected shape (T, 2, F), got %v",
			tensor.ErrShapeMismatch, estimate.Shape)
	}

	frames, sources, bins := estimate.Shape[0], estimate.Shape[1], estimate.Shape[2]
	identity := 0.0
	swapped := 0.0
	for ti := 0; ti < frames; ti++ {
		for k := 0; k < sources; k++ {
			for f := 0; f < bins; f++ {
				e := estimate.Data[(ti*sources+k)*bins+f]
				d := e - target.Data[(ti*sources+k)*bins+f]
				identity += d * d
				d = e - target.Data[(ti*sources+(1-k))*bins+f]
				swapped += d * d
			}
		}
	}
	n := float64(frames * sources * bins)
	return math.Min(identity/n, swapped/n), nil
}

func squaredFrobenius(m mat.Matrix) float64 {
	f := mat.Norm(m, 2)
	return f * f
}

func sameLengths(a, b []int) bool {
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
