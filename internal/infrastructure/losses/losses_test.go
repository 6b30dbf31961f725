package losses

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/TCord/padertorch/internal/domain/tensor"
)

func TestSoftmaxCrossEntropyScalarResult(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	logits := tensor.Zeros(100, 3)
	for i := range logits.Data {
		logits.Data[i] = rng.NormFloat64()
	}
	targets := &tensor.Int{Shape: []int{100}, Data: make([]int, 100)}
	for i := range targets.Data {
		targets.Data[i] = rng.Intn(3)
	}

	loss, err := SoftmaxCrossEntropy(logits, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Errorf("loss should be finite, got %v", loss)
	}
	if loss <= 0 {
		t.Errorf("cross entropy of random logits should be positive, got %v", loss)
	}
}

func TestSoftmaxCrossEntropyKnownValue(t *testing.T) {
	// Uniform logits: loss is log(K) for every position.
	logits := tensor.Zeros(4, 3)
	targets := &tensor.Int{Shape: []int{4}, Data: []int{0, 1, 2, 0}}

	loss, err := SoftmaxCrossEntropy(logits, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(loss-math.Log(3)) > 1e-12 {
		t.Errorf("expected log(3)=%v, got %v", math.Log(3), loss)
	}
}

func TestSoftmaxCrossEntropyIgnoreIndex(t *testing.T) {
	logits, _ := tensor.New([]int{4, 2}, []float64{
		2, 0,
		0, 2,
		5, -5,
		-1, 1,
	})
	targets := &tensor.Int{Shape: []int{4}, Data: []int{0, 1, IgnoreIndex, IgnoreIndex}}

	loss, err := SoftmaxCrossEntropy(logits, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Manual exclusion: mean over the two counted positions only.
	manual := 0.0
	for _, i := range []int{0, 1} {
		row := logits.Data[i*2 : (i+1)*2]
		lse := math.Log(math.Exp(row[0]) + math.Exp(row[1]))
		manual += lse - row[targets.Data[i]]
	}
	manual /= 2

	if math.Abs(loss-manual) > 1e-12 {
		t.Errorf("expected %v, got %v", manual, loss)
	}
}

func TestSoftmaxCrossEntropyAllIgnored(t *testing.T) {
	logits := tensor.Zeros(3, 2)
	targets := &tensor.Int{Shape: []int{3}, Data: []int{IgnoreIndex, IgnoreIndex, IgnoreIndex}}

	loss, err := SoftmaxCrossEntropy(logits, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loss != 0 {
		t.Errorf("expected 0 for fully ignored targets, got %v", loss)
	}
}

func TestSoftmaxCrossEntropyShapeMismatch(t *testing.T) {
	logits := tensor.Zeros(10, 3)
	targets := &tensor.Int{Shape: []int{9}, Data: make([]int, 9)}

	if _, err := SoftmaxCrossEntropy(logits, targets); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestSoftmaxCrossEntropyPacked(t *testing.T) {
	data := tensor.Zeros(5, 3)
	logits, _ := tensor.NewPacked(data, []int{2, 3})
	targets := &tensor.PackedInt{
		Data:    &tensor.Int{Shape: []int{5}, Data: []int{0, 1, 2, 0, 1}},
		Lengths: []int{2, 3},
	}

	loss, err := SoftmaxCrossEntropyPacked(logits, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(loss-math.Log(3)) > 1e-12 {
		t.Errorf("expected log(3), got %v", loss)
	}

	bad := &tensor.PackedInt{Data: targets.Data, Lengths: []int{3, 2}}
	if _, err := SoftmaxCrossEntropyPacked(logits, bad); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for differing lengths, got %v", err)
	}
}

func TestPITMSELossPermutationInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	target := tensor.Zeros(6, 2, 4)
	for i := range target.Data {
		target.Data[i] = rng.NormFloat64()
	}

	// Identical estimate: exactly zero.
	loss, err := PITMSELoss(target, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loss != 0 {
		t.Errorf("expected 0 for identical estimate, got %v", loss)
	}

	// Swapped sources: also exactly zero.
	swapped := tensor.Zeros(6, 2, 4)
	for ti := 0; ti < 6; ti++ {
		for k := 0; k < 2; k++ {
			for f := 0; f < 4; f++ {
				swapped.Data[(ti*2+k)*4+f] = target.Data[(ti*2+(1-k))*4+f]
			}
		}
	}
	loss, err = PITMSELoss(swapped, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loss != 0 {
		t.Errorf("expected 0 for swapped estimate, got %v", loss)
	}
}

func TestPITMSELossShapeChecks(t *testing.T) {
	a := tensor.Zeros(6, 2, 4)
	b := tensor.Zeros(6, 2, 5)
	if _, err := PITMSELoss(a, b); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	three := tensor.Zeros(6, 3, 4)
	if _, err := PITMSELoss(three, three); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for three sources, got %v", err)
	}
}

// perfectPartition builds embeddings that one-hot partition into orthogonal
// clusters with zero intra-cluster variance.
func perfectPartition(n, k int) (*tensor.Tensor, *tensor.Tensor) {
	x := tensor.Zeros(n, k)
	t := tensor.Zeros(n, k)
	for i := 0; i < n; i++ {
		c := i % k
		x.Data[i*k+c] = 1
		t.Data[i*k+c] = 1
	}
	return x, t
}

func TestDeepClusteringLossPerfectPartition(t *testing.T) {
	x, targets := perfectPartition(12, 3)

	loss, err := DeepClusteringLoss(x, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(loss) > 1e-12 {
		t.Errorf("expected ~0 for a perfect partition, got %v", loss)
	}
}

func TestDeepClusteringLossColumnPermutationInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n, e, k := 20, 5, 3

	x := tensor.Zeros(n, e)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}
	targets := tensor.Zeros(n, k)
	for i := 0; i < n; i++ {
		targets.Data[i*k+rng.Intn(k)] = 1
	}

	// Permute the K columns: (0,1,2) -> (2,0,1).
	permuted := tensor.Zeros(n, k)
	perm := []int{2, 0, 1}
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			permuted.Data[i*k+perm[c]] = targets.Data[i*k+c]
		}
	}

	a, err := DeepClusteringLoss(x, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DeepClusteringLoss(x, permuted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(a-b) > 1e-10 {
		t.Errorf("loss should be invariant to column permutation: %v != %v", a, b)
	}
}

func TestDeepClusteringLossPacked(t *testing.T) {
	// Two sequences of 2 and 1 frames, F=2 slots per frame, E=K=2.
	makePacked := func() (*tensor.PackedSequence, *tensor.PackedSequence) {
		x := tensor.Zeros(3, 2, 2)
		t := tensor.Zeros(3, 2, 2)
		for i := 0; i < 6; i++ {
			c := i % 2
			x.Data[i*2+c] = 1
			t.Data[i*2+c] = 1
		}
		px, _ := tensor.NewPacked(x, []int{2, 1})
		pt, _ := tensor.NewPacked(t, []int{2, 1})
		return px, pt
	}

	px, pt := makePacked()
	loss, err := DeepClusteringLossPacked(px, pt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(loss) > 1e-12 {
		t.Errorf("expected ~0 for perfect packed partitions, got %v", loss)
	}
}

func TestKLIdenticalDistributionsIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	batch, dim := 4, 3

	loc := tensor.Zeros(batch, dim)
	scale := tensor.Zeros(batch, dim)
	for i := range loc.Data {
		loc.Data[i] = rng.NormFloat64()
		scale.Data[i] = 0.5 + rng.Float64()
	}

	// Express the same diagonal Gaussians as full-covariance components.
	tril := tensor.Zeros(batch, dim, dim)
	for b := 0; b < batch; b++ {
		for i := 0; i < dim; i++ {
			tril.Data[(b*dim+i)*dim+i] = scale.Data[b*dim+i]
		}
	}

	q := Normal{Loc: loc, Scale: scale}
	p := MultivariateNormal{Loc: loc, ScaleTril: tril}

	kl, err := KLNormalMultivariateNormals(q, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tensor.SameShape(kl.Shape, []int{batch, batch}) {
		t.Fatalf("expected shape (%d, %d), got %v", batch, batch, kl.Shape)
	}

	for b := 0; b < batch; b++ {
		diag := kl.Data[b*batch+b]
		if math.Abs(diag) > 1e-10 {
			t.Errorf("kl(q_%d, q_%d) should be ~0, got %v", b, b, diag)
		}
	}
	// Off-diagonal entries compare different distributions and must be
	// positive.
	if kl.Data[1] <= 0 {
		t.Errorf("kl between different distributions should be positive, got %v", kl.Data[1])
	}
}

func TestKLShapeChecks(t *testing.T) {
	q := Normal{Loc: tensor.Zeros(2, 3), Scale: tensor.Zeros(2, 2)}
	p := MultivariateNormal{Loc: tensor.Zeros(2, 3), ScaleTril: tensor.Zeros(2, 3, 3)}
	if _, err := KLNormalMultivariateNormals(q, p); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for loc/scale mismatch, got %v", err)
	}

	q = Normal{Loc: tensor.Zeros(2, 3), Scale: tensor.Zeros(2, 3)}
	p = MultivariateNormal{Loc: tensor.Zeros(2, 4), ScaleTril: tensor.Zeros(2, 4, 4)}
	if _, err := KLNormalMultivariateNormals(q, p); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for event size mismatch, got %v", err)
	}
}

func TestKLRejectsNonPositiveDiagonal(t *testing.T) {
	q := Normal{Loc: tensor.Zeros(1, 2), Scale: onesTensor(1, 2)}
	tril := tensor.Zeros(1, 2, 2)
	tril.Data[0] = 1
	tril.Data[3] = 0 // zero diagonal entry

	p := MultivariateNormal{Loc: tensor.Zeros(1, 2), ScaleTril: tril}
	if _, err := KLNormalMultivariateNormals(q, p); err == nil {
		t.Error("expected error for non-positive scale_tril diagonal")
	}
}

func onesTensor(shape ...int) *tensor.Tensor {
	t := tensor.Zeros(shape...)
	for i := range t.Data {
		t.Data[i] = 1
	}
	return t
}
