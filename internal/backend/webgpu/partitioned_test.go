package webgpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/zhedahe/onnxruntime/internal/backend/cpu"
	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// gradCase is a randomized problem instance with float64 masters and float32
// copies, so the same case can feed every dtype path.
type gradCase struct {
	outer, feature int

	x64, dY64, scale64, mean64, invStd64 []float64
	x32, dY32, scale32, mean32, invStd32 []float32
}

func newGradCase(outer, feature int, seed int64) *gradCase {
	rng := rand.New(rand.NewSource(seed))

	c := &gradCase{outer: outer, feature: feature}
	size := outer * feature
	c.x64 = make([]float64, size)
	c.dY64 = make([]float64, size)
	c.x32 = make([]float32, size)
	c.dY32 = make([]float32, size)
	for i := 0; i < size; i++ {
		c.x32[i] = float32(rng.NormFloat64())
		c.dY32[i] = float32(rng.NormFloat64())
		c.x64[i] = float64(c.x32[i])
		c.dY64[i] = float64(c.dY32[i])
	}

	c.scale64 = make([]float64, feature)
	c.scale32 = make([]float32, feature)
	for j := 0; j < feature; j++ {
		c.scale32[j] = float32(0.5 + rng.Float64())
		c.scale64[j] = float64(c.scale32[j])
	}

	c.mean64 = make([]float64, outer)
	c.invStd64 = make([]float64, outer)
	c.mean32 = make([]float32, outer)
	c.invStd32 = make([]float32, outer)
	for r := 0; r < outer; r++ {
		row := r * feature
		var sum float64
		for j := 0; j < feature; j++ {
			sum += c.x64[row+j]
		}
		mu := sum / float64(feature)
		var sqSum float64
		for j := 0; j < feature; j++ {
			d := c.x64[row+j] - mu
			sqSum += d * d
		}
		c.mean64[r] = mu
		c.invStd64[r] = 1.0 / math.Sqrt(sqSum/float64(feature)+1e-5)
		c.mean32[r] = float32(mu)
		c.invStd32[r] = float32(c.invStd64[r])
	}

	return c
}

// runF32 executes a backend on the float32 view of the case.
func (c *gradCase) runF32(t *testing.T, b tensor.Backend) (xGrad, scaleGrad, biasGrad []float32) {
	t.Helper()

	mk := func(data []float32, shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.FromSlice(data, shape, tensor.CPU)
		if err != nil {
			t.Fatalf("failed to create tensor: %v", err)
		}
		return raw
	}

	xGradT, _ := tensor.NewRaw(tensor.Shape{c.outer, c.feature}, tensor.Float32, tensor.CPU)
	scaleGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float32, tensor.CPU)
	biasGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float32, tensor.CPU)

	err := b.LayerNormGrad(
		mk(c.dY32, tensor.Shape{c.outer, c.feature}),
		mk(c.x32, tensor.Shape{c.outer, c.feature}),
		mk(c.scale32, tensor.Shape{c.feature}),
		mk(c.mean32, tensor.Shape{c.outer}),
		mk(c.invStd32, tensor.Shape{c.outer}),
		xGradT, scaleGradT, biasGradT,
		c.outer, c.feature,
	)
	if err != nil {
		t.Fatalf("LayerNormGrad failed on %s: %v", b.Name(), err)
	}
	return xGradT.AsFloat32(), scaleGradT.AsFloat32(), biasGradT.AsFloat32()
}

// runF64 executes a backend on the float64 view of the case.
func (c *gradCase) runF64(t *testing.T, b tensor.Backend) (xGrad, scaleGrad, biasGrad []float64) {
	t.Helper()

	mk := func(data []float64, shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.FromSlice(data, shape, tensor.CPU)
		if err != nil {
			t.Fatalf("failed to create tensor: %v", err)
		}
		return raw
	}

	xGradT, _ := tensor.NewRaw(tensor.Shape{c.outer, c.feature}, tensor.Float64, tensor.CPU)
	scaleGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float64, tensor.CPU)
	biasGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float64, tensor.CPU)

	err := b.LayerNormGrad(
		mk(c.dY64, tensor.Shape{c.outer, c.feature}),
		mk(c.x64, tensor.Shape{c.outer, c.feature}),
		mk(c.scale64, tensor.Shape{c.feature}),
		mk(c.mean64, tensor.Shape{c.outer}),
		mk(c.invStd64, tensor.Shape{c.outer}),
		xGradT, scaleGradT, biasGradT,
		c.outer, c.feature,
	)
	if err != nil {
		t.Fatalf("LayerNormGrad failed on %s: %v", b.Name(), err)
	}
	return xGradT.AsFloat64(), scaleGradT.AsFloat64(), biasGradT.AsFloat64()
}

func maxAbsDiff32(a, b []float32) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(float64(a[i]-b[i])))
	}
	return m
}

func maxAbsDiff64(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

// TestStagedMatchesDense_Float32 checks cross-engine equivalence of the host
// staged reduction against the dense CPU engine.
func TestStagedMatchesDense_Float32(t *testing.T) {
	shapes := []struct{ outer, feature int }{
		{1, 3},    // single row
		{2, 2},    // minimal feature
		{3, 17},   // fewer rows than partitions
		{100, 32}, // several rows per partition
		{257, 5},  // uneven partition ranges
	}

	dense := cpu.New()
	staged := NewHost()

	for _, s := range shapes {
		c := newGradCase(s.outer, s.feature, 42)

		wantX, wantScale, wantBias := c.runF32(t, dense)
		gotX, gotScale, gotBias := c.runF32(t, staged)

		// Tolerance chosen empirically: both engines accumulate float32 in
		// different orders.
		const tol = 1e-4
		if d := maxAbsDiff32(gotX, wantX); d > tol {
			t.Errorf("outer=%d feature=%d: xGrad diverges by %v", s.outer, s.feature, d)
		}
		if d := maxAbsDiff32(gotScale, wantScale); d > tol {
			t.Errorf("outer=%d feature=%d: scaleGrad diverges by %v", s.outer, s.feature, d)
		}
		if d := maxAbsDiff32(gotBias, wantBias); d > tol {
			t.Errorf("outer=%d feature=%d: biasGrad diverges by %v", s.outer, s.feature, d)
		}
	}
}

// TestStagedMatchesDense_Float64 repeats the equivalence check in float64,
// where the tolerance can be tightened by several orders of magnitude.
func TestStagedMatchesDense_Float64(t *testing.T) {
	dense := cpu.New()
	staged := NewHost()

	c := newGradCase(64, 24, 9)

	wantX, wantScale, wantBias := c.runF64(t, dense)
	gotX, gotScale, gotBias := c.runF64(t, staged)

	const tol = 1e-12
	if d := maxAbsDiff64(gotX, wantX); d > tol {
		t.Errorf("xGrad diverges by %v", d)
	}
	if d := maxAbsDiff64(gotScale, wantScale); d > tol {
		t.Errorf("scaleGrad diverges by %v", d)
	}
	if d := maxAbsDiff64(gotBias, wantBias); d > tol {
		t.Errorf("biasGrad diverges by %v", d)
	}
}

// TestStagedReductionIdentity checks biasGrad == sum over rows of dY on the
// staged path directly, including the case where partitions get empty ranges.
func TestStagedReductionIdentity(t *testing.T) {
	for _, outer := range []int{1, 3, GradPartitions, GradPartitions * 3} {
		c := newGradCase(outer, 6, int64(outer))

		_, _, biasGrad := c.runF64(t, NewHost())

		for j := 0; j < c.feature; j++ {
			var want float64
			for r := 0; r < outer; r++ {
				want += c.dY64[r*c.feature+j]
			}
			if math.Abs(biasGrad[j]-want) > 1e-12 {
				t.Errorf("outer=%d: biasGrad[%d] = %v, want %v", outer, j, biasGrad[j], want)
			}
		}
	}
}

// TestStagedFeatureSizeOne checks the degenerate precondition before any
// phase launches.
func TestStagedFeatureSizeOne(t *testing.T) {
	b := NewHost()

	one := func(v float32, shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.FromSlice([]float32{v}, shape, tensor.CPU)
		if err != nil {
			t.Fatalf("failed to create tensor: %v", err)
		}
		return raw
	}

	xGrad, _ := tensor.NewRaw(tensor.Shape{1, 1}, tensor.Float32, tensor.CPU)
	scaleGrad, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	biasGrad, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)

	err := b.LayerNormGrad(
		one(1, tensor.Shape{1, 1}), one(1, tensor.Shape{1, 1}), one(1, tensor.Shape{1}),
		one(1, tensor.Shape{1}), one(1, tensor.Shape{1}),
		xGrad, scaleGrad, biasGrad, 1, 1,
	)
	if err == nil {
		t.Fatal("feature size 1 must be rejected")
	}
}

// TestStagedMixedPrecision runs float32 data with float64 statistics through
// the staged path and compares against the dense engine's mixed path.
func TestStagedMixedPrecision(t *testing.T) {
	c := newGradCase(33, 10, 77)

	mkF32 := func(data []float32, shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.FromSlice(data, shape, tensor.CPU)
		if err != nil {
			t.Fatalf("failed to create tensor: %v", err)
		}
		return raw
	}
	mkF64 := func(data []float64, shape tensor.Shape) *tensor.RawTensor {
		raw, err := tensor.FromSlice(data, shape, tensor.CPU)
		if err != nil {
			t.Fatalf("failed to create tensor: %v", err)
		}
		return raw
	}

	run := func(b tensor.Backend) ([]float32, []float32, []float32) {
		xGradT, _ := tensor.NewRaw(tensor.Shape{c.outer, c.feature}, tensor.Float32, tensor.CPU)
		scaleGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float32, tensor.CPU)
		biasGradT, _ := tensor.NewRaw(tensor.Shape{c.feature}, tensor.Float32, tensor.CPU)

		err := b.LayerNormGrad(
			mkF32(c.dY32, tensor.Shape{c.outer, c.feature}),
			mkF32(c.x32, tensor.Shape{c.outer, c.feature}),
			mkF32(c.scale32, tensor.Shape{c.feature}),
			mkF64(c.mean64, tensor.Shape{c.outer}),
			mkF64(c.invStd64, tensor.Shape{c.outer}),
			xGradT, scaleGradT, biasGradT,
			c.outer, c.feature,
		)
		if err != nil {
			t.Fatalf("mixed precision LayerNormGrad failed on %s: %v", b.Name(), err)
		}
		return xGradT.AsFloat32(), scaleGradT.AsFloat32(), biasGradT.AsFloat32()
	}

	wantX, wantScale, wantBias := run(cpu.New())
	gotX, gotScale, gotBias := run(NewHost())

	const tol = 1e-4
	if d := maxAbsDiff32(gotX, wantX); d > tol {
		t.Errorf("xGrad diverges by %v", d)
	}
	if d := maxAbsDiff32(gotScale, wantScale); d > tol {
		t.Errorf("scaleGrad diverges by %v", d)
	}
	if d := maxAbsDiff32(gotBias, wantBias); d > tol {
		t.Errorf("biasGrad diverges by %v", d)
	}
}
