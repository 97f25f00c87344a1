package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graspnet/internal/tensor"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// TestConv2D_ForwardShape tests forward pass output shape.
func TestConv2D_ForwardShape(t *testing.T) {
	conv := NewConv2D(1, 6, 5, 5, 1, 0, true, newRNG())
	output := conv.Forward(tensor.Zeros(tensor.Shape{2, 1, 28, 28}))
	assert.Equal(t, tensor.Shape{2, 6, 24, 24}, output.Shape())

	strided := NewConv2D(3, 4, 3, 3, 2, 1, false, newRNG())
	assert.Equal(t, [2]int{16, 16}, strided.ComputeOutputSize(32, 32))
	assert.Len(t, strided.Parameters(), 1)
}

// TestConv2D_ForwardValues tests forward pass with known values.
func TestConv2D_ForwardValues(t *testing.T) {
	conv := NewConv2D(1, 1, 2, 2, 1, 0, true, newRNG())
	copy(conv.Weight().Tensor().Data(), []float64{1, 0, 0, 1})
	conv.Bias().Tensor().Data()[0] = 0.5

	input, err := tensor.FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	require.NoError(t, err)

	out := conv.Forward(input)
	// Each output is top-left + bottom-right of its 2x2 window, plus bias.
	assert.Equal(t, []float64{6.5, 8.5, 12.5, 14.5}, out.Data())
}

func TestConv2D_Padding(t *testing.T) {
	conv := NewConv2D(1, 1, 3, 3, 1, 1, false, newRNG())
	conv.Weight().Tensor().Fill(1)
	out := conv.Forward(tensor.Full(tensor.Shape{1, 1, 3, 3}, 1))
	// Corners see 4 pixels, edges 6, the centre 9.
	assert.Equal(t, []float64{4, 6, 4, 6, 9, 6, 4, 6, 4}, out.Data())
}

// numericalGrad perturbs every element of x and measures the change in loss.
func numericalGrad(x []float64, loss func() float64) []float64 {
	const eps = 1e-5
	grad := make([]float64, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + eps
		up := loss()
		x[i] = orig - eps
		down := loss()
		x[i] = orig
		grad[i] = (up - down) / (2 * eps)
	}
	return grad
}

func TestConv2D_GradientCheck(t *testing.T) {
	rng := newRNG()
	conv := NewConv2D(2, 3, 3, 3, 2, 1, true, rng)
	input := tensor.Randn(tensor.Shape{2, 2, 5, 5}, rng)
	target := tensor.Randn(tensor.Shape{2, 3, 3, 3}, rng)

	loss := func() float64 {
		conv.SetTraining(false)
		l, _ := MSELoss(conv.Forward(input), target)
		return l
	}

	conv.SetTraining(true)
	_, grad := MSELoss(conv.Forward(input), target)
	gradInput := conv.Backward(grad)

	assert.InDeltaSlice(t, numericalGrad(input.Data(), loss), gradInput.Data(), 1e-6)
	assert.InDeltaSlice(t, numericalGrad(conv.Weight().Tensor().Data(), loss), conv.Weight().Grad().Data(), 1e-6)
	assert.InDeltaSlice(t, numericalGrad(conv.Bias().Tensor().Data(), loss), conv.Bias().Grad().Data(), 1e-6)
}

func TestSequential_GradientCheck(t *testing.T) {
	rng := newRNG()
	model := NewSequential(
		NewConv2D(1, 2, 3, 3, 1, 1, true, rng),
		NewReLU(),
		NewMaxPool2D(2, 2),
		NewConv2D(2, 2, 3, 3, 1, 1, true, rng),
		NewTanh(),
		NewUpsample2D(2),
		NewConv2D(2, 1, 1, 1, 1, 0, true, rng),
	)
	input := tensor.Randn(tensor.Shape{1, 1, 4, 4}, rng)
	target := tensor.Randn(tensor.Shape{1, 1, 4, 4}, rng)

	model.SetTraining(true)
	_, grad := MSELoss(model.Forward(input), target)
	model.Backward(grad)

	loss := func() float64 {
		model.SetTraining(false)
		l, _ := MSELoss(model.Forward(input), target)
		return l
	}
	for _, p := range model.Parameters() {
		require.NotNil(t, p.Grad(), p.Name())
		assert.InDeltaSlice(t, numericalGrad(p.Tensor().Data(), loss), p.Grad().Data(), 1e-5, p.Name())
	}
}

func TestBackwardWithoutTrainingPanics(t *testing.T) {
	layers := []Module{
		NewConv2D(1, 1, 1, 1, 1, 0, false, newRNG()),
		NewReLU(),
		NewTanh(),
		NewMaxPool2D(2, 2),
		NewUpsample2D(2),
	}
	for _, l := range layers {
		l.SetTraining(false)
		out := l.Forward(tensor.Zeros(tensor.Shape{1, 1, 4, 4}))
		assert.Panics(t, func() { l.Backward(out) }, l.String())
	}
}

func TestMaxPool2D(t *testing.T) {
	pool := NewMaxPool2D(2, 2)
	pool.SetTraining(true)
	input, err := tensor.FromSlice([]float64{
		1, 2, 5, 0,
		3, 4, 1, 1,
		0, 0, 9, 8,
		0, 7, 6, 5,
	}, tensor.Shape{1, 1, 4, 4})
	require.NoError(t, err)

	out := pool.Forward(input)
	assert.Equal(t, []float64{4, 5, 7, 9}, out.Data())

	grad := pool.Backward(tensor.Full(out.Shape(), 1))
	assert.Equal(t, []float64{
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
	}, grad.Data())
}

func TestUpsample2D(t *testing.T) {
	up := NewUpsample2D(2)
	up.SetTraining(true)
	input, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	require.NoError(t, err)

	out := up.Forward(input)
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, out.Shape())
	assert.Equal(t, []float64{1, 1, 2, 2, 1, 1, 2, 2, 3, 3, 4, 4, 3, 3, 4, 4}, out.Data())

	grad := up.Backward(tensor.Full(out.Shape(), 1))
	assert.Equal(t, []float64{4, 4, 4, 4}, grad.Data())
}

func TestMSELoss(t *testing.T) {
	p, _ := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{3})
	y, _ := tensor.FromSlice([]float64{1, 0, 6}, tensor.Shape{3})
	loss, grad := MSELoss(p, y)
	assert.InDelta(t, (0+4+9)/3.0, loss, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 4.0 / 3, -2}, grad.Data(), 1e-12)
	assert.Panics(t, func() { MSELoss(p, tensor.Zeros(tensor.Shape{2})) })
}

func TestXavierBounds(t *testing.T) {
	w := Xavier(10, 20, tensor.Shape{200}, newRNG())
	bound := math.Sqrt(6.0 / 30.0)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	build := func(seed int64) *Sequential {
		rng := rand.New(rand.NewSource(seed))
		return NewSequential(
			NewConv2D(1, 2, 3, 3, 1, 1, true, rng),
			NewReLU(),
			NewConv2D(2, 1, 1, 1, 1, 0, true, rng),
		)
	}
	src, dst := build(1), build(2)

	dict := StateDict(src.Parameters())
	assert.Contains(t, dict, "0.weight")
	assert.Contains(t, dict, "2.bias")
	require.NoError(t, LoadStateDict(dst.Parameters(), dict))
	for i, p := range dst.Parameters() {
		assert.Equal(t, src.Parameters()[i].Tensor().Data(), p.Tensor().Data())
	}
	assert.Equal(t, 2*9+2+2+1, CountParameters(dst.Parameters()))

	delete(dict, "0.weight")
	assert.ErrorContains(t, LoadStateDict(dst.Parameters(), dict), "missing parameter")

	dict = StateDict(src.Parameters())
	dict["extra"] = tensor.Zeros(tensor.Shape{1})
	assert.ErrorContains(t, LoadStateDict(dst.Parameters(), dict), "unexpected parameters")

	dict = StateDict(src.Parameters())
	dict["2.bias"] = tensor.Zeros(tensor.Shape{3})
	assert.ErrorContains(t, LoadStateDict(dst.Parameters(), dict), "shape")
}

func TestParameterAccumulateGrad(t *testing.T) {
	p := NewParameter("w", tensor.Zeros(tensor.Shape{2}))
	assert.Nil(t, p.Grad())
	p.AccumulateGrad([]float64{1, 2})
	p.AccumulateGrad([]float64{1, 2})
	assert.Equal(t, []float64{2, 4}, p.Grad().Data())
	p.ZeroGrad()
	assert.Nil(t, p.Grad())
	assert.Panics(t, func() { p.AccumulateGrad([]float64{1}) })
}
