package postprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graspnet/internal/tensor"
)

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(2)
	require.Len(t, k, 17)
	var sum float64
	for i, v := range k {
		sum += v
		assert.InDelta(t, v, k[len(k)-1-i], 1e-15)
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.Len(t, gaussianKernel(1), 9)
}

func TestGaussianFilter(t *testing.T) {
	const n = 21
	flat := make([]float64, n*n)
	for i := range flat {
		flat[i] = 3
	}
	for _, v := range GaussianFilter(flat, n, n, 2) {
		assert.InDelta(t, 3, v, 1e-12)
	}

	impulse := make([]float64, n*n)
	impulse[10*n+10] = 1
	out := GaussianFilter(impulse, n, n, 2)
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)
	k := gaussianKernel(2)
	assert.InDelta(t, k[8]*k[8], out[10*n+10], 1e-12)
	assert.Greater(t, out[10*n+10], out[10*n+11])

	same := GaussianFilter(impulse, n, n, 0)
	assert.Equal(t, impulse, same)
}

func TestPostProcessOutput(t *testing.T) {
	shape := tensor.Shape{1, 1, 8, 8}
	pos := tensor.Zeros(shape)
	pos.Set4(0, 0, 4, 4, 1)
	cos := tensor.Full(shape, 0)
	sin := tensor.Full(shape, 1)
	width := tensor.Full(shape, 0.5)

	m, err := PostProcessOutput(pos, cos, sin, width)
	require.NoError(t, err)
	assert.Equal(t, 8, m.Rows)
	assert.Equal(t, 8, m.Cols)
	for i := range m.Angle {
		assert.InDelta(t, math.Pi/4, m.Angle[i], 1e-12)
		assert.InDelta(t, 75, m.Width[i], 1e-9)
	}
	assert.Greater(t, m.Quality[m.At(4, 4)], m.Quality[m.At(0, 0)])

	_, err = PostProcessOutput(pos, tensor.Zeros(tensor.Shape{1, 1, 4, 4}), sin, width)
	assert.Error(t, err)
	_, err = PostProcessOutput(tensor.Zeros(tensor.Shape{2, 1, 8, 8}), cos, sin, width)
	assert.Error(t, err)
	_, err = PostProcessOutput(tensor.Zeros(tensor.Shape{8}), cos, sin, width)
	assert.Error(t, err)
}

func peakMap() []float64 {
	img := make([]float64, 20*20)
	img[5*20+5] = 0.9
	img[5*20+8] = 0.8
	img[12*20+12] = 0.7
	return img
}

func TestPeakLocalMax(t *testing.T) {
	opts := DetectOptions{MinDistance: 3, Threshold: 0.2, NumGrasps: 3}
	peaks := PeakLocalMax(peakMap(), 20, 20, opts)
	require.Len(t, peaks, 2)
	assert.Equal(t, Peak{Row: 5, Col: 5, Value: 0.9}, peaks[0])
	assert.Equal(t, Peak{Row: 12, Col: 12, Value: 0.7}, peaks[1])

	opts.Threshold = 0.75
	assert.Len(t, PeakLocalMax(peakMap(), 20, 20, opts), 1)

	opts = DetectOptions{MinDistance: 6, Threshold: 0.2, NumGrasps: 3, ExcludeBorder: true}
	peaks = PeakLocalMax(peakMap(), 20, 20, opts)
	require.Len(t, peaks, 1)
	assert.Equal(t, 12, peaks[0].Row)

	opts.NumGrasps = 0
	assert.Empty(t, PeakLocalMax(peakMap(), 20, 20, opts))
}

func TestPeakLocalMaxPlateau(t *testing.T) {
	img := make([]float64, 10*10)
	img[3*10+3] = 0.5
	img[3*10+4] = 0.5
	peaks := PeakLocalMax(img, 10, 10, DetectOptions{MinDistance: 2, Threshold: 0.1, NumGrasps: 5})
	require.Len(t, peaks, 1)
	assert.Equal(t, 3, peaks[0].Col)
}

func TestDetectGrasps(t *testing.T) {
	m := Maps{Rows: 20, Cols: 20, Quality: peakMap(), Angle: make([]float64, 400), Width: make([]float64, 400)}
	m.Angle[m.At(12, 12)] = 0.3
	m.Width[m.At(12, 12)] = 40

	gs := DetectGrasps(m, DetectOptions{MinDistance: 6, Threshold: 0.2, NumGrasps: 1, ExcludeBorder: true})
	require.Len(t, gs, 1)
	assert.Equal(t, 12.0, gs[0].Center.X)
	assert.Equal(t, 12.0, gs[0].Center.Y)
	assert.Equal(t, 0.3, gs[0].Angle)
	assert.Equal(t, 40.0, gs[0].Length)
	assert.Equal(t, 20.0, gs[0].Width)

	assert.Empty(t, DetectGrasps(Maps{Rows: 20, Cols: 20, Quality: make([]float64, 400)}, DefaultDetectOptions()))
}
