// Package postprocess turns raw per-pixel network outputs into smoothed
// quality, angle and width maps and extracts discrete grasp candidates.
package postprocess

import (
	"fmt"
	"math"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
)

// WidthScale converts the normalised width output back to pixels.
const WidthScale = 150.0

// Smoothing sigmas applied by PostProcessOutput.
const (
	QualitySigma = 2.0
	AngleSigma   = 2.0
	WidthSigma   = 1.0
)

// Maps are the post-processed outputs for one image, row-major.
type Maps struct {
	Rows, Cols int
	Quality    []float64
	Angle      []float64 // radians
	Width      []float64 // pixels
}

// At returns the flat index of (row, col).
func (m Maps) At(row, col int) int {
	return row*m.Cols + col
}

// plane extracts the single H×W map held by t. Leading dimensions must all
// be one, so [1,1,H,W], [1,H,W] and [H,W] are accepted.
func plane(t *tensor.Tensor) (rows, cols int, data []float64, err error) {
	s := t.Shape()
	if len(s) < 2 {
		return 0, 0, nil, fmt.Errorf("expected at least 2 dimensions, got shape %v", s)
	}
	rows, cols = s[len(s)-2], s[len(s)-1]
	if rows*cols != t.NumElements() {
		return 0, 0, nil, fmt.Errorf("shape %v holds more than one map", s)
	}
	return rows, cols, t.Data(), nil
}

// PostProcessOutput converts the four raw outputs for a single sample into
// Maps: quality smoothed with QualitySigma, angle atan2(sin, cos)/2 smoothed
// with AngleSigma, width scaled by WidthScale and smoothed with WidthSigma.
func PostProcessOutput(pos, cos, sin, width *tensor.Tensor) (Maps, error) {
	rows, cols, q, err := plane(pos)
	if err != nil {
		return Maps{}, fmt.Errorf("pos: %w", err)
	}
	inputs := map[string]*tensor.Tensor{"cos": cos, "sin": sin, "width": width}
	planes := make(map[string][]float64, len(inputs))
	for name, t := range inputs {
		r, c, data, err := plane(t)
		if err != nil {
			return Maps{}, fmt.Errorf("%s: %w", name, err)
		}
		if r != rows || c != cols {
			return Maps{}, fmt.Errorf("%s: map is %dx%d, pos is %dx%d", name, r, c, rows, cols)
		}
		planes[name] = data
	}

	n := rows * cols
	ang := make([]float64, n)
	w := make([]float64, n)
	cs, sn, wd := planes["cos"], planes["sin"], planes["width"]
	for i := range n {
		ang[i] = math.Atan2(sn[i], cs[i]) / 2
		w[i] = wd[i] * WidthScale
	}

	return Maps{
		Rows:    rows,
		Cols:    cols,
		Quality: GaussianFilter(q, rows, cols, QualitySigma),
		Angle:   GaussianFilter(ang, rows, cols, AngleSigma),
		Width:   GaussianFilter(w, rows, cols, WidthSigma),
	}, nil
}

// GaussianFilter blurs a rows×cols map with a separable Gaussian kernel
// truncated at four sigma. Borders repeat the nearest pixel.
func GaussianFilter(src []float64, rows, cols int, sigma float64) []float64 {
	out := make([]float64, len(src))
	if sigma <= 0 {
		copy(out, src)
		return out
	}
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	tmp := make([]float64, len(src))
	cfg := parallel.Config{Workers: parallel.DefaultConfig().Workers, MinChunkSize: 16}

	parallel.For(rows, func(r int) {
		row := src[r*cols : (r+1)*cols]
		for c := range cols {
			var s float64
			for k, kv := range kernel {
				s += kv * row[clamp(c+k-radius, cols)]
			}
			tmp[r*cols+c] = s
		}
	}, cfg)
	parallel.For(rows, func(r int) {
		for c := range cols {
			var s float64
			for k, kv := range kernel {
				s += kv * tmp[clamp(r+k-radius, rows)*cols+c]
			}
			out[r*cols+c] = s
		}
	}, cfg)
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clamp(i, n int) int {
	return min(max(i, 0), n-1)
}
