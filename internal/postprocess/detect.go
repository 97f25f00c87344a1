package postprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
)

// DetectOptions controls peak extraction from the quality map.
type DetectOptions struct {
	MinDistance   int     // Minimum Chebyshev distance between peaks, in pixels
	Threshold     float64 // Peaks must exceed this quality
	NumGrasps     int     // Maximum number of grasps returned
	ExcludeBorder bool    // Ignore peaks closer than MinDistance to the edge
}

// DefaultDetectOptions returns the options used for validation.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		MinDistance:   20,
		Threshold:     0.2,
		NumGrasps:     1,
		ExcludeBorder: true,
	}
}

// Peak is a local maximum of the quality map.
type Peak struct {
	Row, Col int
	Value    float64
}

// PeakLocalMax returns up to opts.NumGrasps local maxima of a rows×cols map,
// strongest first. A pixel is a candidate when it equals the maximum of the
// (2*MinDistance+1)² window around it and exceeds Threshold. Candidates
// closer than MinDistance to a stronger accepted peak are dropped.
func PeakLocalMax(img []float64, rows, cols int, opts DetectOptions) []Peak {
	if opts.NumGrasps <= 0 || len(img) == 0 {
		return nil
	}
	d := max(opts.MinDistance, 0)
	windowMax := maxFilter(img, rows, cols, d)

	border := 0
	if opts.ExcludeBorder {
		border = d
	}
	var candidates []Peak
	for r := border; r < rows-border; r++ {
		for c := border; c < cols-border; c++ {
			v := img[r*cols+c]
			if v > opts.Threshold && v == windowMax[r*cols+c] {
				candidates = append(candidates, Peak{Row: r, Col: c, Value: v})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})

	var peaks []Peak
	for _, p := range candidates {
		if len(peaks) == opts.NumGrasps {
			break
		}
		suppressed := false
		for _, q := range peaks {
			if abs(p.Row-q.Row) <= d && abs(p.Col-q.Col) <= d {
				suppressed = true
				break
			}
		}
		if !suppressed {
			peaks = append(peaks, p)
		}
	}
	return peaks
}

// DetectGrasps finds grasps at quality peaks. Each grasp takes its angle
// and length from the maps at the peak and a jaw width of half its length.
func DetectGrasps(m Maps, opts DetectOptions) []grasp.Grasp {
	peaks := PeakLocalMax(m.Quality, m.Rows, m.Cols, opts)
	grasps := make([]grasp.Grasp, 0, len(peaks))
	for _, p := range peaks {
		i := m.At(p.Row, p.Col)
		g := grasp.Grasp{
			Center: r2.Vec{X: float64(p.Col), Y: float64(p.Row)},
			Angle:  m.Angle[i],
		}
		if m.Width != nil {
			g.Length = m.Width[i]
			g.Width = g.Length / 2
		}
		grasps = append(grasps, g)
	}
	return grasps
}

// maxFilter computes the maximum over a (2d+1)² window, truncated at the
// borders, as two separable passes.
func maxFilter(src []float64, rows, cols, d int) []float64 {
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))
	for r := range rows {
		for c := range cols {
			m := math.Inf(-1)
			for k := max(c-d, 0); k <= min(c+d, cols-1); k++ {
				m = math.Max(m, src[r*cols+k])
			}
			tmp[r*cols+c] = m
		}
	}
	for c := range cols {
		for r := range rows {
			m := math.Inf(-1)
			for k := max(r-d, 0); k <= min(r+d, rows-1); k++ {
				m = math.Max(m, tmp[k*cols+c])
			}
			out[r*cols+c] = m
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
