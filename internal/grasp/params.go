package grasp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MaxTangent is tan(85°). Regression targets use tangents clamped to
// ±MaxTangent so near-vertical edges stay finite.
const MaxTangent = 11.430052302761343

// Params is the reduced (x, y, angle, height, width) grasp encoding.
// Height is the length edge and Width the jaw edge of the rectangle.
type Params struct {
	X, Y   float64
	Angle  float64
	Height float64
	Width  float64
}

// Tan returns tan(Angle) clamped to ±MaxTangent.
func (p Params) Tan() float64 {
	t := math.Tan(p.Angle)
	return math.Max(-MaxTangent, math.Min(MaxTangent, t))
}

// ParamsFromTan builds Params from a (possibly clamped) tangent.
func ParamsFromTan(x, y, tan, height, width float64) Params {
	return Params{X: x, Y: y, Angle: math.Atan(tan), Height: height, Width: width}
}

// Scale holds per-axis coordinate factors applied to raw annotations.
type Scale struct {
	X, Y float64
}

// Unscaled leaves coordinates untouched.
var Unscaled = Scale{X: 1, Y: 1}

// BoxToParams converts corners to parameters.
func BoxToParams(r Rectangle) Params {
	c := r.Center()
	return Params{
		X:      c.X,
		Y:      c.Y,
		Angle:  r.Angle(),
		Height: r.Length(),
		Width:  r.Width(),
	}
}

// ParamsToBox reconstructs the corners of p.
func ParamsToBox(p Params) Rectangle {
	return Grasp{
		Center: r2.Vec{X: p.X, Y: p.Y},
		Angle:  p.Angle,
		Length: p.Height,
		Width:  p.Width,
	}.Rectangle()
}

// BoxesToParams converts a flat list of boxes, eight values per box
// (x0 y0 x1 y1 x2 y2 x3 y3), scaling coordinates by s first.
func BoxesToParams(values []float64, s Scale) ([]Params, error) {
	if len(values)%8 != 0 {
		return nil, fmt.Errorf("box values: length %d is not a multiple of 8", len(values))
	}
	out := make([]Params, 0, len(values)/8)
	for i := 0; i < len(values); i += 8 {
		var r Rectangle
		for j := range r {
			r[j] = r2.Vec{X: values[i+2*j], Y: values[i+2*j+1]}
		}
		out = append(out, BoxToParams(r.Scale(s)))
	}
	return out, nil
}

// ParamsToBoxes is the inverse of BoxesToParams with Unscaled.
func ParamsToBoxes(ps []Params) []float64 {
	out := make([]float64, 0, 8*len(ps))
	for _, p := range ps {
		for _, v := range ParamsToBox(p) {
			out = append(out, v.X, v.Y)
		}
	}
	return out
}
