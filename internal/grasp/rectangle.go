// Package grasp implements oriented grasp rectangles for the Cornell
// grasping dataset: corner/parameter conversion, set transforms used by
// augmentation, exact polygon IOU and rasterisation into training targets.
//
// Points are r2.Vec in image coordinates, X is the column and Y the row
// (growing downwards). Angles are in radians, measured counter-clockwise
// as seen on screen, and normalised to [-π/2, π/2).
package grasp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rectangle is an oriented grasp rectangle given by its four corners.
//
// Edge p0→p1 is the length edge (gripper opening, along the grasp angle)
// and edge p1→p2 is the jaw width edge.
type Rectangle [4]r2.Vec

// Center returns the mean of the two diagonal midpoints.
func (r Rectangle) Center() r2.Vec {
	m02 := r2.Scale(0.5, r2.Add(r[0], r[2]))
	m13 := r2.Scale(0.5, r2.Add(r[1], r[3]))
	return r2.Scale(0.5, r2.Add(m02, m13))
}

// Angle returns the orientation of the length edge.
func (r Rectangle) Angle() float64 {
	d := r2.Sub(r[1], r[0])
	return NormalizeAngle(math.Atan2(-d.Y, d.X))
}

// Length returns |p1-p0|, the gripper opening.
func (r Rectangle) Length() float64 {
	return r2.Norm(r2.Sub(r[1], r[0]))
}

// Width returns |p2-p1|, the jaw size.
func (r Rectangle) Width() float64 {
	return r2.Norm(r2.Sub(r[2], r[1]))
}

// Area returns the unsigned polygon area.
func (r Rectangle) Area() float64 {
	return polygonArea(r.Polygon())
}

// Polygon returns the corners as a slice.
func (r Rectangle) Polygon() []r2.Vec {
	return []r2.Vec{r[0], r[1], r[2], r[3]}
}

// Grasp converts the rectangle to its centre/angle/size form.
func (r Rectangle) Grasp() Grasp {
	return Grasp{
		Center: r.Center(),
		Angle:  r.Angle(),
		Length: r.Length(),
		Width:  r.Width(),
	}
}

// Rotate turns the rectangle counter-clockwise (on screen) by angle about c.
func (r Rectangle) Rotate(angle float64, c r2.Vec) Rectangle {
	rot := r2.NewRotation(-angle, c)
	var out Rectangle
	for i, p := range r {
		out[i] = rot.Rotate(p)
	}
	return out
}

// Zoom magnifies the rectangle by factor about c. A factor below one
// corresponds to cropping a smaller window and scaling it back up, so
// points move away from c by 1/factor.
func (r Rectangle) Zoom(factor float64, c r2.Vec) Rectangle {
	var out Rectangle
	for i, p := range r {
		out[i] = r2.Add(c, r2.Scale(1/factor, r2.Sub(p, c)))
	}
	return out
}

// Offset translates every corner by d.
func (r Rectangle) Offset(d r2.Vec) Rectangle {
	var out Rectangle
	for i, p := range r {
		out[i] = r2.Add(p, d)
	}
	return out
}

// Scale multiplies every coordinate by the per-axis factors in s.
func (r Rectangle) Scale(s Scale) Rectangle {
	var out Rectangle
	for i, p := range r {
		out[i] = r2.Vec{X: p.X * s.X, Y: p.Y * s.Y}
	}
	return out
}

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle[(%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f)]",
		r[0].X, r[0].Y, r[1].X, r[1].Y, r[2].X, r[2].Y, r[3].X, r[3].Y)
}

// Grasp is a grasp in centre form.
type Grasp struct {
	Center r2.Vec
	Angle  float64
	Length float64 // opening, along Angle
	Width  float64 // jaw size
}

// Rectangle builds the corners of g. Corner order matches Rectangle's
// edge invariant.
func (g Grasp) Rectangle() Rectangle {
	u := r2.Vec{X: math.Cos(g.Angle), Y: -math.Sin(g.Angle)}
	v := r2.Vec{X: math.Sin(g.Angle), Y: math.Cos(g.Angle)}
	hl := r2.Scale(g.Length/2, u)
	hw := r2.Scale(g.Width/2, v)
	return Rectangle{
		r2.Sub(r2.Sub(g.Center, hl), hw),
		r2.Sub(r2.Add(g.Center, hl), hw),
		r2.Add(r2.Add(g.Center, hl), hw),
		r2.Add(r2.Sub(g.Center, hl), hw),
	}
}

// NormalizeAngle maps a to [-π/2, π/2). Grasps are symmetric under a half
// turn so this loses no information.
func NormalizeAngle(a float64) float64 {
	m := math.Mod(a+math.Pi/2, math.Pi)
	if m < 0 {
		m += math.Pi
	}
	return m - math.Pi/2
}

// AngleDiff returns the smallest difference between two grasp angles,
// taken modulo π, in [0, π/2].
func AngleDiff(a, b float64) float64 {
	return math.Abs(NormalizeAngle(a - b))
}
