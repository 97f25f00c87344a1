package grasp

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// IOU returns the intersection-over-union of two rectangles.
func IOU(a, b Rectangle) float64 {
	pa := ccw(a.Polygon())
	pb := ccw(b.Polygon())
	inter := polygonArea(clipConvex(pa, pb))
	union := polygonArea(pa) + polygonArea(pb) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// clipConvex clips subject against the convex polygon clip, both
// counter-clockwise (Sutherland–Hodgman).
func clipConvex(subject, clip []r2.Vec) []r2.Vec {
	out := subject
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		edge := r2.Sub(b, a)
		inside := func(p r2.Vec) bool { return r2.Cross(edge, r2.Sub(p, a)) >= 0 }

		in := out
		out = make([]r2.Vec, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case inside(cur):
				if !inside(prev) {
					out = append(out, intersect(prev, cur, a, b))
				}
				out = append(out, cur)
			case inside(prev):
				out = append(out, intersect(prev, cur, a, b))
			}
			prev = cur
		}
	}
	return out
}

// intersect returns the intersection of segment p→q with the line a→b.
func intersect(p, q, a, b r2.Vec) r2.Vec {
	d := r2.Sub(q, p)
	e := r2.Sub(b, a)
	den := r2.Cross(d, e)
	if den == 0 {
		return p
	}
	t := r2.Cross(r2.Sub(a, p), e) / den
	return r2.Add(p, r2.Scale(t, d))
}

func signedArea(poly []r2.Vec) float64 {
	var s float64
	for i := range poly {
		s += r2.Cross(poly[i], poly[(i+1)%len(poly)])
	}
	return s / 2
}

func polygonArea(poly []r2.Vec) float64 {
	if len(poly) < 3 {
		return 0
	}
	return math.Abs(signedArea(poly))
}

// ccw returns poly with positive signed area.
func ccw(poly []r2.Vec) []r2.Vec {
	if signedArea(poly) >= 0 {
		return poly
	}
	out := make([]r2.Vec, len(poly))
	for i, p := range poly {
		out[len(poly)-1-i] = p
	}
	return out
}

// contains reports whether p lies inside or on the convex polygon poly.
func contains(poly []r2.Vec, p r2.Vec) bool {
	poly = ccw(poly)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		if r2.Cross(r2.Sub(b, a), r2.Sub(p, a)) < -1e-9 {
			return false
		}
	}
	return true
}
