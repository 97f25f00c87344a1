package grasp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rectangles is the set of ground-truth grasps for one image.
type Rectangles []Rectangle

// ParseCornell reads a Cornell cpos annotation: four "x y" lines per
// rectangle. Rectangles containing NaN coordinates are skipped, as the
// dataset marks unusable grasps that way.
func ParseCornell(r io.Reader) (Rectangles, error) {
	var (
		rects   Rectangles
		pending []r2.Vec
		skip    bool
		line    int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 values, got %d", line, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if math.IsNaN(x) || math.IsNaN(y) {
			skip = true
		}
		pending = append(pending, r2.Vec{X: math.Round(x), Y: math.Round(y)})
		if len(pending) == 4 {
			if !skip {
				rects = append(rects, Rectangle{pending[0], pending[1], pending[2], pending[3]})
			}
			pending = pending[:0]
			skip = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	if len(pending) != 0 {
		return nil, fmt.Errorf("truncated rectangle: %d trailing points", len(pending))
	}
	return rects, nil
}

// LoadCornell parses the annotation file at path.
func LoadCornell(path string) (Rectangles, error) {
	//nolint:gosec // G304: dataset paths come from configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer func() { _ = f.Close() }()

	rects, err := ParseCornell(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rects, nil
}

// Center returns the mean of all corners, or the zero vector for an empty set.
func (rs Rectangles) Center() r2.Vec {
	if len(rs) == 0 {
		return r2.Vec{}
	}
	var sum r2.Vec
	for _, r := range rs {
		for _, p := range r {
			sum = r2.Add(sum, p)
		}
	}
	return r2.Scale(1/float64(4*len(rs)), sum)
}

func (rs Rectangles) apply(f func(Rectangle) Rectangle) Rectangles {
	out := make(Rectangles, len(rs))
	for i, r := range rs {
		out[i] = f(r)
	}
	return out
}

// Rotate rotates every rectangle by angle about c.
func (rs Rectangles) Rotate(angle float64, c r2.Vec) Rectangles {
	return rs.apply(func(r Rectangle) Rectangle { return r.Rotate(angle, c) })
}

// Zoom zooms every rectangle by factor about c.
func (rs Rectangles) Zoom(factor float64, c r2.Vec) Rectangles {
	return rs.apply(func(r Rectangle) Rectangle { return r.Zoom(factor, c) })
}

// Offset translates every rectangle by d.
func (rs Rectangles) Offset(d r2.Vec) Rectangles {
	return rs.apply(func(r Rectangle) Rectangle { return r.Offset(d) })
}

// Scale scales every rectangle by s.
func (rs Rectangles) Scale(s Scale) Rectangles {
	return rs.apply(func(r Rectangle) Rectangle { return r.Scale(s) })
}

// Raster holds per-pixel training targets in row-major order.
type Raster struct {
	Rows, Cols int
	Pos        []float64 // 1 inside a grasp, 0 elsewhere
	Angle      []float64 // grasp angle in radians
	Width      []float64 // grasp length in pixels
}

// Draw rasterises the set into a rows×cols grid. Each grasp marks the
// centre third of its length so the position target peaks at grasp
// centres. Later rectangles overwrite earlier ones.
func (rs Rectangles) Draw(rows, cols int) Raster {
	out := Raster{
		Rows:  rows,
		Cols:  cols,
		Pos:   make([]float64, rows*cols),
		Angle: make([]float64, rows*cols),
		Width: make([]float64, rows*cols),
	}
	for _, r := range rs {
		g := r.Grasp()
		compact := Grasp{Center: g.Center, Angle: g.Angle, Length: g.Length / 3, Width: g.Width}.Rectangle()
		fillPolygon(compact.Polygon(), rows, cols, func(i int) {
			out.Pos[i] = 1
			out.Angle[i] = g.Angle
			out.Width[i] = g.Length
		})
	}
	return out
}

// fillPolygon calls set with the flat index of every pixel whose centre
// lies in the convex polygon.
func fillPolygon(poly []r2.Vec, rows, cols int, set func(int)) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	r0 := max(0, int(math.Ceil(minY)))
	r1 := min(rows-1, int(math.Floor(maxY)))
	c0 := max(0, int(math.Ceil(minX)))
	c1 := min(cols-1, int(math.Floor(maxX)))
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if contains(poly, r2.Vec{X: float64(col), Y: float64(row)}) {
				set(row*cols + col)
			}
		}
	}
}
