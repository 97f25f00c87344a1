// Package render draws grasp rectangles and prediction maps for visual
// inspection of a trained network.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Colours used for overlays.
var (
	GroundTruthColor = color.NRGBA{R: 0x2e, G: 0xcc, B: 0x40, A: 0xff}
	PredictionColor  = color.NRGBA{R: 0xff, G: 0x41, B: 0x36, A: 0xff}
	JawColor         = color.NRGBA{R: 0x00, G: 0x74, B: 0xd9, A: 0xff}
)

// Ramp is a colour gradient sampled on [0, 1].
type Ramp []colorful.Color

// DefaultRamp runs from dark blue through teal and yellow to red.
var DefaultRamp = Ramp{
	{R: 0.05, G: 0.03, B: 0.53},
	{R: 0.00, G: 0.60, B: 0.60},
	{R: 0.99, G: 0.91, B: 0.15},
	{R: 0.80, G: 0.05, B: 0.10},
}

// At blends the two stops around t in HCL space.
func (r Ramp) At(t float64) colorful.Color {
	switch {
	case len(r) == 0:
		return colorful.Color{}
	case len(r) == 1 || t <= 0 || math.IsNaN(t):
		return r[0]
	case t >= 1:
		return r[len(r)-1]
	}
	pos := t * float64(len(r)-1)
	i := int(pos)
	return r[i].BlendHcl(r[i+1], pos-float64(i)).Clamped()
}

// HeatMap colours a row-major map, mapping lo..hi onto the ramp.
func HeatMap(values []float64, rows, cols int, lo, hi float64, ramp Ramp) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	span := hi - lo
	for i, v := range values[:rows*cols] {
		t := 0.0
		if span > 0 {
			t = (v - lo) / span
		}
		r, g, b := ramp.At(t).RGB255()
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = r, g, b, 0xff
	}
	return img
}

// Gray renders a map as grey levels stretched between its own extremes.
func Gray(values []float64, rows, cols int) *image.NRGBA {
	data := values[:rows*cols]
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	if len(data) == 0 {
		return img
	}
	lo, hi := floats.Min(data), floats.Max(data)
	for i, v := range data {
		level := uint8(0)
		if hi > lo {
			level = uint8(math.Round(255 * (v - lo) / (hi - lo)))
		}
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = level, level, level, 0xff
	}
	return img
}

// Input renders a network input [C, H, W]. A single channel is shown as
// depth; three or four channels show the RGB planes, which always come
// last.
func Input(x *tensor.Tensor) (*image.NRGBA, error) {
	s := x.Shape()
	if len(s) == 4 && s[0] == 1 {
		s = s[1:]
	}
	if len(s) != 3 {
		return nil, errors.Errorf("expected [C, H, W] input, got %v", x.Shape())
	}
	c, rows, cols := s[0], s[1], s[2]
	data := x.Data()
	plane := rows * cols
	switch c {
	case 1:
		return Gray(data[:plane], rows, cols), nil
	case 3, 4:
		rgb := data[(c-3)*plane : c*plane]
		lo, hi := floats.Min(rgb), floats.Max(rgb)
		img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
		for i := 0; i < plane; i++ {
			for k := 0; k < 3; k++ {
				v := 0.0
				if hi > lo {
					v = (rgb[k*plane+i] - lo) / (hi - lo)
				}
				img.Pix[i*4+k] = uint8(math.Round(255 * v))
			}
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	default:
		return nil, errors.Errorf("cannot render %d input channels", c)
	}
}

// DrawRectangles outlines rects on a copy of img. The jaw edges (p1-p2 and
// p3-p0) use jaw, the opening edges use c.
func DrawRectangles(img image.Image, rects grasp.Rectangles, c, jaw color.Color) *image.NRGBA {
	dst := imaging.Clone(img)
	for _, r := range rects {
		for i := range r {
			col := c
			if i%2 == 1 {
				col = jaw
			}
			line(dst, r[i], r[(i+1)%4], col)
		}
	}
	return dst
}

// DrawGrasps outlines the rectangles of gs on a copy of img.
func DrawGrasps(img image.Image, gs []grasp.Grasp, c color.Color) *image.NRGBA {
	rects := make(grasp.Rectangles, len(gs))
	for i, g := range gs {
		rects[i] = g.Rectangle()
	}
	return DrawRectangles(img, rects, c, JawColor)
}

// line draws from a to b with Bresenham's algorithm, clipped to dst.
func line(dst *image.NRGBA, a, b r2.Vec, c color.Color) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	bounds := dst.Bounds()
	for {
		if (image.Point{X: x0, Y: y0}).In(bounds) {
			dst.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Panel places images side by side on a black background, top aligned.
func Panel(images ...image.Image) *image.NRGBA {
	w, h := 0, 0
	for _, img := range images {
		w += img.Bounds().Dx()
		h = max(h, img.Bounds().Dy())
	}
	dst := imaging.New(w, h, color.Black)
	x := 0
	for _, img := range images {
		dst = imaging.Paste(dst, img, image.Pt(x, 0))
		x += img.Bounds().Dx()
	}
	return dst
}

// Visualisation returns the standard four-panel view of one prediction:
// input with ground truth and detected grasps, then quality, angle and
// width heat maps.
func Visualisation(x *tensor.Tensor, m postprocess.Maps, detected []grasp.Grasp, gts grasp.Rectangles) (*image.NRGBA, error) {
	in, err := Input(x)
	if err != nil {
		return nil, err
	}
	if in.Bounds().Dx() != m.Cols || in.Bounds().Dy() != m.Rows {
		return nil, errors.Errorf("input is %v but maps are %dx%d", in.Bounds().Size(), m.Cols, m.Rows)
	}
	overlay := DrawRectangles(in, gts, GroundTruthColor, GroundTruthColor)
	overlay = DrawGrasps(overlay, detected, PredictionColor)
	return Panel(
		overlay,
		HeatMap(m.Quality, m.Rows, m.Cols, 0, 1, DefaultRamp),
		HeatMap(m.Angle, m.Rows, m.Cols, -math.Pi/2, math.Pi/2, DefaultRamp),
		HeatMap(m.Width, m.Rows, m.Cols, 0, postprocess.WidthScale, DefaultRamp),
	), nil
}

// Save writes img to path; the format follows the extension.
func Save(path string, img image.Image) error {
	return errors.Wrapf(imaging.Save(img, path), "save %s", path)
}
