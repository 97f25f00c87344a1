package dataset

import (
	"bytes"
	"image"
	"math"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r2"
)

// DepthImage is a single-channel float raster in metres, row-major.
type DepthImage struct {
	Rows, Cols int
	Data       []float64
}

// NewDepthImage allocates a zeroed rows×cols raster.
func NewDepthImage(rows, cols int) *DepthImage {
	return &DepthImage{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// LoadDepth reads a grayscale TIFF. 32-bit float samples are metres, as
// written by the Cornell preprocessing, 16-bit samples are millimetres and
// 8-bit samples are already normalised to [0, 1].
func LoadDepth(path string) (*DepthImage, error) {
	//nolint:gosec // G304: dataset paths come from configuration
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open depth image")
	}

	img, err := tiff.Decode(bytes.NewReader(buf))
	var unsupported tiff.UnsupportedError
	if errors.As(err, &unsupported) {
		d, ferr := decodeFloatTIFF(buf)
		if ferr != nil {
			return nil, errors.Wrapf(ferr, "decode %s", path)
		}
		return d, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	b := img.Bounds()
	d := NewDepthImage(b.Dy(), b.Dx())
	switch src := img.(type) {
	case *image.Gray16:
		for y := range d.Rows {
			for x := range d.Cols {
				d.Data[y*d.Cols+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 1000
			}
		}
	case *image.Gray:
		for y := range d.Rows {
			for x := range d.Cols {
				d.Data[y*d.Cols+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 255
			}
		}
	default:
		return nil, errors.Errorf("%s: unsupported depth image type %T", path, img)
	}
	return d, nil
}

// at samples with edge clamping.
func (d *DepthImage) at(row, col int) float64 {
	row = min(max(row, 0), d.Rows-1)
	col = min(max(col, 0), d.Cols-1)
	return d.Data[row*d.Cols+col]
}

// bilinear samples at a fractional (x=col, y=row) position.
func (d *DepthImage) bilinear(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	c0, r0 := int(x0), int(y0)
	top := d.at(r0, c0)*(1-fx) + d.at(r0, c0+1)*fx
	bottom := d.at(r0+1, c0)*(1-fx) + d.at(r0+1, c0+1)*fx
	return top*(1-fy) + bottom*fy
}

// Rotate turns the image counter-clockwise (on screen) by angle about
// center. Pixels sampled from outside the image repeat the nearest edge.
func (d *DepthImage) Rotate(angle float64, center r2.Vec) *DepthImage {
	if angle == 0 {
		return d.clone()
	}
	inv := r2.NewRotation(angle, center)
	out := NewDepthImage(d.Rows, d.Cols)
	for y := range d.Rows {
		for x := range d.Cols {
			src := inv.Rotate(r2.Vec{X: float64(x), Y: float64(y)})
			out.Data[y*d.Cols+x] = d.bilinear(src.X, src.Y)
		}
	}
	return out
}

// Crop returns rows [top, bottom) and cols [left, right), clipped to the image.
func (d *DepthImage) Crop(top, left, bottom, right int) *DepthImage {
	top, left = max(top, 0), max(left, 0)
	bottom, right = min(bottom, d.Rows), min(right, d.Cols)
	out := NewDepthImage(max(bottom-top, 0), max(right-left, 0))
	for y := range out.Rows {
		copy(out.Data[y*out.Cols:(y+1)*out.Cols], d.Data[(top+y)*d.Cols+left:(top+y)*d.Cols+right])
	}
	return out
}

// Resize scales the image to rows×cols with bilinear interpolation.
func (d *DepthImage) Resize(rows, cols int) *DepthImage {
	if rows == d.Rows && cols == d.Cols {
		return d.clone()
	}
	out := NewDepthImage(rows, cols)
	sy := float64(d.Rows) / float64(rows)
	sx := float64(d.Cols) / float64(cols)
	for y := range rows {
		for x := range cols {
			out.Data[y*cols+x] = d.bilinear((float64(x)+0.5)*sx-0.5, (float64(y)+0.5)*sy-0.5)
		}
	}
	return out
}

// Zoom crops the central factor-sized window and resizes it back to the
// original size. factor is in (0, 1].
func (d *DepthImage) Zoom(factor float64) *DepthImage {
	sr := int(float64(d.Rows)*(1-factor)) / 2
	sc := int(float64(d.Cols)*(1-factor)) / 2
	return d.Crop(sr, sc, d.Rows-sr, d.Cols-sc).Resize(d.Rows, d.Cols)
}

// Normalise subtracts the mean and clips to [-1, 1].
func (d *DepthImage) Normalise() *DepthImage {
	out := d.clone()
	if len(out.Data) == 0 {
		return out
	}
	var mean float64
	for _, v := range out.Data {
		mean += v
	}
	mean /= float64(len(out.Data))
	for i, v := range out.Data {
		out.Data[i] = math.Max(-1, math.Min(1, v-mean))
	}
	return out
}

func (d *DepthImage) clone() *DepthImage {
	out := NewDepthImage(d.Rows, d.Cols)
	copy(out.Data, d.Data)
	return out
}
