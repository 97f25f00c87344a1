package dataset

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Frame is a single image pair prepared for inference.
type Frame struct {
	Input          *tensor.Tensor // [1, C, size, size]
	Top, Left      int            // crop origin in the source image
	ScaleX, ScaleY float64        // input pixels per source pixel
}

// ToSource maps a grasp detected in the network input back to the source
// image.
func (f Frame) ToSource(g grasp.Grasp) grasp.Grasp {
	g.Center = r2.Vec{
		X: g.Center.X/f.ScaleX + float64(f.Left),
		Y: g.Center.Y/f.ScaleY + float64(f.Top),
	}
	s := (f.ScaleX + f.ScaleY) / 2
	g.Length /= s
	g.Width /= s
	return g
}

// PrepareInput loads a depth image and/or an RGB image, crops the central
// size×size window and applies the same normalisation as training samples.
// Either path may be empty but not both.
func PrepareInput(depthPath, rgbPath string, size int) (*Frame, error) {
	if depthPath == "" && rgbPath == "" {
		return nil, ErrNoInputs
	}
	if size <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", size)
	}

	var (
		depth      *DepthImage
		rgb        *image.NRGBA
		rows, cols int
	)
	if depthPath != "" {
		d, err := LoadDepth(depthPath)
		if err != nil {
			return nil, err
		}
		depth, rows, cols = d, d.Rows, d.Cols
	}
	if rgbPath != "" {
		img, err := LoadRGB(rgbPath)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if depth != nil && (b.Dx() != cols || b.Dy() != rows) {
			return nil, errors.Errorf("rgb is %dx%d but depth is %dx%d", b.Dx(), b.Dy(), cols, rows)
		}
		rgb, rows, cols = imaging.Clone(img), b.Dy(), b.Dx()
	}

	top, left := max(0, (rows-size)/2), max(0, (cols-size)/2)
	bottom, right := min(rows, top+size), min(cols, left+size)
	f := &Frame{
		Top:    top,
		Left:   left,
		ScaleX: float64(size) / float64(right-left),
		ScaleY: float64(size) / float64(bottom-top),
	}

	var channels [][]float64
	if depth != nil {
		channels = append(channels, depth.Crop(top, left, bottom, right).Normalise().Resize(size, size).Data)
	}
	if rgb != nil {
		img := imaging.Resize(CropRGB(rgb, top, left, bottom, right), size, size, imaging.Linear)
		planes := RGBPlanes(img)
		channels = append(channels, planes[:]...)
	}
	data := make([]float64, 0, len(channels)*size*size)
	for _, ch := range channels {
		data = append(data, ch...)
	}
	f.Input = tensor.New(tensor.Shape{1, len(channels), size, size}, data)
	return f, nil
}
