// Package dataset loads the Cornell grasping dataset into network inputs
// and per-pixel grasp targets, with rotation and zoom augmentation.
//
// A dataset directory holds, in itself or in one level of subdirectories,
// triples of files sharing a prefix:
//
//	pcd0100cpos.txt  positive grasp rectangles
//	pcd0100d.tiff    depth image
//	pcd0100r.png     RGB image
package dataset

import (
	"image"
	_ "image/png" // RGB frames are PNG
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/tensor"
)

// MaxGraspWidth is the opening in pixels that maps to a width target of 1.
const MaxGraspWidth = 150.0

// ErrNoInputs is returned when neither depth nor RGB input is enabled.
var ErrNoInputs = errors.New("at least one of depth or rgb must be enabled")

// Options configure a view of the Cornell dataset.
type Options struct {
	Path         string
	Start, End   float64 // Fraction range of the sorted file list, [Start, End)
	DSRotate     float64 // Rotate the file list by this fraction before slicing
	OutputSize   int     // Side of the square network input
	IncludeDepth bool
	IncludeRGB   bool
	RandomRotate bool
	RandomZoom   bool
}

// Cornell is an indexed view of the dataset.
type Cornell struct {
	opts       Options
	graspFiles []string
	depthFiles []string
	rgbFiles   []string
	rows, cols int
}

// Sample is one augmented example.
type Sample struct {
	Image    *tensor.Tensor    // [C, H, W], depth channel first
	Targets  [4]*tensor.Tensor // pos, cos 2θ, sin 2θ, width; each [1, H, W]
	Index    int
	Rotation float64
	Zoom     float64
}

// NewCornell discovers annotation files under opts.Path and selects the
// configured slice.
func NewCornell(opts Options) (*Cornell, error) {
	if !opts.IncludeDepth && !opts.IncludeRGB {
		return nil, ErrNoInputs
	}
	if opts.OutputSize <= 0 {
		return nil, errors.Errorf("output size must be positive, got %d", opts.OutputSize)
	}
	if opts.Start < 0 || opts.End > 1 || opts.Start >= opts.End {
		return nil, errors.Errorf("invalid split range [%g, %g)", opts.Start, opts.End)
	}

	var files []string
	for _, pattern := range []string{
		filepath.Join(opts.Path, "pcd*cpos.txt"),
		filepath.Join(opts.Path, "*", "pcd*cpos.txt"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrap(err, "search dataset")
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, errors.Errorf("no dataset files found in %s, check the path", opts.Path)
	}

	l := len(files)
	if opts.DSRotate != 0 {
		k := int(float64(l) * opts.DSRotate)
		files = append(append([]string{}, files[k:]...), files[:k]...)
	}
	files = files[int(float64(l)*opts.Start):int(float64(l)*opts.End)]
	if len(files) == 0 {
		return nil, errors.Errorf("split [%g, %g) of %d files is empty", opts.Start, opts.End, l)
	}

	c := &Cornell{opts: opts, graspFiles: files}
	for _, f := range files {
		depth := strings.TrimSuffix(f, "cpos.txt") + "d.tiff"
		c.depthFiles = append(c.depthFiles, depth)
		c.rgbFiles = append(c.rgbFiles, strings.TrimSuffix(depth, "d.tiff")+"r.png")
	}

	if err := c.probeSize(); err != nil {
		return nil, err
	}
	return c, nil
}

// probeSize reads the frame size from the first sample.
func (c *Cornell) probeSize() error {
	path := c.rgbFiles[0]
	decode := func(f *os.File) (image.Config, error) {
		cfg, _, err := image.DecodeConfig(f)
		return cfg, err
	}
	if c.opts.IncludeDepth {
		path = c.depthFiles[0]
		decode = func(f *os.File) (image.Config, error) { return tiff.DecodeConfig(f) }
	}

	//nolint:gosec // G304: dataset paths come from configuration
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "probe frame size")
	}
	defer func() { _ = f.Close() }()

	cfg, err := decode(f)
	if err != nil {
		return errors.Wrapf(err, "probe frame size of %s", path)
	}
	c.rows, c.cols = cfg.Height, cfg.Width
	return nil
}

// Len returns the number of samples.
func (c *Cornell) Len() int { return len(c.graspFiles) }

// OutputSize returns the side of the square samples.
func (c *Cornell) OutputSize() int { return c.opts.OutputSize }

// InputChannels returns the number of image channels per sample.
func (c *Cornell) InputChannels() int {
	n := 0
	if c.opts.IncludeDepth {
		n++
	}
	if c.opts.IncludeRGB {
		n += 3
	}
	return n
}

// Files returns the annotation, depth and RGB paths of sample idx.
func (c *Cornell) Files(idx int) (graspFile, depthFile, rgbFile string) {
	return c.graspFiles[idx], c.depthFiles[idx], c.rgbFiles[idx]
}

// Augment draws a rotation and zoom for one sample. Rotations are quarter
// turns, zoom is uniform in [0.5, 1).
func (c *Cornell) Augment(rng *rand.Rand) (rot, zoom float64) {
	rot, zoom = 0, 1
	if c.opts.RandomRotate {
		rot = float64(rng.Intn(4)) * math.Pi / 2
	}
	if c.opts.RandomZoom {
		zoom = 0.5 + rng.Float64()*0.5
	}
	return rot, zoom
}

// window is the crop applied to a frame before zooming.
type window struct {
	center        r2.Vec
	top, left     int
	bottom, right int
}

func (c *Cornell) window(gts grasp.Rectangles) window {
	out := c.opts.OutputSize
	center := gts.Center()
	cx, cy := int(math.Round(center.X)), int(math.Round(center.Y))
	left := max(0, min(cx-out/2, c.cols-out))
	top := max(0, min(cy-out/2, c.rows-out))
	return window{
		center: r2.Vec{X: float64(cx), Y: float64(cy)},
		top:    top,
		left:   left,
		bottom: min(c.rows, top+out),
		right:  min(c.cols, left+out),
	}
}

// transform maps frame-space rectangles into sample space.
func (c *Cornell) transform(gts grasp.Rectangles, w window, rot, zoom float64) grasp.Rectangles {
	out := float64(c.opts.OutputSize)
	gts = gts.Rotate(rot, w.center).Offset(r2.Vec{X: float64(-w.left), Y: float64(-w.top)})
	if cw, ch := w.right-w.left, w.bottom-w.top; cw != c.opts.OutputSize || ch != c.opts.OutputSize {
		gts = gts.Scale(grasp.Scale{X: out / float64(cw), Y: out / float64(ch)})
	}
	return gts.Zoom(zoom, r2.Vec{X: out / 2, Y: out / 2})
}

// GroundTruth returns the grasp rectangles of sample idx in the coordinate
// frame of a sample augmented with rot and zoom.
func (c *Cornell) GroundTruth(idx int, rot, zoom float64) (grasp.Rectangles, error) {
	if idx < 0 || idx >= c.Len() {
		return nil, errors.Errorf("sample index %d out of range [0, %d)", idx, c.Len())
	}
	gts, err := grasp.LoadCornell(c.graspFiles[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "sample %d", idx)
	}
	return c.transform(gts, c.window(gts), rot, zoom), nil
}

// Sample loads and augments sample idx.
func (c *Cornell) Sample(idx int, rot, zoom float64) (*Sample, error) {
	if idx < 0 || idx >= c.Len() {
		return nil, errors.Errorf("sample index %d out of range [0, %d)", idx, c.Len())
	}
	gts, err := grasp.LoadCornell(c.graspFiles[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "sample %d", idx)
	}
	w := c.window(gts)
	out := c.opts.OutputSize

	var channels [][]float64
	if c.opts.IncludeDepth {
		d, err := LoadDepth(c.depthFiles[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", idx)
		}
		d = d.Rotate(rot, w.center).Crop(w.top, w.left, w.bottom, w.right).Normalise().Zoom(zoom).Resize(out, out)
		channels = append(channels, d.Data)
	}
	if c.opts.IncludeRGB {
		img, err := LoadRGB(c.rgbFiles[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", idx)
		}
		img = RotateRGB(img, rot, w.center)
		img = ZoomRGB(CropRGB(img, w.top, w.left, w.bottom, w.right), zoom)
		img = imaging.Resize(img, out, out, imaging.Linear)
		planes := RGBPlanes(img)
		channels = append(channels, planes[:]...)
	}

	data := make([]float64, 0, len(channels)*out*out)
	for _, ch := range channels {
		data = append(data, ch...)
	}

	targets := Targets(c.transform(gts, w, rot, zoom), out)
	return &Sample{
		Image:    tensor.New(tensor.Shape{len(channels), out, out}, data),
		Targets:  targets,
		Index:    idx,
		Rotation: rot,
		Zoom:     zoom,
	}, nil
}

// Targets rasterises gts into the four size×size training targets.
func Targets(gts grasp.Rectangles, size int) [4]*tensor.Tensor {
	r := gts.Draw(size, size)
	n := size * size
	cos := make([]float64, n)
	sin := make([]float64, n)
	width := make([]float64, n)
	for i := range n {
		cos[i] = math.Cos(2 * r.Angle[i])
		sin[i] = math.Sin(2 * r.Angle[i])
		width[i] = math.Max(0, math.Min(MaxGraspWidth, r.Width[i])) / MaxGraspWidth
	}
	shape := tensor.Shape{1, size, size}
	return [4]*tensor.Tensor{
		tensor.New(shape, r.Pos),
		tensor.New(shape, cos),
		tensor.New(shape, sin),
		tensor.New(shape, width),
	}
}
