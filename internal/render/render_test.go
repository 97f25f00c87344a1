package render

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/tensor"
)

func nrgba(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func TestRamp(t *testing.T) {
	r := DefaultRamp
	assert.Equal(t, r[0], r.At(0))
	assert.Equal(t, r[0], r.At(-3))
	assert.Equal(t, r[0], r.At(math.NaN()))
	assert.Equal(t, r[len(r)-1], r.At(1))
	assert.Equal(t, r[len(r)-1], r.At(7))

	mid := r.At(0.5)
	assert.True(t, mid.IsValid())
	assert.False(t, mid.AlmostEqualRgb(r[0]))
	assert.False(t, mid.AlmostEqualRgb(r[len(r)-1]))

	assert.Equal(t, Ramp{r[1]}.At(0.7), r[1])
}

func TestHeatMap(t *testing.T) {
	img := HeatMap([]float64{0, 0.5, 1, 2}, 2, 2, 0, 1, DefaultRamp)
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	lr, lg, lb := DefaultRamp[0].RGB255()
	assert.Equal(t, color.NRGBA{R: lr, G: lg, B: lb, A: 0xff}, img.NRGBAAt(0, 0))
	hr, hg, hb := DefaultRamp[len(DefaultRamp)-1].RGB255()
	assert.Equal(t, color.NRGBA{R: hr, G: hg, B: hb, A: 0xff}, img.NRGBAAt(0, 1))
	assert.Equal(t, img.NRGBAAt(0, 1), img.NRGBAAt(1, 1), "values above hi saturate")

	flat := HeatMap([]float64{3, 3}, 1, 2, 3, 3, DefaultRamp)
	assert.Equal(t, flat.NRGBAAt(0, 0), flat.NRGBAAt(1, 0))
}

func TestGray(t *testing.T) {
	img := Gray([]float64{-1, 0, 1, 3}, 2, 2)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(64), img.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), img.NRGBAAt(1, 1).R)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(1, 1).A)

	flat := Gray([]float64{2, 2}, 1, 2)
	assert.Equal(t, uint8(0), flat.NRGBAAt(1, 0).R)
}

func TestInput(t *testing.T) {
	depth := tensor.New(tensor.Shape{1, 2, 2}, []float64{0, 1, 2, 3})
	img, err := Input(depth)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(1, 1).G)

	batched := tensor.New(tensor.Shape{1, 1, 2, 2}, []float64{0, 1, 2, 3})
	img, err = Input(batched)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	// Depth plane first, then a pure red RGB image.
	rgbd := tensor.Zeros(tensor.Shape{4, 1, 1})
	rgbd.Data()[0] = 0.3
	rgbd.Data()[1] = 1
	img, err = Input(rgbd)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0))

	_, err = Input(tensor.Zeros(tensor.Shape{2, 2, 2}))
	require.Error(t, err)
	_, err = Input(tensor.Zeros(tensor.Shape{4, 4}))
	require.Error(t, err)
}

func TestDrawRectangles(t *testing.T) {
	bg := imaging.New(20, 20, color.Black)
	g := grasp.Grasp{Center: r2.Vec{X: 10, Y: 10}, Length: 10, Width: 4}
	img := DrawGrasps(bg, []grasp.Grasp{g}, PredictionColor)

	assert.Equal(t, PredictionColor, img.NRGBAAt(10, 8), "opening edge")
	assert.Equal(t, PredictionColor, img.NRGBAAt(10, 12), "opening edge")
	assert.Equal(t, JawColor, img.NRGBAAt(15, 10), "jaw edge")
	assert.Equal(t, JawColor, img.NRGBAAt(5, 10), "jaw edge")
	assert.Equal(t, nrgba(color.Black), img.NRGBAAt(10, 10), "interior untouched")
	assert.Equal(t, nrgba(color.Black), bg.NRGBAAt(10, 8), "source untouched")
}

func TestDrawDiagonalAndClipped(t *testing.T) {
	bg := imaging.New(10, 10, color.Black)
	rect := grasp.Rectangle{{X: 0, Y: 0}, {X: 9, Y: 9}, {X: 30, Y: 9}, {X: -5, Y: -5}}
	img := DrawRectangles(bg, grasp.Rectangles{rect}, GroundTruthColor, GroundTruthColor)
	for i := 0; i < 10; i++ {
		assert.Equal(t, GroundTruthColor, img.NRGBAAt(i, i))
	}
}

func TestPanel(t *testing.T) {
	a := imaging.New(3, 2, color.White)
	b := imaging.New(4, 5, color.NRGBA{R: 9, A: 255})
	p := Panel(a, b)
	assert.Equal(t, image.Rect(0, 0, 7, 5), p.Bounds())
	assert.Equal(t, nrgba(color.White), p.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 9, A: 255}, p.NRGBAAt(3, 0))
	assert.Equal(t, nrgba(color.Black), p.NRGBAAt(0, 4), "padding below the shorter image")
}

func testMaps(n int) postprocess.Maps {
	m := postprocess.Maps{
		Rows: n, Cols: n,
		Quality: make([]float64, n*n),
		Angle:   make([]float64, n*n),
		Width:   make([]float64, n*n),
	}
	m.Quality[m.At(n/2, n/2)] = 1
	return m
}

func TestVisualisationAndSave(t *testing.T) {
	x := tensor.Randn(tensor.Shape{1, 16, 16}, rand.New(rand.NewSource(1)))
	m := testMaps(16)
	detected := postprocess.DetectGrasps(m, postprocess.DetectOptions{MinDistance: 2, Threshold: 0.1, NumGrasps: 1})
	gts := grasp.Rectangles{grasp.Grasp{Center: r2.Vec{X: 8, Y: 8}, Length: 6, Width: 3}.Rectangle()}

	img, err := Visualisation(x, m, detected, gts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 16), img.Bounds())

	path := filepath.Join(t.TempDir(), "vis.png")
	require.NoError(t, Save(path, img))
	back, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), back.Bounds())

	_, err = Visualisation(x, testMaps(8), nil, nil)
	require.Error(t, err)
}

func TestSaveUnknownExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "vis.unknown"), imaging.New(1, 1, color.Black))
	require.Error(t, err)
}
