package dataset

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/tensor"
)

const (
	fixtureRows = 48
	fixtureCols = 64
	outputSize  = 32
)

func fixture(t *testing.T, n int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "01")
	require.NoError(t, WriteSynthetic(dir, n, fixtureRows, fixtureCols, 7))
	return filepath.Dir(dir)
}

func options(path string) Options {
	return Options{
		Path:         path,
		Start:        0,
		End:          1,
		OutputSize:   outputSize,
		IncludeDepth: true,
		IncludeRGB:   true,
	}
}

func TestNewCornellValidation(t *testing.T) {
	dir := fixture(t, 2)

	opts := options(dir)
	opts.IncludeDepth, opts.IncludeRGB = false, false
	_, err := NewCornell(opts)
	assert.ErrorIs(t, err, ErrNoInputs)

	opts = options(dir)
	opts.Start, opts.End = 0.8, 0.2
	_, err = NewCornell(opts)
	assert.Error(t, err)

	opts = options(dir)
	opts.OutputSize = 0
	_, err = NewCornell(opts)
	assert.Error(t, err)

	_, err = NewCornell(options(t.TempDir()))
	assert.ErrorContains(t, err, "no dataset files")
}

func TestNewCornellSplit(t *testing.T) {
	dir := fixture(t, 4)

	all, err := NewCornell(options(dir))
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())
	assert.Equal(t, 4, all.InputChannels())
	assert.Equal(t, outputSize, all.OutputSize())

	g, d, r := all.Files(0)
	assert.Equal(t, "pcd0100cpos.txt", filepath.Base(g))
	assert.Equal(t, "pcd0100d.tiff", filepath.Base(d))
	assert.Equal(t, "pcd0100r.png", filepath.Base(r))

	opts := options(dir)
	opts.End = 0.5
	train, err := NewCornell(opts)
	require.NoError(t, err)
	assert.Equal(t, 2, train.Len())

	opts.DSRotate = 0.5
	rotated, err := NewCornell(opts)
	require.NoError(t, err)
	g, _, _ = rotated.Files(0)
	assert.Equal(t, "pcd0102cpos.txt", filepath.Base(g))

	opts = options(dir)
	opts.IncludeRGB = false
	depthOnly, err := NewCornell(opts)
	require.NoError(t, err)
	assert.Equal(t, 1, depthOnly.InputChannels())
}

func TestSampleShapesAndTargets(t *testing.T) {
	ds, err := NewCornell(options(fixture(t, 2)))
	require.NoError(t, err)

	s, err := ds.Sample(1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, outputSize, outputSize}, s.Image.Shape())
	assert.Equal(t, 1, s.Index)
	for _, target := range s.Targets {
		assert.Equal(t, tensor.Shape{1, outputSize, outputSize}, target.Shape())
	}

	gts, err := ds.GroundTruth(1, 0, 1)
	require.NoError(t, err)
	require.Len(t, gts, 1)
	c := gts.Center()
	at := int(math.Round(c.Y))*outputSize + int(math.Round(c.X))
	assert.Equal(t, 1.0, s.Targets[0].Data()[at])

	angle := gts[0].Angle()
	assert.InDelta(t, math.Cos(2*angle), s.Targets[1].Data()[at], 1e-9)
	assert.InDelta(t, math.Sin(2*angle), s.Targets[2].Data()[at], 1e-9)
	assert.InDelta(t, gts[0].Length()/MaxGraspWidth, s.Targets[3].Data()[at], 1e-9)

	for _, v := range s.Targets[3].Data() {
		assert.True(t, v >= 0 && v <= 1)
	}

	_, err = ds.Sample(5, 0, 1)
	assert.Error(t, err)
	_, err = ds.GroundTruth(-1, 0, 1)
	assert.Error(t, err)
}

func TestGroundTruthFollowsAugmentation(t *testing.T) {
	ds, err := NewCornell(options(fixture(t, 1)))
	require.NoError(t, err)

	base, err := ds.GroundTruth(0, 0, 1)
	require.NoError(t, err)
	turned, err := ds.GroundTruth(0, math.Pi/2, 1)
	require.NoError(t, err)
	zoomed, err := ds.GroundTruth(0, 0, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, 0, grasp.AngleDiff(base[0].Angle()+math.Pi/2, turned[0].Angle()), 1e-9)
	assert.InDelta(t, base[0].Length(), turned[0].Length(), 1e-9)
	assert.InDelta(t, 2*base[0].Length(), zoomed[0].Length(), 1e-9)

	mid := r2.Vec{X: outputSize / 2, Y: outputSize / 2}
	assert.InDelta(t, 2*r2.Norm(r2.Sub(base.Center(), mid)), r2.Norm(r2.Sub(zoomed.Center(), mid)), 1e-9)
}

func TestAugment(t *testing.T) {
	ds, err := NewCornell(options(fixture(t, 1)))
	require.NoError(t, err)

	rot, zoom := ds.Augment(rand.New(rand.NewSource(1)))
	assert.Equal(t, 0.0, rot)
	assert.Equal(t, 1.0, zoom)

	ds.opts.RandomRotate, ds.opts.RandomZoom = true, true
	rng := rand.New(rand.NewSource(1))
	for range 50 {
		rot, zoom := ds.Augment(rng)
		quarter := rot / (math.Pi / 2)
		assert.InDelta(t, math.Round(quarter), quarter, 1e-12)
		assert.True(t, rot >= 0 && rot < 2*math.Pi)
		assert.True(t, zoom >= 0.5 && zoom < 1)
	}
}

func TestLoader(t *testing.T) {
	dir := fixture(t, 4)
	opts := options(dir)
	opts.RandomRotate, opts.RandomZoom = true, true
	ds, err := NewCornell(opts)
	require.NoError(t, err)

	cfg := LoaderConfig{BatchSize: 3, Shuffle: true, Seed: 42, Workers: 2}
	l := NewLoader(ds, cfg)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 2, l.NumBatches())

	plans := l.Epoch()
	require.Len(t, plans, 2)
	assert.Len(t, plans[0].Indices, 3)
	assert.Len(t, plans[1].Indices, 1)
	seen := map[int]bool{}
	for _, p := range plans {
		for _, i := range p.Indices {
			seen[i] = true
		}
	}
	assert.Len(t, seen, 4)

	again := NewLoader(ds, cfg).Epoch()
	assert.Equal(t, plans, again)

	b, err := l.Load(plans[0])
	require.NoError(t, err)
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, tensor.Shape{3, 4, outputSize, outputSize}, b.X.Shape())
	for _, y := range b.Y {
		assert.Equal(t, tensor.Shape{3, 1, outputSize, outputSize}, y.Shape())
	}

	g, _, _ := ds.Files(plans[1].Indices[0])
	require.NoError(t, os.Remove(g))
	_, err = l.Load(plans[1])
	assert.Error(t, err)
}

func TestDepthImageOps(t *testing.T) {
	d := &DepthImage{Rows: 3, Cols: 3, Data: []float64{
		0, 0, 0,
		0, 5, 9,
		0, 0, 0,
	}}

	r := d.Rotate(math.Pi/2, r2.Vec{X: 1, Y: 1})
	assert.InDelta(t, 9, r.Data[1], 1e-9)
	assert.InDelta(t, 5, r.Data[4], 1e-9)

	c := d.Crop(1, 1, 3, 5)
	assert.Equal(t, 2, c.Rows)
	assert.Equal(t, 2, c.Cols)
	assert.Equal(t, []float64{5, 9, 0, 0}, c.Data)

	assert.Equal(t, d.Data, d.Resize(3, 3).Data)
	big := d.Resize(6, 6)
	assert.Equal(t, 36, len(big.Data))

	n := (&DepthImage{Rows: 1, Cols: 4, Data: []float64{0, 0, 0, 8}}).Normalise()
	assert.Equal(t, []float64{-1, -1, -1, 1}, n.Data)

	flat := &DepthImage{Rows: 10, Cols: 10, Data: make([]float64, 100)}
	for i := range flat.Data {
		flat.Data[i] = 0.7
	}
	for _, v := range flat.Zoom(0.5).Data {
		assert.InDelta(t, 0.7, v, 1e-12)
	}
}

func TestLoadDepthFormats(t *testing.T) {
	dir := t.TempDir()

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 255})
	path := filepath.Join(dir, "gray.tiff")
	require.NoError(t, writeTIFF(path, gray))
	d, err := LoadDepth(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, d.Data)

	g16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: 650})
	path = filepath.Join(dir, "g16.tiff")
	require.NoError(t, writeTIFF(path, g16))
	d, err = LoadDepth(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, d.Data[0], 1e-12)

	f, err := os.Create(filepath.Join(dir, "rgba.tiff"))
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, image.NewRGBA(image.Rect(0, 0, 1, 1)), nil))
	require.NoError(t, f.Close())
	_, err = LoadDepth(filepath.Join(dir, "rgba.tiff"))
	assert.ErrorContains(t, err, "unsupported depth image type")

	_, err = LoadDepth(filepath.Join(dir, "missing.tiff"))
	assert.Error(t, err)
}

// floatTIFF encodes a single-channel float32 TIFF the way the Cornell
// preprocessing writes depth, split into strips of rowsPerStrip rows.
func floatTIFF(bo binary.ByteOrder, rows, cols, rowsPerStrip int, vals []float32) []byte {
	const pixels = 8
	n := (rows + rowsPerStrip - 1) / rowsPerStrip
	arrays := pixels + rows*cols*4
	ifd := arrays + 8*n
	out := make([]byte, ifd+2+10*12+4)
	copy(out, "II\x2A\x00")
	if bo == binary.BigEndian {
		copy(out, "MM\x00\x2A")
	}
	bo.PutUint32(out[4:], uint32(ifd))
	for i, v := range vals {
		bo.PutUint32(out[pixels+4*i:], math.Float32bits(v))
	}
	for i := range n {
		bo.PutUint32(out[arrays+4*i:], uint32(pixels+i*rowsPerStrip*cols*4))
		bo.PutUint32(out[arrays+4*n+4*i:], uint32(min(rowsPerStrip, rows-i*rowsPerStrip)*cols*4))
	}
	offsets, counts := uint32(arrays), uint32(arrays+4*n)
	if n == 1 {
		offsets, counts = pixels, uint32(rows*cols*4)
	}

	bo.PutUint16(out[ifd:], 10)
	entry := func(i int, tag, typ uint16, count, value uint32) {
		e := out[ifd+2+12*i:]
		bo.PutUint16(e, tag)
		bo.PutUint16(e[2:], typ)
		bo.PutUint32(e[4:], count)
		if typ == typeShort {
			bo.PutUint16(e[8:], uint16(value))
		} else {
			bo.PutUint32(e[8:], value)
		}
	}
	entry(0, tagImageWidth, typeLong, 1, uint32(cols))
	entry(1, tagImageLength, typeLong, 1, uint32(rows))
	entry(2, tagBitsPerSample, typeShort, 1, 32)
	entry(3, tagCompression, typeShort, 1, 1)
	entry(4, 262, typeShort, 1, 1)
	entry(5, tagStripOffsets, typeLong, uint32(n), offsets)
	entry(6, tagSamplesPerPixel, typeShort, 1, 1)
	entry(7, 278, typeLong, 1, uint32(rowsPerStrip))
	entry(8, tagStripByteCounts, typeLong, uint32(n), counts)
	entry(9, tagSampleFormat, typeShort, 1, sampleFormatFloat)
	return out
}

func TestLoadDepthFloat(t *testing.T) {
	dir := t.TempDir()
	vals := []float32{0.5, 0.75, float32(math.NaN()), 1.25, 2, 0.25}
	want := []float64{0.5, 0.75, 0, 1.25, 2, 0.25}

	orders := map[string]binary.ByteOrder{"le": binary.LittleEndian, "be": binary.BigEndian}
	for name, bo := range orders {
		for _, rps := range []int{2, 1} {
			path := filepath.Join(dir, fmt.Sprintf("%s_%d.tiff", name, rps))
			require.NoError(t, os.WriteFile(path, floatTIFF(bo, 2, 3, rps, vals), 0o600))

			d, err := LoadDepth(path)
			require.NoError(t, err, path)
			assert.Equal(t, 2, d.Rows)
			assert.Equal(t, 3, d.Cols)
			assert.Equal(t, want, d.Data, path)
		}
	}

	raw := floatTIFF(binary.LittleEndian, 2, 3, 2, vals)
	ifd := binary.LittleEndian.Uint32(raw[4:])
	binary.LittleEndian.PutUint16(raw[ifd+2+12*3+8:], 5)
	path := filepath.Join(dir, "lzw.tiff")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	_, err := LoadDepth(path)
	assert.ErrorContains(t, err, "compressed")

	raw = floatTIFF(binary.LittleEndian, 2, 3, 2, vals)
	binary.LittleEndian.PutUint32(raw[ifd+2+12*0+8:], 1<<30)
	path = filepath.Join(dir, "huge.tiff")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	_, err = LoadDepth(path)
	assert.ErrorContains(t, err, "larger than file")
}

func TestRGBOps(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 21, 21))
	red := color.NRGBA{R: 255, A: 255}
	for y := 9; y <= 11; y++ {
		for x := 14; x <= 19; x++ {
			img.SetNRGBA(x, y, red)
		}
	}

	assert.Same(t, image.Image(img), RotateRGB(img, 0, r2.Vec{X: 10, Y: 10}))

	rot := RotateRGB(img, math.Pi/2, r2.Vec{X: 10, Y: 10})
	isRed := func(x, y int) bool {
		r, g, _, _ := rot.At(x, y).RGBA()
		return r > 0xF000 && g == 0
	}
	assert.True(t, isRed(10, 3), "object right of the pivot moves above it")
	assert.False(t, isRed(16, 10))

	crop := CropRGB(img, 9, 14, 12, 20)
	assert.Equal(t, 6, crop.Bounds().Dx())
	assert.Equal(t, 3, crop.Bounds().Dy())

	z := ZoomRGB(img, 0.5)
	assert.Equal(t, img.Bounds().Size(), z.Bounds().Size())

	planes := RGBPlanes(img)
	var sum float64
	for _, p := range planes {
		require.Len(t, p, 21*21)
		for _, v := range p {
			sum += v
		}
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestPrepareInput(t *testing.T) {
	dir := fixture(t, 1)
	ds, err := NewCornell(options(dir))
	require.NoError(t, err)
	_, depth, rgb := ds.Files(0)

	f, err := PrepareInput(depth, rgb, outputSize)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, outputSize, outputSize}, f.Input.Shape())
	assert.Equal(t, (fixtureRows-outputSize)/2, f.Top)
	assert.Equal(t, (fixtureCols-outputSize)/2, f.Left)
	assert.InDelta(t, 1.0, f.ScaleX, 1e-12)

	f, err = PrepareInput(depth, "", 16)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 16, 16}, f.Input.Shape())
	for _, v := range f.Input.Data() {
		assert.LessOrEqual(t, math.Abs(v), 1.0)
	}

	// A window larger than the frame is shrunk to the frame and scaled.
	f, err = PrepareInput("", rgb, 96)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 96, 96}, f.Input.Shape())
	assert.InDelta(t, 1.5, f.ScaleX, 1e-12)
	assert.InDelta(t, 2.0, f.ScaleY, 1e-12)

	g := f.ToSource(grasp.Grasp{Center: r2.Vec{X: 48, Y: 48}, Length: 35, Width: 7})
	assert.InDelta(t, 32, g.Center.X, 1e-12)
	assert.InDelta(t, 24, g.Center.Y, 1e-12)
	assert.InDelta(t, 20, g.Length, 1e-12)

	_, err = PrepareInput("", "", outputSize)
	require.ErrorIs(t, err, ErrNoInputs)
	_, err = PrepareInput(depth, "", 0)
	require.Error(t, err)
	_, err = PrepareInput(filepath.Join(dir, "missing.tiff"), "", outputSize)
	require.Error(t, err)
}
