package dataset

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/internal/grasp"
)

// WriteSynthetic writes n Cornell-style samples of rows×cols pixels to dir.
// Each frame shows one box-shaped object raised above a table plane with a
// single grasp across it. It is not realistic data; it exercises the
// pipeline without the real dataset.
func WriteSynthetic(dir string, n, rows, cols int, seed int64) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, "create synthetic dataset dir")
	}
	//nolint:gosec // G404: fixture generation
	rng := rand.New(rand.NewSource(seed))
	for i := range n {
		prefix := filepath.Join(dir, fmt.Sprintf("pcd%04d", 100+i))

		g := grasp.Grasp{
			Center: r2.Vec{
				X: float64(cols)/2 + (rng.Float64()-0.5)*float64(cols)/4,
				Y: float64(rows)/2 + (rng.Float64()-0.5)*float64(rows)/4,
			},
			Angle:  (rng.Float64() - 0.5) * math.Pi,
			Length: float64(min(rows, cols)) / 4,
			Width:  float64(min(rows, cols)) / 8,
		}
		rect := g.Rectangle()

		var sb strings.Builder
		for _, p := range rect {
			fmt.Fprintf(&sb, "%.2f %.2f\n", p.X, p.Y)
		}
		if err := os.WriteFile(prefix+"cpos.txt", []byte(sb.String()), 0o600); err != nil {
			return errors.Wrap(err, "write annotations")
		}

		object := grasp.Rectangles{rect}.Draw(rows, cols)
		depth := image.NewGray16(image.Rect(0, 0, cols, rows))
		rgb := image.NewNRGBA(image.Rect(0, 0, cols, rows))
		for y := range rows {
			for x := range cols {
				mm := 700.0
				c := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
				if object.Pos[y*cols+x] > 0 {
					mm = 650
					c = color.NRGBA{R: 200, G: 120, B: 30, A: 255}
				}
				depth.SetGray16(x, y, color.Gray16{Y: uint16(mm + rng.Float64()*2)})
				rgb.SetNRGBA(x, y, c)
			}
		}

		if err := writeTIFF(prefix+"d.tiff", depth); err != nil {
			return err
		}
		if err := imaging.Save(rgb, prefix+"r.png"); err != nil {
			return errors.Wrap(err, "write rgb image")
		}
	}
	return nil
}

func writeTIFF(path string, img image.Image) error {
	//nolint:gosec // G304: path is built from the fixture dir
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "encode depth image")
	}
	return errors.Wrap(f.Close(), "close depth image")
}
