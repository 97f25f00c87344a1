package dataset

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// LoadRGB opens a colour image.
func LoadRGB(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open rgb image")
	}
	return img, nil
}

// RotateRGB turns img counter-clockwise (on screen) by angle radians about
// center, keeping its bounds.
func RotateRGB(img image.Image, angle float64, center r2.Vec) image.Image {
	if angle == 0 {
		return img
	}
	pivot := image.Point{X: int(math.Round(center.X)), Y: int(math.Round(center.Y))}
	// bild rotates clockwise for positive angles.
	return transform.Rotate(img, -angle*180/math.Pi, &transform.RotationOptions{Pivot: &pivot})
}

// CropRGB returns rows [top, bottom) and cols [left, right).
func CropRGB(img image.Image, top, left, bottom, right int) *image.NRGBA {
	b := img.Bounds()
	return imaging.Crop(img, image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+right, b.Min.Y+bottom))
}

// ZoomRGB crops the central factor-sized window and scales it back up.
func ZoomRGB(img image.Image, factor float64) *image.NRGBA {
	b := img.Bounds()
	sr := int(float64(b.Dy())*(1-factor)) / 2
	sc := int(float64(b.Dx())*(1-factor)) / 2
	crop := CropRGB(img, sr, sc, b.Dy()-sr, b.Dx()-sc)
	return imaging.Resize(crop, b.Dx(), b.Dy(), imaging.Linear)
}

// RGBPlanes converts img to three row-major channels scaled to [0, 1] with
// the overall mean subtracted.
func RGBPlanes(img image.Image) [3][]float64 {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	n := b.Dx() * b.Dy()
	var planes [3][]float64
	for c := range planes {
		planes[c] = make([]float64, n)
	}
	var mean float64
	for y := range b.Dy() {
		for x := range b.Dx() {
			i := nrgba.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := range 3 {
				v := float64(nrgba.Pix[i+c]) / 255
				planes[c][y*b.Dx()+x] = v
				mean += v
			}
		}
	}
	if n == 0 {
		return planes
	}
	mean /= float64(3 * n)
	for c := range planes {
		for i := range planes[c] {
			planes[c][i] -= mean
		}
	}
	return planes
}
