package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// FromImage converts img into a three-band (R, G, B) grid with values in
// [0, 255]. Fully transparent pixels become no-data when transparentNoData
// is set; they are written as -1 in every band.
func FromImage(img image.Image, transparentNoData bool) (*Grid, error) {
	src := imaging.Clone(img)
	b := src.Bounds()

	g, err := NewGrid(b.Dy(), b.Dx(), 3)
	if err != nil {
		return nil, err
	}
	if transparentNoData {
		for band := 0; band < 3; band++ {
			g.SetNoData(band, -1)
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := src.PixOffset(x+b.Min.X, y+b.Min.Y)
			px := src.Pix[i : i+4 : i+4]
			if transparentNoData && px[3] == 0 {
				for band := 0; band < 3; band++ {
					g.SetValue(x, y, band, -1)
				}
				continue
			}
			for band := 0; band < 3; band++ {
				g.SetValue(x, y, band, float64(px[band]))
			}
		}
	}
	return g, nil
}

// Load decodes the image at path and converts it with FromImage. EXIF
// orientation is applied.
func Load(path string, transparentNoData bool) (*Grid, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	return FromImage(img, transparentNoData)
}

// Smooth applies a gaussian blur of the given radius. It is a cheap
// pre-filter that reduces over-segmentation on noisy imagery. A radius of
// zero or less returns img unchanged.
func Smooth(img image.Image, radius float64) image.Image {
	if radius <= 0 {
		return img
	}
	return blur.Gaussian(img, radius)
}

// Colorize renders band of r as an image with one color per distinct
// value. Zero (no segment) is drawn black. Colors are stable for a given
// value.
func Colorize(r Raster, band int) (*image.NRGBA, error) {
	if band < 0 || band >= r.Bands() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	img := image.NewNRGBA(image.Rect(0, 0, r.Cols(), r.Rows()))
	for y := 0; y < r.Rows(); y++ {
		for x := 0; x < r.Cols(); x++ {
			img.Set(x, y, LabelColor(uint32(r.Value(x, y, band))))
		}
	}
	return img, nil
}

// LabelColor returns the display color of a segment label.
func LabelColor(label uint32) color.Color {
	if label == 0 {
		return color.NRGBA{A: 0xff}
	}
	// Golden-angle hue spacing keeps neighboring labels apart.
	const goldenAngle = 137.50776405
	h := math.Mod(float64(label)*goldenAngle, 360)
	s := 0.55 + 0.4*float64(label%3)/2
	v := 0.65 + 0.3*float64(label%5)/4
	return colorful.Hsv(h, s, v).Clamped()
}

// SavePNG writes img to path. The format is taken from the extension.
func SavePNG(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("raster: save %s: %w", path, err)
	}
	return nil
}
