// Package imageops holds the pixel math applied to loaded images.
package imageops

import (
	"errors"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"
)

const gamma = 2.2

var ErrEmptyImage = errors.New("empty image")

// Luminance returns the gamma-correct relative luminance of c in [0, 1].
func Luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	rr := math.Pow(float64(r)/0xffff, gamma)
	gg := math.Pow(float64(g)/0xffff, gamma)
	bb := math.Pow(float64(b)/0xffff, gamma)
	return 0.2126*rr + 0.7152*gg + 0.0722*bb
}

// Grayscale converts img with gamma-correct luminance weights (Rec. 709).
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			lum := Luminance(img.At(x, y))
			// обратная гамма-коррекция и масштабирование в байт
			level := 255.0 * math.Pow(lum, 1.0/gamma)
			gray.SetGray(x, y, color.Gray{Y: uint8(math.Round(math.Min(level, 255)))})
		}
	}
	return gray, nil
}

// Mean returns the mean luminance over the top-left quarter of img,
// sampled on every pixel of that region.
func Mean(img image.Image) (float64, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrEmptyImage
	}

	bounds := img.Bounds()
	w := max(bounds.Dx()/4, 1)
	h := max(bounds.Dy()/4, 1)

	samples := make([]float64, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Min.Y+h; y++ {
		for x := bounds.Min.X; x < bounds.Min.X+w; x++ {
			samples = append(samples, Luminance(img.At(x, y)))
		}
	}
	return stat.Mean(samples, nil), nil
}

// MeanStdDev summarises a series of measurements.
func MeanStdDev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}
