package output

import (
	"fmt"
	"image/jpeg"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/forest-guardian/fmc-pipeline/internal/properties"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

const thumbnailQuality = 90

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

// valueToColor interpolates linearly between evenly spaced ramp stops.
func valueToColor(norm float64, ramp []properties.Color) (float64, float64, float64) {
	if len(ramp) == 1 {
		return float64(ramp[0].R) / 255, float64(ramp[0].G) / 255, float64(ramp[0].B) / 255
	}
	pos := norm * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		i = len(ramp) - 2
	}
	ratio := pos - float64(i)
	lerp := func(a, b uint8) float64 {
		return (float64(a) + (float64(b)-float64(a))*ratio) / 255
	}
	from, to := ramp[i], ramp[i+1]
	return lerp(from.R, to.R), lerp(from.G, to.G), lerp(from.B, to.B)
}

func finiteRange(values []float64) (float64, float64, bool) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return min, max, !math.IsInf(min, 1)
}

// Thumbnail draws one image pixel per raster pixel, stretched between the band's minimum
// and maximum. NaN pixels are left as background.
func Thumbnail(r *raster.Raster, band string, w io.Writer) error {
	values, err := r.MustBand(band)
	if err != nil {
		return err
	}
	width, height := r.Grid.Width, r.Grid.Height
	if width == 0 || height == 0 {
		return fmt.Errorf("cannot draw an empty %dx%d thumbnail", width, height)
	}

	bg := properties.ThumbnailBackground
	dc := gg.NewContext(width, height)
	dc.SetRGB(float64(bg.R)/255, float64(bg.G)/255, float64(bg.B)/255)
	dc.Clear()

	min, max, ok := finiteRange(values)
	if ok {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := values[y*width+x]
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				dc.SetRGB(valueToColor(normalize(v, min, max), properties.ThumbnailRamp))
				dc.SetPixel(x, y)
			}
		}
	}

	if err := jpeg.Encode(w, dc.Image(), &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return nil
}
