// Package sample generates deterministic synthetic images for exercising
// the adjuster: a hue sweep with saturation ramp and Perlin-modulated value.
package sample

import (
	"fmt"
	"image"
	"image/color"

	"github.com/aquilax/go-perlin"

	"github.com/MeKo-Tech/colorboost/internal/colorspace"
)

// Params defines a sample image.
type Params struct {
	Width  int
	Height int
	Seed   int64
	// NoiseScale is the Perlin feature size in pixels.
	NoiseScale float64
	// NoiseStrength in [0,1] controls how strongly noise darkens the value channel.
	NoiseStrength float64
	// AlphaRamp fades alpha from opaque at the top to transparent at the bottom.
	AlphaRamp bool
}

// DefaultParams returns a square sample of the given size.
func DefaultParams(size int, seed int64) Params {
	return Params{
		Width:         size,
		Height:        size,
		Seed:          seed,
		NoiseScale:    48,
		NoiseStrength: 0.6,
	}
}

// Generate renders the sample image described by p.
func Generate(p Params) (*image.NRGBA, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.NoiseStrength < 0 || p.NoiseStrength > 1 {
		return nil, fmt.Errorf("noise strength must be within [0,1]")
	}
	scale := p.NoiseScale
	if scale <= 0 {
		scale = 48
	}

	// alpha: persistence, beta: lacunarity, n: octaves
	noise := perlin.NewPerlin(2.0, 2.0, 3, p.Seed)

	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		sat := float32(y) / float32(max(p.Height-1, 1))

		alpha := uint8(255)
		if p.AlphaRamp {
			alpha = uint8(255 - (255*y)/max(p.Height-1, 1))
		}

		for x := 0; x < p.Width; x++ {
			hue := float32(x) / float32(p.Width)

			// Noise is roughly in [-1, 1].
			n := noise.Noise2D(float64(x)/scale, float64(y)/scale)
			val := 1 - p.NoiseStrength*(n+1)/2

			c := colorspace.HSV{H: hue, S: sat, V: float32(clamp01(val))}.RGB()
			img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: alpha})
		}
	}

	return img, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
