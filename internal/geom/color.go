package geom

import (
	"math/rand"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBA is a linear colour with components in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// Red is opaque red.
var Red = RGBA{R: 1, G: 0, B: 0, A: 1}

// Clamp returns c with every component limited to [0, 1].
func (c RGBA) Clamp() RGBA {
	return RGBA{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B), A: clamp01(c.A)}
}

// InRange reports whether every component lies in [0, 1].
func (c RGBA) InRange() bool {
	return c == c.Clamp()
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// RandomOpaqueHSV draws hue, saturation and value uniformly from [0, 1) and
// returns the matching fully opaque colour.
func RandomOpaqueHSV(rng *rand.Rand) RGBA {
	h, s, v := rng.Float64(), rng.Float64(), rng.Float64()
	return FromHSV(h, s, v)
}

// FromHSV converts hue, saturation and value, each in [0, 1], to an opaque
// colour.
func FromHSV(h, s, v float64) RGBA {
	c := colorful.Hsv(h*360, s, v).Clamped()
	return RGBA{R: c.R, G: c.G, B: c.B, A: 1}
}

// Hex formats the colour as #rrggbb, ignoring alpha.
func (c RGBA) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}
