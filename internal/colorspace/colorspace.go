// Package colorspace converts between 8-bit RGB and normalized HSV.
package colorspace

import "math"

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

// HSV holds hue, saturation and value, each in [0, 1].
// Hue is a fraction of a full turn, not degrees.
type HSV struct {
	H, S, V float32
}

// Sector is one of the six hue ranges used to rebuild RGB from HSV.
type Sector uint8

const (
	SectorRedYellow Sector = iota
	SectorYellowGreen
	SectorGreenCyan
	SectorCyanBlue
	SectorBlueMagenta
	SectorMagentaRed
	sectorCount
)

// RGBToHSV converts an 8-bit RGB color to HSV.
func RGBToHSV(c RGB) HSV {
	return ChannelsToHSV(float32(c.R), float32(c.G), float32(c.B))
}

// ChannelsToHSV converts channel values in [0, 255] to HSV.
// The channels may be fractional.
func ChannelsToHSV(r, g, b float32) HSV {
	r /= 255
	g /= 255
	b /= 255

	maxv := max3(r, g, b)
	minv := min3(r, g, b)
	delta := maxv - minv

	hsv := HSV{V: maxv}
	if maxv > 0 {
		hsv.S = delta / maxv
	}

	// Achromatic
	if delta == 0 {
		return hsv
	}

	// Ties resolve in r, g, b order.
	switch maxv {
	case r:
		h := (g - b) / delta
		if g < b {
			h += 6
		}
		hsv.H = h / 6
	case g:
		hsv.H = ((b-r)/delta + 2) / 6
	default:
		hsv.H = ((r-g)/delta + 4) / 6
	}

	return hsv
}

// SectorOf splits a hue into its sector and the fractional position inside it.
func SectorOf(h float32) (Sector, float32) {
	h6 := h * 6
	i := float32(math.Floor(float64(h6)))
	f := h6 - i

	s := int(i) % int(sectorCount)
	if s < 0 {
		s += int(sectorCount)
	}
	return Sector(s), f
}

// component selects one of the intermediate HSV reconstruction values.
type component uint8

const (
	compV component = iota
	compP
	compQ
	compT
)

// sectorTable maps each sector to the components written to R, G and B.
var sectorTable = [sectorCount][3]component{
	SectorRedYellow:   {compV, compT, compP},
	SectorYellowGreen: {compQ, compV, compP},
	SectorGreenCyan:   {compP, compV, compT},
	SectorCyanBlue:    {compP, compQ, compV},
	SectorBlueMagenta: {compT, compP, compV},
	SectorMagentaRed:  {compV, compP, compQ},
}

// HSVToRGB converts HSV back to RGB channel values scaled to [0, 255].
// The result is neither rounded nor clamped.
func HSVToRGB(c HSV) (r, g, b float32) {
	sector, f := SectorOf(c.H)

	vals := [4]float32{
		compV: c.V,
		compP: c.V * (1 - c.S),
		compQ: c.V * (1 - f*c.S),
		compT: c.V * (1 - (1-f)*c.S),
	}

	row := sectorTable[sector]
	return vals[row[0]] * 255, vals[row[1]] * 255, vals[row[2]] * 255
}

// RGB converts c to an 8-bit color, rounding to nearest and clamping.
func (c HSV) RGB() RGB {
	r, g, b := HSVToRGB(c)
	return RGB{R: ToUint8(r), G: ToUint8(g), B: ToUint8(b)}
}

// ToUint8 clamps a channel value to [0, 255] and rounds it to nearest,
// with exact halves going to the even neighbour.
func ToUint8(x float32) uint8 {
	if math.IsNaN(float64(x)) || x <= 0 {
		return 0
	}
	if x >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(float64(x)))
}

func max3(a, b, c float32) float32 {
	if a < b {
		a = b
	}
	if a < c {
		a = c
	}
	return a
}

func min3(a, b, c float32) float32 {
	if a > b {
		a = b
	}
	if a > c {
		a = c
	}
	return a
}
