// Package colorspace converts sampled RGB colors into the encodings shown
// in inspection tooltips: hex, LCH, and HCL.
//
// LCH and HCL are the same cylindrical CIE Lab representation with the
// fields in a different order; the two conversion paths must stay
// value-identical.
package colorspace

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// RGB is a color with 8-bit channels. The channel values are the source of
// truth; every other encoding is derived from them.
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// LCH is a rounded CIE LCh(ab) color: lightness, chroma, hue in degrees.
type LCH struct {
	L int `json:"l"`
	C int `json:"c"`
	H int `json:"h"`
}

// HCL is LCH with the fields reordered for hue-first display.
type HCL struct {
	H int `json:"h"`
	C int `json:"c"`
	L int `json:"l"`
}

// D65 reference white.
const (
	refX = 0.95047
	refY = 1.0
	refZ = 1.08883
)

// CIE piecewise companding constants.
const (
	labEpsilon = 0.008856
	labSlope   = 7.787
	labOffset  = 16.0 / 116.0
)

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// RGBToHex formats a color as a lowercase "#rrggbb" string. Channels are
// clamped to [0,255].
func RGBToHex(r, g, b int) string {
	return fmt.Sprintf("#%02x%02x%02x", clampChannel(r), clampChannel(g), clampChannel(b))
}

// HexToRGB parses a well-formed 6-digit hex color, with or without the
// leading "#". It is the inverse of RGBToHex for well-formed input.
func HexToRGB(hex string) (RGB, error) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("colorspace: hex %q: want 6 digits", hex)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return RGB{}, fmt.Errorf("colorspace: hex %q: %w", hex, err)
	}
	return RGB{R: int(r), G: int(g), B: int(b)}, nil
}

// labF is the CIE cube-root/linear piecewise function applied to
// white-relative XYZ components.
func labF(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return labSlope*t + labOffset
}

// rgbToLab converts 8-bit channels to CIE Lab using the D65 matrix.
func rgbToLab(r, g, b int) (float64, float64, float64) {
	rn := float64(clampChannel(r)) / 255.0
	gn := float64(clampChannel(g)) / 255.0
	bn := float64(clampChannel(b)) / 255.0

	x := 0.4124*rn + 0.3576*gn + 0.1805*bn
	y := 0.2126*rn + 0.7152*gn + 0.0722*bn
	z := 0.0193*rn + 0.1192*gn + 0.9505*bn

	fx := labF(x / refX)
	fy := labF(y / refY)
	fz := labF(z / refZ)

	l := 116.0*fy - 16.0
	a := 500.0 * (fx - fy)
	bb := 200.0 * (fy - fz)
	return l, a, bb
}

// RGBToLCH converts 8-bit channels to rounded LCh(ab). Hue is normalized
// to [0,360) degrees.
func RGBToLCH(r, g, b int) LCH {
	l, a, bb := rgbToLab(r, g, b)

	c := math.Sqrt(a*a + bb*bb)
	h := math.Atan2(bb, a) * 180.0 / math.Pi
	if h < 0 {
		h += 360.0
	}

	return LCH{
		L: int(math.Round(l)),
		C: int(math.Round(c)),
		H: int(math.Round(h)) % 360,
	}
}

// RGBToHCL is RGBToLCH with the fields reordered.
func RGBToHCL(r, g, b int) HCL {
	lch := RGBToLCH(r, g, b)
	return HCL{H: lch.H, C: lch.C, L: lch.L}
}

// cssRGBPattern matches the first three integers of a canonical
// "rgb(r, g, b)" / "rgba(r, g, b, a)" string as produced by a style engine.
var cssRGBPattern = regexp.MustCompile(`rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)

// ParseCSSRGB extracts an RGB triple from a canonical rgb()/rgba() string.
// Alpha is ignored. The second return is false when no triple can be parsed.
func ParseCSSRGB(s string) (RGB, bool) {
	m := cssRGBPattern.FindStringSubmatch(s)
	if m == nil {
		return RGB{}, false
	}
	r, _ := strconv.Atoi(m[1])
	g, _ := strconv.Atoi(m[2])
	b, _ := strconv.Atoi(m[3])
	return RGB{R: clampChannel(r), G: clampChannel(g), B: clampChannel(b)}, true
}

// Hex returns the color as a "#rrggbb" string.
func (c RGB) Hex() string {
	return RGBToHex(c.R, c.G, c.B)
}

// LCH converts the color to rounded LCh(ab).
func (c RGB) LCH() LCH {
	return RGBToLCH(c.R, c.G, c.B)
}

// HCL converts the color to hue-first LCh(ab).
func (c RGB) HCL() HCL {
	return RGBToHCL(c.R, c.G, c.B)
}

// String formats an LCH value for tooltip display, e.g. "lch(100, 0, 0)".
func (v LCH) String() string {
	return fmt.Sprintf("lch(%d, %d, %d)", v.L, v.C, v.H)
}

// String formats an HCL value for tooltip display, e.g. "hcl(0, 0, 100)".
func (v HCL) String() string {
	return fmt.Sprintf("hcl(%d, %d, %d)", v.H, v.C, v.L)
}
