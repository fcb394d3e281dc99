// Package colorspace converts between stored 8-bit RGB and the working color
// spaces in which clustering distances and centroids are computed.
package colorspace

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
)

// Vector is a color in a working color space.
type Vector = [3]float64

// Default is the working space used when none is configured.
const Default = "LAB"

var (
	// ErrUnknown is returned by Lookup for names that are not registered.
	ErrUnknown = errors.New("unknown colorspace")

	// ErrNoRange is returned by Lookup for a space without a declared value range.
	ErrNoRange = errors.New("colorspace has no declared value range")
)

// Codec encodes stored RGB colors into a working space and back.
type Codec interface {
	Encode(c imaging.RGBColor) Vector
	Decode(v Vector) imaging.RGBColor
}

// Range is the declared value range of a working space. Min and Max are the
// opposite corners of the box holding every encodable color, so a metric's
// distance between them is the largest distance two colors can have.
type Range struct {
	Min Vector
	Max Vector
}

// Space is a registered working color space.
type Space struct {
	Name  string
	Codec Codec
	Range *Range
}

var registry = map[string]Space{
	"RGB": {
		Name:  "RGB",
		Codec: identity{},
		Range: &Range{Min: Vector{0, 0, 0}, Max: Vector{255, 255, 255}},
	},
	"LAB": {
		Name:  "LAB",
		Codec: lab{},
		Range: &Range{Min: Vector{0, -128, -128}, Max: Vector{100, 127, 127}},
	},
	"LUV": {
		Name:  "LUV",
		Codec: luv{},
		Range: &Range{Min: Vector{0, -134, -140}, Max: Vector{100, 224, 122}},
	},
	"XYZ": {
		Name:  "XYZ",
		Codec: xyz{},
		// XYZ is linear with non-negative coefficients, so white is the
		// per-channel maximum.
		Range: &Range{Min: Vector{0, 0, 0}, Max: xyz{}.Encode(imaging.RGBColor{R: 255, G: 255, B: 255})},
	},
}

// Lookup returns the registered space for name. Matching is case-insensitive.
func Lookup(name string) (Space, error) {
	s, ok := registry[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Space{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	if s.Range == nil {
		return Space{}, fmt.Errorf("%w: %s", ErrNoRange, s.Name)
	}
	return s, nil
}

// Names lists the registered space names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Samples returns vectors spread over r: its eight corners and its center.
// They are used to sanity-check metrics against the space they will run in.
func (r Range) Samples() []Vector {
	samples := make([]Vector, 0, 9)
	for i := 0; i < 8; i++ {
		var v Vector
		for ch := 0; ch < 3; ch++ {
			if i&(1<<ch) == 0 {
				v[ch] = r.Min[ch]
			} else {
				v[ch] = r.Max[ch]
			}
		}
		samples = append(samples, v)
	}
	var mid Vector
	for ch := 0; ch < 3; ch++ {
		mid[ch] = (r.Min[ch] + r.Max[ch]) / 2
	}
	return append(samples, mid)
}

type identity struct{}

func (identity) Encode(c imaging.RGBColor) Vector {
	return Vector{float64(c.R), float64(c.G), float64(c.B)}
}

func (identity) Decode(v Vector) imaging.RGBColor {
	return imaging.RGBColor{R: clamp8(v[0]), G: clamp8(v[1]), B: clamp8(v[2])}
}

// lab is CIE L*a*b* (D65) in the conventional scale: L in [0,100], a and b
// roughly in [-128,127]. go-colorful works on a 1/100 scale.
type lab struct{}

func (lab) Encode(c imaging.RGBColor) Vector {
	l, a, b := toColorful(c).Lab()
	return Vector{l * 100, a * 100, b * 100}
}

func (lab) Decode(v Vector) imaging.RGBColor {
	return fromColorful(colorful.Lab(v[0]/100, v[1]/100, v[2]/100))
}

// luv is CIE L*u*v* (D65) with L in [0,100].
type luv struct{}

func (luv) Encode(c imaging.RGBColor) Vector {
	l, u, v := toColorful(c).Luv()
	return Vector{l * 100, u * 100, v * 100}
}

func (luv) Decode(v Vector) imaging.RGBColor {
	return fromColorful(colorful.Luv(v[0]/100, v[1]/100, v[2]/100))
}

// xyz is CIE XYZ (D65) scaled so that Y of white is 100.
type xyz struct{}

func (xyz) Encode(c imaging.RGBColor) Vector {
	x, y, z := toColorful(c).Xyz()
	return Vector{x * 100, y * 100, z * 100}
}

func (xyz) Decode(v Vector) imaging.RGBColor {
	return fromColorful(colorful.Xyz(v[0]/100, v[1]/100, v[2]/100))
}

func toColorful(c imaging.RGBColor) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

func fromColorful(c colorful.Color) imaging.RGBColor {
	r, g, b := c.Clamped().RGB255()
	return imaging.RGBColor{R: r, G: g, B: b}
}

func clamp8(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}
