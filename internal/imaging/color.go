package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
//
// RGBColor is comparable and is used as a map key wherever colors are counted
// or cached, so alpha is not part of it.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// Hex returns the color in "#RRGGBB" form.
func (c RGBColor) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Packed returns the color as 0xRRGGBB. Ordering by Packed gives a stable,
// data-independent order over colors.
func (c RGBColor) Packed() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// RGBAt returns the non-premultiplied color of the pixel at (x, y) with
// alpha dropped. A translucent pixel keeps its own color instead of being
// darkened by its alpha.
//
// 16-bit images are scaled down to 8 bits per channel.
func RGBAt(img image.Image, x, y int) RGBColor {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return RGBColor{R: c.R, G: c.G, B: c.B}
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in several representations.
type ColorResult struct {
	Hex string   `json:"hex"` // Hex format "#RRGGBB"
	RGB RGBColor `json:"rgb"` // RGB components
	HSL HSLColor `json:"hsl"` // HSL representation
}

// NewColorResult describes c in all supported representations.
func NewColorResult(c RGBColor) ColorResult {
	return ColorResult{
		Hex: c.Hex(),
		RGB: c,
		HSL: toHSL(c),
	}
}

// SampleColor extracts the color value at a specific pixel coordinate.
//
// Parameters:
//   - img: The source image to sample from.
//   - x: X coordinate (0-based, 0 = leftmost pixel).
//   - y: Y coordinate (0-based, 0 = topmost pixel).
//
// Returns:
//   - *ColorResult: The color at (x, y) in multiple formats.
//   - error: Non-nil if coordinates are outside the image bounds.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	if !(image.Point{X: x, Y: y}).In(bounds) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	result := NewColorResult(RGBAt(img, x, y))
	return &result, nil
}

// Region represents a rectangular region within an image.
//
// Coordinates follow the standard image convention:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// ColorFrequency represents a color and its occurrence frequency in an image.
type ColorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB"
	Pixels     int      `json:"pixels"`     // Number of pixels with this color
	Percentage float64  `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        RGBColor `json:"rgb"`        // RGB components
}

// DominantColorsResult contains the most frequently occurring colors in an image.
//
// Colors are sorted by frequency in descending order (most common first).
type DominantColorsResult struct {
	Colors   []ColorFrequency `json:"colors"`
	Distinct int              `json:"distinct"` // Number of distinct colors in the analyzed area
}

// DominantColors returns the count most common exact colors of an image or region.
//
// Unlike a bucketed palette, colors are counted exactly. This is the view that
// matters after quantization, where an image holds only a handful of colors and
// each one is significant for segmentation.
//
// Parameters:
//   - img: The source image to analyze.
//   - count: Maximum number of colors to return. Values below 1 return all colors.
//   - region: Optional region to analyze. If nil, the entire image is analyzed.
//
// Returns:
//   - *DominantColorsResult: Colors sorted by frequency; ties are ordered by hex value.
//   - error: Non-nil if the region does not overlap the image.
func DominantColors(img image.Image, count int, region *Region) (*DominantColorsResult, error) {
	bounds := img.Bounds()
	if region != nil {
		bounds = region.Rect().Intersect(bounds)
		if bounds.Empty() {
			return nil, fmt.Errorf("region (%d,%d)-(%d,%d) does not overlap the image",
				region.X1, region.Y1, region.X2, region.Y2)
		}
	}

	counts := make(map[RGBColor]int)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			counts[RGBAt(img, x, y)]++
		}
	}
	total := float64(bounds.Dx() * bounds.Dy())

	colors := make([]ColorFrequency, 0, len(counts))
	for c, n := range counts {
		colors = append(colors, ColorFrequency{
			Hex:        c.Hex(),
			Pixels:     n,
			Percentage: math.Round(float64(n)/total*100*100) / 100,
			RGB:        c,
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Pixels != colors[j].Pixels {
			return colors[i].Pixels > colors[j].Pixels
		}
		return colors[i].RGB.Packed() < colors[j].RGB.Packed()
	})

	distinct := len(colors)
	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}

	return &DominantColorsResult{Colors: colors, Distinct: distinct}, nil
}

// toHSL converts an 8-bit RGB color to integer HSL using go-colorful.
func toHSL(c RGBColor) HSLColor {
	h, s, l := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return HSLColor{
		H: int(h),
		S: int(s * 100),
		L: int(l * 100),
	}
}
