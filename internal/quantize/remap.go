package quantize

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
)

// palette maps every raw color of one image to its replacement color. It is
// built for a single remap pass and dropped afterwards.
type palette map[imaging.RGBColor]imaging.RGBColor

// resolve builds the palette: each cluster's centroid is decoded once and every
// member color maps to it.
func resolve(h *Histogram, clusters []*Cluster, codec colorspace.Codec) (palette, error) {
	pal := make(palette, len(h.Samples))
	for _, c := range clusters {
		out := codec.Decode(c.Centroid)
		for _, i := range c.Members {
			pal[h.Samples[i].RGB] = out
		}
	}
	if len(pal) != len(h.Samples) {
		return nil, computationError("%d of %d colors are not owned by any cluster", len(h.Samples)-len(pal), len(h.Samples))
	}
	return pal, nil
}

// remap writes a new image in which every pixel of img is replaced by the
// color of its cluster. The output has the bounds of img and is fully opaque.
func remap(img image.Image, pal palette) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)

	parallel.Line(bounds.Dy(), func(start, end int) {
		for y := bounds.Min.Y + start; y < bounds.Min.Y+end; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := pal[imaging.RGBAt(img, x, y)]
				out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
	})

	return out
}
