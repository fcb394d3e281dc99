package quantize

import (
	"image"
	"sort"
	"sync"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
)

// Sample is one distinct color of an image.
type Sample struct {
	RGB    imaging.RGBColor  // color as stored in the image
	Vector colorspace.Vector // color in the working space
	Count  int               // number of pixels with this color
}

// Histogram is the set of distinct colors of an image.
type Histogram struct {
	// Samples are ordered by ascending packed RGB value.
	Samples []Sample

	// Total is the number of pixels in the image.
	Total int

	index map[imaging.RGBColor]int
}

// Index returns the position of c in Samples.
func (h *Histogram) Index(c imaging.RGBColor) (int, bool) {
	i, ok := h.index[c]
	return i, ok
}

// BuildHistogram counts the distinct colors of img and encodes each one once
// with codec.
//
// Rows are counted in parallel; each worker fills its own map and the maps are
// merged under a lock when the worker finishes.
func BuildHistogram(img image.Image, codec colorspace.Codec) *Histogram {
	bounds := img.Bounds()
	counts := make(map[imaging.RGBColor]int)
	var mu sync.Mutex

	parallel.Line(bounds.Dy(), func(start, end int) {
		local := make(map[imaging.RGBColor]int)
		for y := bounds.Min.Y + start; y < bounds.Min.Y+end; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				local[imaging.RGBAt(img, x, y)]++
			}
		}

		mu.Lock()
		for c, n := range local {
			counts[c] += n
		}
		mu.Unlock()
	})

	samples := make([]Sample, 0, len(counts))
	for c, n := range counts {
		samples = append(samples, Sample{RGB: c, Vector: codec.Encode(c), Count: n})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].RGB.Packed() < samples[j].RGB.Packed()
	})

	index := make(map[imaging.RGBColor]int, len(samples))
	for i, s := range samples {
		index[s.RGB] = i
	}

	return &Histogram{
		Samples: samples,
		Total:   bounds.Dx() * bounds.Dy(),
		index:   index,
	}
}
