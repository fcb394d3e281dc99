package cli

import (
	"github.com/spf13/pflag"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
)

// overrides holds command line values that replace configuration file
// settings. Only flags the user actually set are applied.
type overrides struct {
	colorspace    string
	metric        string
	threshold1    float64
	threshold2    float64
	maxIterations int

	maxWidth    int
	maxHeight   int
	letterDelta int
	wordDelta   int
	minWordArea int
	maxVertical int
	minVFactor  float64

	language    string
	whitelist   string
	pageSegMode int

	filters []string
	upscale float64
	dumpDir string
	timeit  bool
	workers int
}

// AddQuantizerFlags registers the quantizer settings on fs.
func (o *overrides) AddQuantizerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.colorspace, "colorspace", "", "Working color space (LAB, LUV, XYZ, RGB)")
	fs.StringVar(&o.metric, "metric", "", "Distance metric (euclidean, manhattan, chebyshev)")
	fs.Float64Var(&o.threshold1, "threshold1", 0,
		"Minimal share of pixels, in percent, for a color to seed a cluster")
	fs.Float64Var(&o.threshold2, "threshold2", 0,
		"Maximal distance, in percent of the color space diameter, for colors to share a seed")
	fs.IntVar(&o.maxIterations, "max-iterations", 0, "Refinement iteration cap")
}

// AddSegmentFlags registers the text candidate limits on fs.
func (o *overrides) AddSegmentFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.maxWidth, "max-width", 0, "Widest segment, in pixels, that can be part of a letter")
	fs.IntVar(&o.maxHeight, "max-height", 0, "Tallest segment, in pixels, that can be part of a letter")
	fs.IntVar(&o.letterDelta, "letter-delta", 0, "Largest gap between letters of one word")
	fs.IntVar(&o.wordDelta, "word-delta", 0, "Largest gap between words of one line")
	fs.IntVar(&o.minWordArea, "min-word-area", 0, "Words of this many pixels or fewer are noise")
	fs.IntVar(&o.maxVertical, "max-vertical-height", 0,
		"Lines at most this wide are regrouped top to bottom (0 disables)")
	fs.Float64Var(&o.minVFactor, "min-vfactor", 0, "Height to width ratio from which a line is read as vertical")
}

// AddOCRFlags registers the Tesseract settings on fs.
func (o *overrides) AddOCRFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.language, "language", "", "Tesseract language, e.g. eng or eng+deu")
	fs.StringVar(&o.whitelist, "whitelist", "", "Only recognize these characters")
	fs.IntVar(&o.pageSegMode, "psm", 0, "Tesseract page segmentation mode (0-13)")
}

// AddPipelineFlags registers the filter chain and batch settings on fs.
func (o *overrides) AddPipelineFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.filters, "filters", nil,
		"Filters to run, in order (quantize, segment, upscale, text_recognition)")
	fs.Float64Var(&o.upscale, "upscale", 0, "Upscale factor applied by the upscale filter")
	fs.StringVar(&o.dumpDir, "dump-dir", "", "Write every filter's output below this directory")
	fs.BoolVar(&o.timeit, "timeit", false, "Log the duration of every filter")
	fs.IntVarP(&o.workers, "workers", "j", 0, "Images processed concurrently")
}

// Apply copies the flags set on fs into a copy of cfg and validates it.
func (o *overrides) Apply(fs *pflag.FlagSet, cfg *config.Config) (*config.Config, error) {
	out := *cfg
	out.Pipeline.Filters = append([]string(nil), cfg.Pipeline.Filters...)

	set := func(name string, apply func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}

	set("colorspace", func() { out.Quantizer.Colorspace = o.colorspace })
	set("metric", func() { out.Quantizer.Metric = o.metric })
	set("threshold1", func() { out.Quantizer.Threshold1 = o.threshold1 })
	set("threshold2", func() { out.Quantizer.Threshold2 = o.threshold2 })
	set("max-iterations", func() { out.Quantizer.MaxIterations = o.maxIterations })

	set("max-width", func() { out.Segment.MaxWidth = o.maxWidth })
	set("max-height", func() { out.Segment.MaxHeight = o.maxHeight })
	set("letter-delta", func() { out.Segment.LetterDelta = o.letterDelta })
	set("word-delta", func() { out.Segment.WordDelta = o.wordDelta })
	set("min-word-area", func() { out.Segment.MinWordArea = o.minWordArea })
	set("max-vertical-height", func() { out.Segment.MaxVerticalHeight = o.maxVertical })
	set("min-vfactor", func() { out.Segment.MinVFactor = o.minVFactor })

	set("language", func() { out.OCR.Language = o.language })
	set("whitelist", func() { out.OCR.Whitelist = o.whitelist })
	set("psm", func() { out.OCR.PageSegMode = o.pageSegMode })

	set("filters", func() { out.Pipeline.Filters = o.filters })
	set("upscale", func() { out.Pipeline.Upscale = o.upscale })
	set("dump-dir", func() { out.Pipeline.DumpDir = o.dumpDir })
	set("timeit", func() { out.Pipeline.Timeit = o.timeit })
	set("workers", func() { out.Pipeline.Workers = o.workers })

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
