package quantize

import (
	"image"
	"math"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/metric"
)

// Quantizer reduces the palette of RGB images. A Quantizer holds no per-image
// state and may be shared between goroutines.
type Quantizer struct {
	cfg         Config
	space       colorspace.Space
	metric      metric.Func
	maxDistance float64
	logger      hclog.Logger
}

// New validates cfg and builds a Quantizer.
//
// Every configuration problem is reported here as a KindConfiguration error:
// unknown colorspace or metric names, a colorspace without a value range,
// thresholds outside [0, 100], a non-positive iteration cap, and a MetricFunc
// that is not zero on identical colors, symmetric, nonnegative and finite over
// the colorspace range.
func New(cfg Config, opts ...Option) (*Quantizer, error) {
	q := &Quantizer{cfg: cfg, logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(q)
	}

	space, err := colorspace.Lookup(cfg.Colorspace)
	if err != nil {
		return nil, configError(err, "colorspace")
	}
	q.space = space

	if cfg.MetricFunc != nil {
		if err := metric.Validate(cfg.MetricFunc, space.Range.Samples()); err != nil {
			return nil, configError(err, "custom metric failed validation")
		}
		q.metric = cfg.MetricFunc
	} else {
		f, err := metric.Lookup(cfg.Metric)
		if err != nil {
			return nil, configError(err, "metric")
		}
		q.metric = f
	}

	if cfg.Threshold1 < 0 || cfg.Threshold1 > 100 {
		return nil, configError(nil, "threshold1 must be within [0, 100], got %v", cfg.Threshold1)
	}
	if cfg.Threshold2 < 0 || cfg.Threshold2 > 100 {
		return nil, configError(nil, "threshold2 must be within [0, 100], got %v", cfg.Threshold2)
	}
	if cfg.MaxIterations <= 0 {
		return nil, configError(nil, "max iterations must be positive, got %d", cfg.MaxIterations)
	}

	q.maxDistance = q.metric(space.Range.Min, space.Range.Max)
	if !(q.maxDistance > 0) || math.IsInf(q.maxDistance, 0) {
		return nil, configError(nil, "metric distance across the %s range is %v, want a positive finite value",
			space.Name, q.maxDistance)
	}

	return q, nil
}

// Config returns the settings the quantizer was built with.
func (q *Quantizer) Config() Config {
	return q.cfg
}

// Result is the outcome of quantizing one image.
type Result struct {
	// Image is the quantized image, same bounds as the input.
	Image *image.NRGBA

	// Histogram holds the distinct colors of the input image.
	Histogram *Histogram

	// Clusters is the final cluster set; every histogram sample belongs to
	// exactly one cluster.
	Clusters []*Cluster

	// Seeds is the number of clusters produced by seeding.
	Seeds int

	Iterations int
	Converged  bool
	Inertia    []float64
}

// Process quantizes img and returns the new image.
func (q *Quantizer) Process(img image.Image) (image.Image, error) {
	res, err := q.Quantize(img)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Quantize runs the full pass on img: histogram, seeding, refinement and remap.
// img is never modified.
func (q *Quantizer) Quantize(img image.Image) (*Result, error) {
	if img == nil {
		return nil, validationError("image is nil")
	}
	if mode := imaging.ColorMode(img); mode != imaging.ModeRGB {
		return nil, validationError("expecting RGB image, found %s", mode)
	}
	if img.Bounds().Empty() {
		return nil, validationError("image has no pixels")
	}

	start := time.Now()
	q.logger.Info("running quantization process")
	q.logger.Debug("quantization settings",
		"colorspace", q.space.Name,
		"metric", q.cfg.MetricName(),
		"threshold1", q.cfg.Threshold1,
		"threshold2", q.cfg.Threshold2)

	hist := BuildHistogram(img, q.space.Codec)
	q.logger.Debug("number of colors before quantization", "colors", len(hist.Samples))

	s := &seeder{
		metric:      q.metric,
		maxDistance: q.maxDistance,
		threshold1:  q.cfg.Threshold1,
		threshold2:  q.cfg.Threshold2,
	}
	seeds, err := s.seed(hist)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		top := mostFrequent(hist)
		q.logger.Debug("no color reaches threshold1, seeding with the most frequent color",
			"color", hist.Samples[top].RGB.Hex())
		seeds = []*Cluster{{Centroid: hist.Samples[top].Vector}}
	}
	q.logger.Debug("number of seed clusters", "clusters", len(seeds))

	r := &refiner{metric: q.metric, maxIterations: q.cfg.MaxIterations}
	ref := r.refine(hist.Samples, seeds)
	q.logger.Debug("number of colors after quantization",
		"clusters", len(ref.Clusters),
		"iterations", ref.Iterations,
		"converged", ref.Converged)

	pal, err := resolve(hist, ref.Clusters, q.space.Codec)
	if err != nil {
		return nil, err
	}
	out := remap(img, pal)

	q.logger.Debug("quantization finished", "elapsed", time.Since(start))
	return &Result{
		Image:      out,
		Histogram:  hist,
		Clusters:   ref.Clusters,
		Seeds:      len(seeds),
		Iterations: ref.Iterations,
		Converged:  ref.Converged,
		Inertia:    ref.Inertia,
	}, nil
}

// ClusterColor describes one output color.
type ClusterColor struct {
	Hex        string           `json:"hex"`
	RGB        imaging.RGBColor `json:"rgb"`
	Centroid   [3]float64       `json:"centroid"`   // centroid in the working colorspace
	Colors     int              `json:"colors"`     // distinct input colors merged into this one
	Pixels     int              `json:"pixels"`     // pixels painted with this color
	Percentage float64          `json:"percentage"` // share of all pixels (0-100)
}

// Palette describes the output colors, most frequent first.
func (r *Result) Palette(codec colorspace.Codec) []ClusterColor {
	colors := make([]ClusterColor, 0, len(r.Clusters))
	for _, c := range r.Clusters {
		rgb := codec.Decode(c.Centroid)
		pixels := c.Pixels(r.Histogram.Samples)
		colors = append(colors, ClusterColor{
			Hex:        rgb.Hex(),
			RGB:        rgb,
			Centroid:   c.Centroid,
			Colors:     len(c.Members),
			Pixels:     pixels,
			Percentage: math.Round(float64(pixels)/float64(r.Histogram.Total)*100*100) / 100,
		})
	}
	sort.SliceStable(colors, func(i, j int) bool {
		return colors[i].Pixels > colors[j].Pixels
	})
	return colors
}

// Palette describes the output colors of res as decoded by this quantizer's colorspace.
func (q *Quantizer) Palette(res *Result) []ClusterColor {
	return res.Palette(q.space.Codec)
}

func mostFrequent(h *Histogram) int {
	top := 0
	for i, s := range h.Samples {
		if s.Count > h.Samples[top].Count {
			top = i
		}
	}
	return top
}
