package quantize

import (
	"github.com/hashicorp/go-hclog"

	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/metric"
)

// Default settings.
const (
	DefaultThreshold1    = 0.1
	DefaultThreshold2    = 5.0
	DefaultMaxIterations = 100
)

// Config holds the quantizer settings.
type Config struct {
	// Colorspace is the working color space name, e.g. "LAB" or "RGB".
	Colorspace string `yaml:"colorspace" json:"colorspace"`

	// Metric is the identifier of a registered metric. Ignored when MetricFunc is set.
	Metric string `yaml:"metric" json:"metric"`

	// MetricFunc is a user-supplied distance. It is validated against the
	// colorspace range when the quantizer is built.
	MetricFunc metric.Func `yaml:"-" json:"-"`

	// Threshold1 is the minimal relative frequency, in percent of all pixels,
	// for a color to take part in seeding.
	Threshold1 float64 `yaml:"threshold1" json:"threshold1"`

	// Threshold2 is the maximal relative distance, in percent of the largest
	// possible distance in the colorspace, for two colors to share a seed.
	Threshold2 float64 `yaml:"threshold2" json:"threshold2"`

	// MaxIterations caps the refinement loop.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`
}

// DefaultConfig returns the default settings: LAB, euclidean, 0.1% and 5%.
func DefaultConfig() Config {
	return Config{
		Colorspace:    colorspace.Default,
		Metric:        metric.Default,
		Threshold1:    DefaultThreshold1,
		Threshold2:    DefaultThreshold2,
		MaxIterations: DefaultMaxIterations,
	}
}

// MetricName returns the name used for the configured metric in logs and output.
func (c Config) MetricName() string {
	if c.MetricFunc != nil {
		return "custom"
	}
	return c.Metric
}

// Option configures optional Quantizer behavior.
type Option func(*Quantizer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger hclog.Logger) Option {
	return func(q *Quantizer) {
		if logger != nil {
			q.logger = logger
		}
	}
}
