package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
	imgutil "github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
)

// Chain runs filters in order, passing each one the previous filter's image.
// A Chain holds no per-run state and may run several images concurrently.
type Chain struct {
	cfg     *config.Config
	filters []Filter
	logger  hclog.Logger
}

// NewChain builds the filters named in cfg.Pipeline.Filters.
func NewChain(cfg *config.Config, logger hclog.Logger) (*Chain, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Chain{cfg: cfg, logger: logger}
	for _, name := range cfg.Pipeline.Filters {
		switch name {
		case config.FilterUpscale:
			c.filters = append(c.filters, &Upscale{Factor: cfg.Pipeline.Upscale})
		case config.FilterQuantize:
			q, err := quantize.New(cfg.Quantizer, quantize.WithLogger(logger.Named(name)))
			if err != nil {
				return nil, err
			}
			c.filters = append(c.filters, &Quantize{Quantizer: q})
		case config.FilterSegment:
			c.filters = append(c.filters, &Segment{Options: cfg.Segment})
		case config.FilterTextRecognition:
			c.filters = append(c.filters, &TextRecognition{Options: cfg.OCR})
		}
	}
	return c, nil
}

// NewChainWithFilters builds a chain from explicit filters.
func NewChainWithFilters(cfg *config.Config, logger hclog.Logger, filters ...Filter) *Chain {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Chain{cfg: cfg, filters: filters, logger: logger}
}

// Filters returns the filters in execution order.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Run passes img through every filter. source names the input in logs and
// dump paths; it is usually the input file path.
//
// The context is checked between filters. A filter error stops the run.
func (c *Chain) Run(ctx context.Context, source string, img image.Image) (image.Image, *Storage, error) {
	storage := NewStorage()
	logger := c.logger.With("source", source)

	for _, f := range c.filters {
		if err := ctx.Err(); err != nil {
			return nil, storage, err
		}

		out, err := c.process(logger, f, img, storage)
		if err != nil {
			return nil, storage, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		c.dump(logger, source, f, out, storage)
		img = out
	}

	return img, storage, nil
}

func (c *Chain) process(logger hclog.Logger, f Filter, img image.Image, storage *Storage) (image.Image, error) {
	if !c.cfg.Pipeline.Timeit {
		return f.Process(img, storage)
	}

	logger.Debug("timing filter", "filter", f.Name())
	start := time.Now()
	defer func() {
		logger.Debug("filter done", "filter", f.Name(), "time", fmt.Sprintf("%1.3f sec", time.Since(start).Seconds()))
	}()
	return f.Process(img, storage)
}

// dump writes the debug files for one filter under
// <dump_dir>/<source base name>/<filter>/. Failures are logged only.
func (c *Chain) dump(logger hclog.Logger, source string, f Filter, img image.Image, storage *Storage) {
	if c.cfg.Pipeline.DumpDir == "" {
		return
	}

	dir := DumpDir(c.cfg.Pipeline.DumpDir, source, f.Name())
	logger = logger.With("filter", f.Name(), "dir", dir)

	if err := c.cfg.WriteFile(filepath.Join(dir, "config.yaml")); err != nil {
		logger.Error("error while dumping config", "error", err)
		return
	}
	if err := imgutil.Save(img, filepath.Join(dir, "after-"+f.Name()+".png")); err != nil {
		logger.Error("error while dumping image", "error", err)
		return
	}
	if d, ok := f.(Dumper); ok {
		logger.Debug("executing dump function")
		if err := d.Dump(dir, img, storage); err != nil {
			logger.Error("error while performing dump", "error", err)
		}
	}
}

// DumpDir returns the dump directory of one filter for one input.
func DumpDir(root, source, filter string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		base = "image"
	}
	return filepath.Join(root, base, filter)
}
