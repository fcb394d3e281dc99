// Package config loads the settings shared by the CLI, the MCP server and the
// solving pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
	"github.com/ironsheep/captcha-tools-mcp/internal/segment"
)

// Filter names accepted in Pipeline.Filters.
const (
	FilterUpscale         = "upscale"
	FilterQuantize        = "quantize"
	FilterSegment         = "segment"
	FilterTextRecognition = "text_recognition"
)

// MaxUpscale bounds Pipeline.Upscale.
const MaxUpscale = 8.0

// Config is the complete configuration.
type Config struct {
	Quantizer quantize.Config `yaml:"quantizer" json:"quantizer"`
	Segment   segment.Options `yaml:"segment" json:"segment"`
	OCR       ocr.Options     `yaml:"ocr" json:"ocr"`
	Pipeline  Pipeline        `yaml:"pipeline" json:"pipeline"`
}

// Pipeline controls the solving filter chain.
type Pipeline struct {
	// Filters lists filter names in execution order.
	Filters []string `yaml:"filters" json:"filters"`

	// Upscale is the resize factor applied by the upscale filter. 1 keeps
	// the original size.
	Upscale float64 `yaml:"upscale" json:"upscale"`

	// DumpDir enables debug dumps of every filter's output when set.
	DumpDir string `yaml:"dump_dir" json:"dump_dir"`

	// Timeit logs the duration of every filter at debug level.
	Timeit bool `yaml:"timeit" json:"timeit"`

	// Workers is the number of images processed concurrently in batch mode.
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Quantizer: quantize.DefaultConfig(),
		Segment:   segment.DefaultOptions(),
		OCR:       ocr.DefaultOptions(),
		Pipeline: Pipeline{
			Filters: []string{FilterQuantize, FilterUpscale, FilterTextRecognition},
			Upscale: 2,
			Workers: runtime.NumCPU(),
		},
	}
}

// Load reads a YAML or JSON file on top of the defaults. Keys missing from
// the file keep their default value.
func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path) // #nosec G304 - User-specified config file, intended to be read
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	cfg.Pipeline.DumpDir = expandPath(cfg.Pipeline.DumpDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if _, qerr := quantize.New(c.Quantizer); qerr != nil {
		err = multierr.Append(err, fmt.Errorf("quantizer: %w", qerr))
	}
	if serr := c.Segment.Validate(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("segment: %w", serr))
	}
	if oerr := c.OCR.Validate(); oerr != nil {
		err = multierr.Append(err, oerr)
	}

	if len(c.Pipeline.Filters) == 0 {
		err = multierr.Append(err, fmt.Errorf("pipeline: no filters configured"))
	}
	for _, name := range c.Pipeline.Filters {
		switch name {
		case FilterUpscale, FilterQuantize, FilterSegment, FilterTextRecognition:
		default:
			err = multierr.Append(err, fmt.Errorf("pipeline: unknown filter %q", name))
		}
	}
	if c.Pipeline.Upscale < 1 || c.Pipeline.Upscale > MaxUpscale {
		err = multierr.Append(err, fmt.Errorf("pipeline: upscale must be within [1, %v], got %v", MaxUpscale, c.Pipeline.Upscale))
	}
	if c.Pipeline.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("pipeline: workers must be positive, got %d", c.Pipeline.Workers))
	}

	return err
}

// WriteFile saves the configuration as YAML.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
