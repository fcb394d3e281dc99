package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"
	"unicode"

	"github.com/arbovm/levenshtein"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
	imgutil "github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
)

// Solution is the answer read from one CAPTCHA.
type Solution struct {
	Source string `json:"source"`

	// Text is the recognized answer with whitespace removed.
	Text string `json:"text"`

	// Confidence is the mean word confidence (0.0 to 1.0), 0 when no word
	// was recognized.
	Confidence float64 `json:"confidence"`

	// Palette holds the quantized colors when the chain quantizes.
	Palette []quantize.ClusterColor `json:"palette,omitempty"`

	// Expected, Distance and Match are only set when an expected answer is given.
	Expected string `json:"expected,omitempty"`
	Distance *int   `json:"distance,omitempty"`
	Match    *bool  `json:"match,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// Solve runs the chain on img and reads the answer. When expected is not
// empty the answer is scored against it with the Levenshtein distance; both
// sides are compared with whitespace removed.
func (c *Chain) Solve(ctx context.Context, source string, img image.Image, expected string) (*Solution, error) {
	start := time.Now()

	_, storage, err := c.Run(ctx, source, img)
	if err != nil {
		return nil, err
	}

	sol := &Solution{Source: source}
	if res, ok := Lookup[*ocr.OCRResult](storage, config.FilterTextRecognition); ok {
		sol.Text = normalize(res.FullText)
		sol.Confidence = meanConfidence(res.Regions)
	}
	if res, ok := Lookup[*QuantizeResult](storage, config.FilterQuantize); ok {
		sol.Palette = res.Palette
	}
	if expected != "" {
		sol.Expected = expected
		d := levenshtein.Distance(sol.Text, normalize(expected))
		match := d == 0
		sol.Distance = &d
		sol.Match = &match
	}
	sol.ElapsedMs = time.Since(start).Milliseconds()

	c.logger.Debug("captcha solved", "source", source, "text", sol.Text, "elapsed_ms", sol.ElapsedMs)
	return sol, nil
}

// SolveFile loads path and solves it.
func (c *Chain) SolveFile(ctx context.Context, path, expected string) (*Solution, error) {
	img, err := imgutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return c.Solve(ctx, path, img, expected)
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func meanConfidence(regions []ocr.TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions))
}
