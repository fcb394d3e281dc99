package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
)

// quantized is the outcome for one input of the quantize command.
type quantized struct {
	input  string
	output string
	before int
	after  int
	iters  int
	conv   bool
}

func (a *app) quantizeCmd() *cobra.Command {
	var (
		o      overrides
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "quantize INPUT...",
		Short: "Reduce the palette of images",
		Long: `Reduce the palette of one or more images with seeded k-means.

Each INPUT is written as PNG to the output directory under its own base
name. Images are processed concurrently, see --workers.

Examples:
  captcha-mcp quantize -o out/ samples/*.png
  captcha-mcp quantize -o out/ --colorspace RGB --threshold2 10 a.webp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.Apply(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			q, err := quantize.New(cfg.Quantizer, quantize.WithLogger(a.logger.Named("quantize")))
			if err != nil {
				return err
			}

			results, err := quantizeAll(cmd.Context(), q, args, outDir, cfg.Pipeline.Workers)
			for _, r := range results {
				if r.output == "" {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d colors -> %d (%d iterations, converged=%t)\n",
					r.input, r.output, r.before, r.after, r.iters, r.conv)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory")
	_ = cmd.MarkFlagRequired("output")
	o.AddQuantizerFlags(cmd.Flags())
	cmd.Flags().IntVarP(&o.workers, "workers", "j", 0, "Images processed concurrently")
	return cmd
}

// quantizeAll quantizes inputs with at most workers running at once. Results
// keep the order of inputs; entries of failed inputs are left empty.
func quantizeAll(ctx context.Context, q *quantize.Quantizer, inputs []string, outDir string, workers int) ([]quantized, error) {
	results := make([]quantized, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := imaging.Open(in)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			res, err := q.Quantize(imaging.ToRGB(img))
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}

			out := filepath.Join(outDir, pngName(in))
			if err := imaging.Save(res.Image, out); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			results[i] = quantized{
				input:  in,
				output: out,
				before: len(res.Histogram.Samples),
				after:  len(res.Clusters),
				iters:  res.Iterations,
				conv:   res.Converged,
			}
			return nil
		})
	}
	return results, g.Wait()
}

// pngName replaces the extension of path's base name with .png.
func pngName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}
