package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/captcha-tools-mcp/internal/pipeline"
)

// solveReport is printed by the solve command.
type solveReport struct {
	Solutions []*pipeline.Solution `json:"solutions"`
	Scored    int                  `json:"scored,omitempty"`
	Matched   int                  `json:"matched,omitempty"`
	Accuracy  float64              `json:"accuracy,omitempty"` // matched/scored in percent
}

func (a *app) solveCmd() *cobra.Command {
	var (
		o      overrides
		expect []string
	)

	cmd := &cobra.Command{
		Use:   "solve INPUT...",
		Short: "Read the answer of CAPTCHA images",
		Long: `Run the solving chain on one or more images and print the answers as JSON.

With --expect, given once per INPUT in the same order, every answer is
scored with its edit distance and the report includes the accuracy.

Examples:
  captcha-mcp solve captcha.png
  captcha-mcp solve a.png b.png --expect 7K4P --expect QX2M --whitelist 0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ
  captcha-mcp solve --dump-dir /tmp/dump --timeit --log-level debug captcha.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(expect) > 0 && len(expect) != len(args) {
				return fmt.Errorf("got %d --expect values for %d inputs", len(expect), len(args))
			}

			cfg, err := o.Apply(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			chain, err := pipeline.NewChain(cfg, a.logger.Named("pipeline"))
			if err != nil {
				return err
			}

			report, err := solveAll(cmd.Context(), chain, args, expect, cfg.Pipeline.Workers)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringArrayVarP(&expect, "expect", "e", nil, "Expected answer, once per input")
	o.AddQuantizerFlags(cmd.Flags())
	o.AddSegmentFlags(cmd.Flags())
	o.AddOCRFlags(cmd.Flags())
	o.AddPipelineFlags(cmd.Flags())
	return cmd
}

// solveAll solves inputs with at most workers running at once.
func solveAll(ctx context.Context, chain *pipeline.Chain, inputs, expect []string, workers int) (*solveReport, error) {
	report := &solveReport{Solutions: make([]*pipeline.Solution, len(inputs))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, in := range inputs {
		g.Go(func() error {
			var want string
			if len(expect) > 0 {
				want = expect[i]
			}
			sol, err := chain.SolveFile(ctx, in, want)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			report.Solutions[i] = sol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, sol := range report.Solutions {
		if sol.Match == nil {
			continue
		}
		report.Scored++
		if *sol.Match {
			report.Matched++
		}
	}
	if report.Scored > 0 {
		report.Accuracy = 100 * float64(report.Matched) / float64(report.Scored)
	}
	return report, nil
}
