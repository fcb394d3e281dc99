package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/server"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", server.ServerName, a.build.Version)
			fmt.Fprintf(out, "  Build time: %s\n", a.build.BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", a.build.GitCommit)

			info := ocr.GetInfo()
			fmt.Fprintf(out, "  OCR backend: %s %s\n", info.Backend, info.Version)
			return nil
		},
	}
}
