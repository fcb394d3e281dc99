// Package cli provides the captcha-mcp commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
)

// LogLevelEnv names the environment variable read when --log-level is not given.
const LogLevelEnv = "CAPTCHA_MCP_LOG_LEVEL"

// BuildInfo is set by ldflags in main.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// app is the state shared by all commands, filled in before any command runs.
type app struct {
	build BuildInfo

	configPath string
	logLevel   string
	logJSON    bool

	cfg    *config.Config
	logger hclog.Logger
}

// NewRootCmd returns the captcha-mcp command tree. Without a subcommand it
// serves MCP over stdio.
func NewRootCmd(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	cmd := &cobra.Command{
		Use:   "captcha-mcp",
		Short: "MCP server and tools for solving text CAPTCHAs",
		Long: `MCP server and command line tools for solving text CAPTCHAs.

The solving chain reduces the image palette with seeded k-means
quantization, upscales the result and reads the text with Tesseract.

Run without a subcommand to serve MCP over stdin/stdout; configure it
in your MCP client (e.g., Claude Desktop).

Examples:
  # Serve MCP with a configuration file
  captcha-mcp --config ~/.config/captcha-mcp/config.yaml

  # Quantize a batch of images into out/
  captcha-mcp quantize -o out/ samples/*.png

  # Solve and score against the known answers
  captcha-mcp solve a.png b.png --expect 7K4P --expect QX2M`,
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML or JSON configuration file")
	fs.StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off (default from "+LogLevelEnv+" or info)")
	fs.BoolVar(&a.logJSON, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(
		a.serveCmd(),
		a.quantizeCmd(),
		a.solveCmd(),
		a.versionCmd(),
	)
	return cmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(build BuildInfo) int {
	if err := NewRootCmd(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// init loads the configuration and builds the root logger. Logs always go to
// errOut since stdout carries the MCP protocol and command output.
func (a *app) init(errOut io.Writer) error {
	logger, err := newLogger(a.logLevel, a.logJSON, errOut)
	if err != nil {
		return err
	}
	a.logger = logger

	if a.configPath == "" {
		a.cfg = config.Default()
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger.Debug("configuration loaded", "path", a.configPath)
	return nil
}

func newLogger(level string, json bool, w io.Writer) (hclog.Logger, error) {
	if level == "" {
		level = os.Getenv(LogLevelEnv)
	}
	if level == "" {
		level = "info"
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "captcha-mcp",
		Output:     w,
		Level:      lvl,
		JSONFormat: json,
	}), nil
}
