package terminal

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/de-tools/kmp-audit/pkg/runtime/terminal/commands"
	"github.com/de-tools/kmp-audit/pkg/runtime/terminal/export"
	"github.com/de-tools/kmp-audit/pkg/services/config"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	session *commands.Session
	errOut  io.Writer
	rootCmd *cobra.Command

	configPath  string
	logLevel    string
	verbose     bool
	concurrency int
	progress    bool
}

// Options contain configuration for the CLI
type Options struct {
	Output    io.Writer
	ErrOutput io.Writer
	// Gatherer overrides the gatherers built from the configuration.
	Gatherer gather.Gatherer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}

	cli := &CLI{
		session: &commands.Session{
			Output:   opts.Output,
			Gatherer: opts.Gatherer,
		},
		errOut: opts.ErrOutput,
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.ExecuteContext(context.Background())
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs is used by tests and embedding programs.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "kmp-audit",
		Short:             "Kernel module package conformance audit",
		SilenceUsage:      true,
		PersistentPreRunE: cli.setup,
	}
	cmd.SetOut(cli.session.Output)
	cmd.SetErr(cli.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "", "Path to the configuration file")
	flags.StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&cli.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&cli.session.Format, "format", "f", export.FormatText, "Output format (text, json)")
	flags.IntVar(&cli.concurrency, "concurrency", 0, "Number of targets gathered in parallel (default from configuration)")
	flags.StringVar(&cli.session.StorePath, "store", "", "Record the run in this DuckDB database")
	flags.StringVar(&cli.session.FailOn, "fail-on", "error", "Exit with an error when an outcome reaches this severity (warning, error)")
	flags.StringVar(&cli.session.HostsFile, "hosts", "", "Path to the INI host inventory")
	flags.BoolVar(&cli.progress, "progress", false, "Print every outcome to stderr as soon as it is known")

	cmd.AddCommand(commands.NewPackageCmd(cli.session))
	cmd.AddCommand(commands.NewRemoteCmd(cli.session))
	cmd.AddCommand(commands.NewLiveCmd(cli.session))

	return cmd
}

func (cli *CLI) setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.LoadSettings(cli.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		settings.Batch.Concurrency = cli.concurrency
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	cli.session.Settings = settings

	level := settings.Log.Level
	if cli.logLevel != "" {
		level = cli.logLevel
	}
	if cli.verbose {
		level = "debug"
	}
	logger := NewLogger(cli.errOut, level)

	if cli.progress {
		progress, err := NewProgressReporter(cli.errOut)
		if err != nil {
			return err
		}
		cli.session.Progress = progress.Handle
	}

	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}

// NewLogger builds the console logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
