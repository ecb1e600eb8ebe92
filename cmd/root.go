package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/config"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
	"github.com/ThatCatDev/llamatools/internal/runner"
)

var (
	cfgPath   string
	binDir    string
	dryRun    bool
	logLevel  string
	logFormat string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "llamatools",
	Short: "llamatools — front-end for the llama.cpp command-line tools",
	Long: `llamatools builds command lines for llama-cli, llama-server, llama-quantize,
llama-perplexity and the convert_*_to_gguf.py scripts, runs them and streams
their output. Without a subcommand it opens the terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("bin-dir") {
			loaded.BinDir = binDir
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Log.Format = logFormat
		}
		cfg = loaded
		logger.Setup(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&binDir, "bin-dir", "", "llama.cpp build/bin directory")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print commands without running them")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "diagnostic log format (console, json)")
}

func exitError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}

// newController wires a Controller for cfg writing user-facing lines to sink.
func newController(sink logsink.Sink) *app.Controller {
	b := builder.New(afero.NewOsFs(), builder.ExecProber{Timeout: cfg.ProbeTimeout}, cfg.Python)
	r := runner.New()
	c := app.NewController(b, r, runner.NewServerSlot(r, cfg.Server.HealthTimeout), sink)
	c.DryRun = dryRun
	c.Terminal = cfg.Terminal
	return c
}

// cliController writes coloured lines to stdout.
func cliController() *app.Controller {
	return newController(logsink.NewWriter(os.Stdout))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// waitJob blocks until job ends and turns a failed run into an error. A nil
// job (dry run, terminal launch) succeeds immediately.
func waitJob(job *runner.Job) (runner.Result, error) {
	if job == nil {
		return runner.Result{}, nil
	}
	res := job.Wait()
	switch {
	case res.Cancelled:
		return res, errors.New("interrupted")
	case res.Err != nil:
		return res, res.Err
	case res.ExitCode != 0:
		return res, fmt.Errorf("%s exited with code %d", job.Tool.Title(), res.ExitCode)
	}
	return res, nil
}

// setString copies a flag into dst when the user set it explicitly.
func setString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func setBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}
