package cmd

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/logsink"
	"github.com/ThatCatDev/llamatools/internal/perplexity"
	"github.com/ThatCatDev/llamatools/internal/runner"
)

var perplexityCmd = &cobra.Command{
	Use:   "perplexity",
	Short: "Evaluate model perplexity on a raw text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		form := app.PerplexityDefaults(cfg)
		setString(cmd, "model", &form.Model)
		setString(cmd, "raw-path", &form.RawPath)
		setString(cmd, "dataset", &form.Dataset)
		setString(cmd, "ctx-size", &form.CtxSize)
		setString(cmd, "batch-size", &form.Batch)
		setString(cmd, "chunks", &form.Chunks)
		setString(cmd, "threads", &form.Threads)

		ctx, stop := signalContext()
		defer stop()

		job, parser, err := cliController().Perplexity(ctx, form)
		if err != nil {
			return err
		}
		res, err := waitJob(job)
		if err != nil || job == nil {
			return err
		}
		report, err := perplexity.NewReport(form.Model, parser, res)
		if err != nil {
			return err
		}
		os.Stdout.WriteString("\n")
		report.Render(os.Stdout)
		return nil
	},
}

// appendReport renders the evaluation summary into sink once job ends.
func appendReport(sink logsink.Sink, model string, job *runner.Job, parser *perplexity.Parser) {
	res := job.Wait()
	if res.Cancelled {
		return
	}
	report, err := perplexity.NewReport(model, parser, res)
	if err != nil {
		sink.Append(logsink.PrefixWarning + err.Error())
		return
	}
	var buf bytes.Buffer
	report.Render(&buf)
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		sink.Append(line)
	}
}

func init() {
	perplexityCmd.Flags().StringP("model", "m", "", "GGUF model file or Hugging Face repo (org/name)")
	perplexityCmd.Flags().String("raw-path", "", "raw text file to evaluate on")
	perplexityCmd.Flags().String("dataset", "", "dataset identifier (not supported, export it to --raw-path)")
	perplexityCmd.Flags().String("ctx-size", "", "evaluation context size")
	perplexityCmd.Flags().String("batch-size", "", "batch size")
	perplexityCmd.Flags().String("chunks", "", "maximum chunks to evaluate")
	perplexityCmd.Flags().String("threads", "", "CPU threads")
	rootCmd.AddCommand(perplexityCmd)
}
