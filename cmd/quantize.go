package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/builder"
)

var quantizeCmd = &cobra.Command{
	Use:   "quantize <input.gguf> [output.gguf]",
	Short: "Quantize a GGUF model with llama-quantize",
	Long: `Quantize a GGUF model. When no output is given it is derived from the
input, e.g. model.gguf with Q4_K_M becomes model-Q4_K_M.gguf.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		form := app.QuantizeDefaults(cfg)
		form.Input = args[0]
		if len(args) > 1 {
			form.Output = args[1]
		}
		if cmd.Flags().Changed("type") {
			qtype, _ := cmd.Flags().GetString("type")
			canonical, err := builder.ParseQuantType(qtype)
			if err != nil {
				return err
			}
			form.Type = canonical
		}
		setString(cmd, "threads", &form.Threads)

		ctx, stop := signalContext()
		defer stop()

		job, err := cliController().Quantize(ctx, form)
		if err != nil {
			return err
		}
		_, err = waitJob(job)
		return err
	},
}

func completeQuantTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, q := range builder.QuantTypes {
		if strings.HasPrefix(strings.ToUpper(q.Name), strings.ToUpper(toComplete)) {
			out = append(out, q.Name+"\t"+q.Description)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	quantizeCmd.Flags().StringP("type", "t", "", "quant type (see quant-types)")
	quantizeCmd.Flags().String("threads", "", "CPU threads")
	quantizeCmd.RegisterFlagCompletionFunc("type", completeQuantTypes)
	rootCmd.AddCommand(quantizeCmd)
}
