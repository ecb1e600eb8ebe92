package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/builder"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a model to GGUF with the llama.cpp python scripts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form := app.ConvertDefaults(cfg)
		form.Input = args[0]
		setString(cmd, "llama-dir", &form.LlamaDir)
		if cmd.Flags().Changed("script") {
			form.Script, _ = cmd.Flags().GetString("script")
			if !slices.Contains(builder.ConvertScripts, form.Script) {
				return fmt.Errorf("unknown script %q (available: %v)", form.Script, builder.ConvertScripts)
			}
			form.OutType = builder.PresetOutType(form.Script)
		}
		setString(cmd, "outfile", &form.Output)
		if cmd.Flags().Changed("outtype") {
			form.OutType, _ = cmd.Flags().GetString("outtype")
			if !slices.Contains(builder.OutTypes, form.OutType) {
				return fmt.Errorf("unknown outtype %q (available: %v)", form.OutType, builder.OutTypes)
			}
		}
		setString(cmd, "base", &form.Base)
		setString(cmd, "extra", &form.Extra)

		if notice := builder.ScriptNotice(form.Script); notice != "" {
			fmt.Fprintln(os.Stderr, notice)
		}

		ctx, stop := signalContext()
		defer stop()

		job, err := cliController().Convert(ctx, form)
		if err != nil {
			return err
		}
		_, err = waitJob(job)
		return err
	},
}

func init() {
	convertCmd.Flags().String("llama-dir", "", "llama.cpp checkout with the conversion scripts")
	convertCmd.Flags().String("script", builder.ScriptHF, "conversion script")
	convertCmd.Flags().StringP("outfile", "o", "", "output file or directory")
	convertCmd.Flags().String("outtype", "", "output type (default depends on --script)")
	convertCmd.Flags().String("base", "", "base model, required for LoRA conversion")
	convertCmd.Flags().String("extra", "", "extra arguments passed to the script")
	convertCmd.RegisterFlagCompletionFunc("script", cobra.FixedCompletions(builder.ConvertScripts, cobra.ShellCompDirectiveNoFileComp))
	convertCmd.RegisterFlagCompletionFunc("outtype", cobra.FixedCompletions(builder.OutTypes, cobra.ShellCompDirectiveNoFileComp))
	rootCmd.AddCommand(convertCmd)
}
