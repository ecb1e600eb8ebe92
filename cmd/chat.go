package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a model through llama-cli",
	Long: `Without --prompt the chat is interactive and opens in a terminal window.
With --prompt llama-cli answers once and its output streams here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		form := app.ChatDefaults(cfg)
		setString(cmd, "model", &form.Model)
		setString(cmd, "prompt", &form.Prompt)
		setString(cmd, "n-predict", &form.NPredict)
		setString(cmd, "ctx-size", &form.CtxSize)
		setString(cmd, "threads", &form.Threads)
		setString(cmd, "chat-template", &form.ChatTemplate)
		setBool(cmd, "color", &form.Color)
		form.Interactive = form.Prompt == ""

		ctx, stop := signalContext()
		defer stop()

		job, err := cliController().Chat(ctx, form)
		if err != nil {
			return err
		}
		_, err = waitJob(job)
		return err
	},
}

func init() {
	chatCmd.Flags().StringP("model", "m", "", "GGUF model file")
	chatCmd.Flags().StringP("prompt", "p", "", "answer this prompt once instead of chatting")
	chatCmd.Flags().StringP("n-predict", "n", "", "tokens to generate for --prompt")
	chatCmd.Flags().String("ctx-size", "", "context size")
	chatCmd.Flags().String("threads", "", "CPU threads")
	chatCmd.Flags().String("chat-template", "", "chat template name, used when llama-cli supports it")
	chatCmd.Flags().Bool("color", false, "coloured output, used when llama-cli supports it")
	rootCmd.AddCommand(chatCmd)
}
