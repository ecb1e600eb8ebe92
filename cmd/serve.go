package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run llama-server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		form := app.ServerDefaults(cfg)
		setString(cmd, "model", &form.Model)
		setString(cmd, "host", &form.Host)
		setString(cmd, "port", &form.Port)
		setString(cmd, "gpu-layers", &form.GPULayers)
		setString(cmd, "ctx-size", &form.CtxSize)
		setString(cmd, "threads", &form.Threads)
		setString(cmd, "chat-template", &form.ChatTemplate)

		ctx, stop := signalContext()
		defer stop()

		c := cliController()
		started, err := c.ToggleServer(ctx, form)
		if err != nil || !started {
			return err
		}
		job := c.Server().Job()
		if job == nil {
			return fmt.Errorf("server exited immediately")
		}

		select {
		case <-ctx.Done():
			if err := c.Server().Stop(); err != nil {
				return fmt.Errorf("stop server: %w", err)
			}
			return nil
		case <-job.Done():
			_, err := waitJob(job)
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringP("model", "m", "", "GGUF model file")
	serveCmd.Flags().String("host", "", "listen address")
	serveCmd.Flags().String("port", "", "listen port")
	serveCmd.Flags().String("gpu-layers", "", "layers to offload to the GPU")
	serveCmd.Flags().String("ctx-size", "", "context size")
	serveCmd.Flags().String("threads", "", "CPU threads")
	serveCmd.Flags().String("chat-template", "", "chat template name, used when llama-server supports it")
	rootCmd.AddCommand(serveCmd)
}
