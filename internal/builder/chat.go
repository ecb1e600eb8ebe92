package builder

import "context"

// ChatForm is the form state for llama-cli.
type ChatForm struct {
	BinDir       string
	Model        string
	ChatTemplate string
	CtxSize      string
	Threads      string
	Color        bool

	// Interactive sessions run in a terminal window. Batch sessions answer
	// Prompt once and stream the output into the log.
	Interactive bool
	Prompt      string
	NPredict    string
}

// Chat builds a llama-cli invocation. Capability-gated flags are decided by
// probing "llama-cli --help" right now.
func (b *Builder) Chat(ctx context.Context, f ChatForm) (*Invocation, error) {
	exe, err := b.binary(f.BinDir, BinCLI)
	if err != nil {
		return nil, err
	}
	if err := b.requireFile("model", f.Model); err != nil {
		return nil, err
	}
	if !f.Interactive && f.Prompt == "" {
		return nil, configErr("prompt", "required for a batch chat")
	}

	inv := newInvocation(ToolChat, exe)
	inv.addFlag("-m", f.Model)
	inv.addFlag("--ctx-size", f.CtxSize)
	inv.addFlag("--threads", f.Threads)

	help := b.probe(ctx, exe)

	if f.ChatTemplate != "" && Supports(help, "--chat-template") {
		inv.addFlag("--chat-template", f.ChatTemplate)
		inv.notice("chat-template enabled")
	}

	if f.Interactive {
		switch {
		case Supports(help, "--interactive-first"):
			inv.addSwitch("--interactive-first")
			inv.notice("interactive-first enabled")
		case Supports(help, "--interactive"):
			inv.addSwitch("--interactive")
			inv.notice("interactive enabled")
		}
	} else {
		inv.addFlag("-p", f.Prompt)
		inv.addFlag("-n", f.NPredict)
		// Newer llama-cli builds default to conversation mode and would wait on stdin.
		if Supports(help, "-no-cnv") {
			inv.addSwitch("-no-cnv")
		}
	}

	if f.Color && Supports(help, "--color") {
		inv.addSwitch("--color")
		inv.notice("color enabled")
	}

	return inv, nil
}

// ServerForm is the form state for llama-server.
type ServerForm struct {
	BinDir       string
	Model        string
	ChatTemplate string
	CtxSize      string
	Threads      string
	Host         string
	Port         string
	GPULayers    string
}

// Server builds a llama-server invocation.
func (b *Builder) Server(ctx context.Context, f ServerForm) (*Invocation, error) {
	exe, err := b.binary(f.BinDir, BinServer)
	if err != nil {
		return nil, err
	}
	if err := b.requireFile("model", f.Model); err != nil {
		return nil, err
	}

	inv := newInvocation(ToolServer, exe)
	inv.addFlag("-m", f.Model)
	inv.addFlag("--ctx-size", f.CtxSize)
	inv.addFlag("--threads", f.Threads)
	inv.addFlag("--host", f.Host)
	inv.addFlag("--port", f.Port)
	inv.addFlag("--n-gpu-layers", f.GPULayers)

	if f.ChatTemplate != "" && Supports(b.probe(ctx, exe), "--chat-template") {
		inv.addFlag("--chat-template", f.ChatTemplate)
		inv.notice("chat-template enabled")
	}

	return inv, nil
}
