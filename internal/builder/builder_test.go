package builder

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProber returns canned help text and counts calls.
type stubProber struct {
	help  string
	err   error
	calls int
}

func (p *stubProber) Help(ctx context.Context, exe string) (string, error) {
	p.calls++
	return p.help, p.err
}

const fullHelp = `usage: llama-cli [options]
  -m,    --model FNAME
  -c,    --ctx-size N
  -t,    --threads N
  --chat-template JINJA_TEMPLATE
  -i,    --interactive
  --interactive-first
  -no-cnv, --no-conversation
  --color`

func binName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func newFS(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0755))
	}
	return fs
}

func llamaFS(t *testing.T) afero.Fs {
	return newFS(t,
		filepath.Join("/opt/llama", binName(BinCLI)),
		filepath.Join("/opt/llama", binName(BinServer)),
		filepath.Join("/opt/llama", binName(BinQuantize)),
		filepath.Join("/opt/llama", binName(BinPerplexity)),
		"/models/tiny.gguf",
		"model.gguf",
		"/data/wiki.test.raw",
	)
}

func requireConfigError(t *testing.T, err error, field string) {
	t.Helper()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %v", err)
	assert.Equal(t, field, cfgErr.Field)
}

// positionalsFirst checks that the argument vector opens with every
// positional argument and that no flag name appears among them.
func positionalsFirst(t *testing.T, inv *Invocation) {
	t.Helper()
	args := inv.Args()
	require.GreaterOrEqual(t, len(args), len(inv.Positional))
	assert.Equal(t, inv.Positional, args[:len(inv.Positional)])
	for _, f := range inv.Flags {
		assert.NotContains(t, args[:len(inv.Positional)], f.Name)
	}
}

func TestQuantizeExample(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")
	inv, err := b.Quantize(QuantizeForm{BinDir: "/opt/llama", Input: "model.gguf", Type: "Q4_K_M"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/opt/llama", binName("llama-quantize")),
		"model.gguf", "model-Q4_K_M.gguf", "Q4_K_M",
	}, inv.Argv())
	assert.Equal(t, ToolQuantize, inv.Tool)
	assert.NotEmpty(t, inv.ID)
}

func TestQuantizeExplicitOutputAndThreads(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")
	inv, err := b.Quantize(QuantizeForm{
		BinDir: "/opt/llama", Input: "/models/tiny.gguf", Output: "/tmp/out.gguf", Type: "Q8_0", Threads: "4",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/models/tiny.gguf", "/tmp/out.gguf", "Q8_0", "4"}, inv.Args())
}

func TestQuantizedName(t *testing.T) {
	assert.Equal(t, "model-Q4_K_M.gguf", QuantizedName("model.gguf", "Q4_K_M"))
	assert.Equal(t, "/m/Model-Q8_0.gguf", QuantizedName("/m/Model.GGUF", "Q8_0"))
	assert.Equal(t, "/m/weights.gguf.d/x-F16.gguf", QuantizedName("/m/weights.gguf.d/x", "F16"))
}

func TestQuantizeConfigErrors(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")

	_, err := b.Quantize(QuantizeForm{Input: "model.gguf", Type: "Q4_K_M"})
	requireConfigError(t, err, "bin dir")

	_, err = b.Quantize(QuantizeForm{BinDir: "/nowhere", Input: "model.gguf", Type: "Q4_K_M"})
	requireConfigError(t, err, "bin dir")

	_, err = b.Quantize(QuantizeForm{BinDir: "/opt/llama", Type: "Q4_K_M"})
	requireConfigError(t, err, "input")

	_, err = b.Quantize(QuantizeForm{BinDir: "/opt/llama", Input: "missing.gguf", Type: "Q4_K_M"})
	requireConfigError(t, err, "input")

	_, err = b.Quantize(QuantizeForm{BinDir: "/opt/llama", Input: "model.gguf"})
	requireConfigError(t, err, "quant type")
}

func TestChatGatedFlagsPresentWhenAdvertised(t *testing.T) {
	p := &stubProber{help: fullHelp}
	b := New(llamaFS(t), p, "")

	inv, err := b.Chat(context.Background(), ChatForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", ChatTemplate: "chatml",
		CtxSize: "2048", Threads: "2", Interactive: true, Color: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls, "probe runs once per build")

	assert.Equal(t, []string{
		"-m", "/models/tiny.gguf",
		"--ctx-size", "2048",
		"--threads", "2",
		"--chat-template", "chatml",
		"--interactive-first",
		"--color",
	}, inv.Args())
	assert.False(t, inv.HasFlag("--interactive"))
	assert.Contains(t, inv.Notices, "chat-template enabled")
	assert.Contains(t, inv.Notices, "interactive-first enabled")
}

func TestChatGatedFlagsAbsentWhenNotAdvertised(t *testing.T) {
	p := &stubProber{help: "usage: llama-cli -m FNAME --ctx-size N --threads N"}
	b := New(llamaFS(t), p, "")

	inv, err := b.Chat(context.Background(), ChatForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", ChatTemplate: "chatml", Interactive: true, Color: true,
	})
	require.NoError(t, err)
	assert.False(t, inv.HasFlag("--chat-template"))
	assert.False(t, inv.HasFlag("--interactive-first"))
	assert.False(t, inv.HasFlag("--interactive"))
	assert.False(t, inv.HasFlag("--color"))
	assert.Empty(t, inv.Notices)
}

func TestChatInteractiveFallback(t *testing.T) {
	p := &stubProber{help: "  -i, --interactive   run in interactive mode"}
	b := New(llamaFS(t), p, "")

	inv, err := b.Chat(context.Background(), ChatForm{BinDir: "/opt/llama", Model: "/models/tiny.gguf", Interactive: true})
	require.NoError(t, err)
	assert.True(t, inv.HasFlag("--interactive"))
	assert.False(t, inv.HasFlag("--interactive-first"))
}

func TestChatProbeFailureDisablesGatedFlags(t *testing.T) {
	p := &stubProber{help: fullHelp, err: errors.New("exit status 1")}
	b := New(llamaFS(t), p, "")

	inv, err := b.Chat(context.Background(), ChatForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", ChatTemplate: "chatml", Interactive: true,
	})
	require.NoError(t, err)
	assert.False(t, inv.HasFlag("--chat-template"))
	assert.False(t, inv.HasFlag("--interactive-first"))
}

func TestChatProbesEveryBuild(t *testing.T) {
	p := &stubProber{help: fullHelp}
	b := New(llamaFS(t), p, "")
	form := ChatForm{BinDir: "/opt/llama", Model: "/models/tiny.gguf", Interactive: true}

	_, err := b.Chat(context.Background(), form)
	require.NoError(t, err)
	p.help = ""
	inv, err := b.Chat(context.Background(), form)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls)
	assert.False(t, inv.HasFlag("--interactive-first"), "second build must see the new help text")
}

func TestChatOmitsEmptyFields(t *testing.T) {
	b := New(llamaFS(t), &stubProber{help: fullHelp}, "")

	inv, err := b.Chat(context.Background(), ChatForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", CtxSize: "", Threads: "  ", Interactive: true,
	})
	require.NoError(t, err)
	assert.False(t, inv.HasFlag("--ctx-size"))
	assert.False(t, inv.HasFlag("--threads"))
	assert.False(t, inv.HasFlag("--chat-template"), "empty template is never passed even if supported")
	for _, a := range inv.Args() {
		assert.NotEmpty(t, strings.TrimSpace(a))
	}
}

func TestChatBatch(t *testing.T) {
	b := New(llamaFS(t), &stubProber{help: fullHelp}, "")

	inv, err := b.Chat(context.Background(), ChatForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", Prompt: "Hello there", NPredict: "64",
	})
	require.NoError(t, err)
	v, ok := inv.FlagValue("-p")
	require.True(t, ok)
	assert.Equal(t, "Hello there", v)
	assert.True(t, inv.HasFlag("-n"))
	assert.True(t, inv.HasFlag("-no-cnv"))
	assert.False(t, inv.HasFlag("--interactive-first"))

	_, err = b.Chat(context.Background(), ChatForm{BinDir: "/opt/llama", Model: "/models/tiny.gguf"})
	requireConfigError(t, err, "prompt")
}

func TestChatMissingModel(t *testing.T) {
	p := &stubProber{help: fullHelp}
	b := New(llamaFS(t), p, "")

	_, err := b.Chat(context.Background(), ChatForm{BinDir: "/opt/llama", Interactive: true})
	requireConfigError(t, err, "model")

	_, err = b.Chat(context.Background(), ChatForm{BinDir: "/opt/llama", Model: "/models/none.gguf", Interactive: true})
	requireConfigError(t, err, "model")
	assert.Zero(t, p.calls, "nothing is probed once validation fails")
}

func TestServer(t *testing.T) {
	b := New(llamaFS(t), &stubProber{help: "--chat-template"}, "")

	inv, err := b.Server(context.Background(), ServerForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", ChatTemplate: "chatml",
		CtxSize: "4096", Host: "127.0.0.1", Port: "8080", GPULayers: "99",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/llama", binName("llama-server")), inv.Binary)
	assert.Equal(t, []string{
		"-m", "/models/tiny.gguf",
		"--ctx-size", "4096",
		"--host", "127.0.0.1",
		"--port", "8080",
		"--n-gpu-layers", "99",
		"--chat-template", "chatml",
	}, inv.Args())
	assert.Equal(t, ToolServer, inv.Tool)
}

func convertFS(t *testing.T) afero.Fs {
	fs := newFS(t,
		"/src/llama.cpp/"+ScriptHF,
		"/src/llama.cpp/"+ScriptLoRA,
		"/models/base.gguf",
	)
	require.NoError(t, fs.MkdirAll("/models/qwen-hf", 0755))
	require.NoError(t, fs.MkdirAll("/models/lora-adapter", 0755))
	return fs
}

func TestConvertHF(t *testing.T) {
	b := New(convertFS(t), &stubProber{}, "")

	inv, err := b.Convert(ConvertForm{
		LlamaDir: "/src/llama.cpp", Script: ScriptHF, Input: "/models/qwen-hf",
		Output: "/models/qwen-f16.gguf", OutType: PresetOutType(ScriptHF), Extra: "  --verbose   --use-temp-file ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"python3", "/src/llama.cpp/" + ScriptHF, "/models/qwen-hf",
		"--outfile", "/models/qwen-f16.gguf",
		"--outtype", "f16",
		"--verbose", "--use-temp-file",
	}, inv.Argv())
	assert.Equal(t, "/src/llama.cpp", inv.WorkDir)
	positionalsFirst(t, inv)
}

func TestConvertLoRARequiresBase(t *testing.T) {
	b := New(convertFS(t), &stubProber{}, "python3.11")
	form := ConvertForm{LlamaDir: "/src/llama.cpp", Script: ScriptLoRA, Input: "/models/lora-adapter", OutType: "q8_0"}

	_, err := b.Convert(form)
	requireConfigError(t, err, "base model")

	form.Base = "/models/base.gguf"
	inv, err := b.Convert(form)
	require.NoError(t, err)
	assert.Equal(t, "python3.11", inv.Binary)
	v, ok := inv.FlagValue("--base")
	require.True(t, ok)
	assert.Equal(t, "/models/base.gguf", v)
	assert.False(t, inv.HasFlag("--outfile"))
}

func TestConvertConfigErrors(t *testing.T) {
	b := New(convertFS(t), &stubProber{}, "")

	_, err := b.Convert(ConvertForm{Script: ScriptHF, Input: "/models/qwen-hf"})
	requireConfigError(t, err, "llama.cpp dir")

	_, err = b.Convert(ConvertForm{LlamaDir: "/src/llama.cpp", Script: ScriptGGML, Input: "/models/qwen-hf"})
	requireConfigError(t, err, "script")

	_, err = b.Convert(ConvertForm{LlamaDir: "/src/llama.cpp", Script: ScriptHF})
	requireConfigError(t, err, "input")
}

func TestPresets(t *testing.T) {
	assert.Equal(t, "f16", PresetOutType(ScriptHF))
	assert.Equal(t, "f16", PresetOutType(ScriptGGML))
	assert.Equal(t, "q8_0", PresetOutType(ScriptLoRA))
	assert.Contains(t, ScriptNotice(ScriptLoRA), "base model")
}

func TestPerplexity(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")

	inv, err := b.Perplexity(PerplexityForm{
		BinDir: "/opt/llama", Model: "/models/tiny.gguf", RawPath: "/data/wiki.test.raw",
		CtxSize: "512", Batch: "", Chunks: "32",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-m", "/models/tiny.gguf",
		"-f", "/data/wiki.test.raw",
		"--ctx-size", "512",
		"--chunks", "32",
	}, inv.Args())
}

func TestPerplexityRepoID(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")

	inv, err := b.Perplexity(PerplexityForm{
		BinDir: "/opt/llama", Model: "ggml-org/gemma-3-1b-it-GGUF", RawPath: "/data/wiki.test.raw",
	})
	require.NoError(t, err)
	v, ok := inv.FlagValue("-hf")
	require.True(t, ok)
	assert.Equal(t, "ggml-org/gemma-3-1b-it-GGUF", v)
	assert.False(t, inv.HasFlag("-m"))
}

func TestPerplexityConfigErrors(t *testing.T) {
	b := New(llamaFS(t), &stubProber{}, "")
	base := PerplexityForm{BinDir: "/opt/llama", Model: "/models/tiny.gguf"}

	f := base
	f.Dataset = "allenai/tulu-3-sft-mixture"
	_, err := b.Perplexity(f)
	requireConfigError(t, err, "dataset")

	_, err = b.Perplexity(base)
	requireConfigError(t, err, "raw text")

	f = base
	f.RawPath = "/data/wiki.test.raw"
	f.Model = "/models/absent.gguf"
	_, err = b.Perplexity(f)
	requireConfigError(t, err, "model")
}

func TestParseQuantType(t *testing.T) {
	got, err := ParseQuantType("q4_k_m")
	require.NoError(t, err)
	assert.Equal(t, "Q4_K_M", got)

	_, err = ParseQuantType("Q9_Z")
	require.Error(t, err)
	assert.Contains(t, QuantTypeNames(), DefaultQuantType)
}

func TestInvocationString(t *testing.T) {
	inv := &Invocation{
		Binary:     "/opt/llama/llama-cli",
		Positional: []string{"my model.gguf"},
		Flags:      []Flag{{Name: "-p", Value: "it's"}, {Name: "--color", Switch: true}},
	}
	assert.Equal(t, `/opt/llama/llama-cli 'my model.gguf' -p 'it'\''s' --color`, inv.String())
	assert.Equal(t, "''", ShellQuote(""))
	assert.Equal(t, "Q4_K_M", ShellQuote("Q4_K_M"))
}

func TestToolString(t *testing.T) {
	assert.Equal(t, "quantize", ToolQuantize.String())
	assert.Equal(t, "tool(42)", Tool(42).String())
}
