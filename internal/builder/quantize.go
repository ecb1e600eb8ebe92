package builder

import "strings"

// QuantizeForm is the form state for llama-quantize.
type QuantizeForm struct {
	BinDir  string
	Input   string
	Output  string // empty = derived from Input and Type
	Type    string
	Threads string
}

// Quantize builds "llama-quantize <input> <output> <type> [threads]".
func (b *Builder) Quantize(f QuantizeForm) (*Invocation, error) {
	exe, err := b.binary(f.BinDir, BinQuantize)
	if err != nil {
		return nil, err
	}
	if err := b.requireFile("input", f.Input); err != nil {
		return nil, err
	}
	if f.Type == "" {
		return nil, configErr("quant type", "select a quant type")
	}

	out := f.Output
	if out == "" {
		out = QuantizedName(f.Input, f.Type)
	}

	inv := newInvocation(ToolQuantize, exe)
	inv.addPositional(f.Input, out, f.Type, f.Threads)
	return inv, nil
}

// QuantizedName derives the output file name: "model.gguf" + Q4_K_M →
// "model-Q4_K_M.gguf".
func QuantizedName(input, qtype string) string {
	const ext = ".gguf"
	if strings.HasSuffix(strings.ToLower(input), ext) {
		input = input[:len(input)-len(ext)]
	}
	return input + "-" + qtype + ext
}
