package builder

import (
	"path/filepath"
	"strings"
)

// ConvertForm is the form state for the convert_*_to_gguf.py scripts.
type ConvertForm struct {
	LlamaDir string
	Script   string
	Input    string
	Output   string
	OutType  string
	Base     string // base model, LoRA only
	Extra    string // whitespace-separated extra arguments
}

// Convert builds "python <script> <input> --outfile .. --outtype .. [--base ..] extra...".
func (b *Builder) Convert(f ConvertForm) (*Invocation, error) {
	if err := b.requireDir("llama.cpp dir", f.LlamaDir); err != nil {
		return nil, err
	}
	script := filepath.Join(f.LlamaDir, f.Script)
	if f.Script == "" || !b.exists(script) {
		return nil, configErr("script", "script not found: %s", script)
	}
	if f.Input == "" {
		return nil, configErr("input", "required")
	}
	if !b.exists(f.Input) {
		return nil, configErr("input", "%s does not exist", f.Input)
	}

	inv := newInvocation(ToolConvert, b.python)
	inv.WorkDir = f.LlamaDir
	inv.addPositional(script, f.Input)
	inv.addFlag("--outfile", f.Output)
	inv.addFlag("--outtype", f.OutType)

	if f.Script == ScriptLoRA {
		if f.Base == "" {
			return nil, configErr("base model", "base model required for LoRA conversion")
		}
		if !b.exists(f.Base) {
			return nil, configErr("base model", "%s does not exist", f.Base)
		}
		inv.addFlag("--base", f.Base)
	}

	inv.Extra = strings.Fields(f.Extra)
	return inv, nil
}
