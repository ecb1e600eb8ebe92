package builder

import "strings"

// PerplexityForm is the form state for llama-perplexity.
type PerplexityForm struct {
	BinDir string
	// Model is a local GGUF file or a Hugging Face repo id ("org/name[:quant]").
	Model   string
	RawPath string
	Dataset string // dataset identifiers are rejected; see Perplexity
	CtxSize string
	Batch   string
	Chunks  string
	Threads string
}

// Perplexity builds a llama-perplexity invocation over a raw text file.
func (b *Builder) Perplexity(f PerplexityForm) (*Invocation, error) {
	exe, err := b.binary(f.BinDir, BinPerplexity)
	if err != nil {
		return nil, err
	}
	if f.Model == "" {
		return nil, configErr("model", "required")
	}
	if f.RawPath == "" {
		if f.Dataset != "" {
			return nil, configErr("dataset", "dataset identifiers are not supported, export %s to a raw text file", f.Dataset)
		}
		return nil, configErr("raw text", "required")
	}
	if err := b.requireFile("raw text", f.RawPath); err != nil {
		return nil, err
	}

	inv := newInvocation(ToolPerplexity, exe)
	switch {
	case b.exists(f.Model):
		if err := b.requireFile("model", f.Model); err != nil {
			return nil, configErr("model", "%s is a directory, convert it to GGUF first", f.Model)
		}
		inv.addFlag("-m", f.Model)
	case isRepoID(f.Model):
		inv.addFlag("-hf", f.Model)
		inv.notice("model " + f.Model + " will be fetched from Hugging Face")
	default:
		return nil, configErr("model", "%s does not exist", f.Model)
	}

	inv.addFlag("-f", f.RawPath)
	inv.addFlag("--ctx-size", f.CtxSize)
	inv.addFlag("-b", f.Batch)
	inv.addFlag("--chunks", f.Chunks)
	inv.addFlag("--threads", f.Threads)
	return inv, nil
}

// isRepoID reports whether s looks like "owner/name" with no path prefix.
func isRepoID(s string) bool {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, ".") || strings.HasPrefix(s, "~") {
		return false
	}
	parts := strings.Split(s, "/")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}
