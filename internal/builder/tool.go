package builder

import (
	"fmt"
	"strings"
)

// Tool identifies which external program an Invocation targets.
type Tool int

const (
	ToolChat Tool = iota
	ToolServer
	ToolQuantize
	ToolConvert
	ToolPerplexity
)

func (t Tool) String() string {
	switch t {
	case ToolChat:
		return "chat"
	case ToolServer:
		return "server"
	case ToolQuantize:
		return "quantize"
	case ToolConvert:
		return "convert"
	case ToolPerplexity:
		return "perplexity"
	default:
		return fmt.Sprintf("tool(%d)", int(t))
	}
}

// Title names the tool's work in status lines.
func (t Tool) Title() string {
	switch t {
	case ToolChat:
		return "Chat"
	case ToolServer:
		return "Server"
	case ToolQuantize:
		return "Quantization"
	case ToolConvert:
		return "Conversion"
	case ToolPerplexity:
		return "Perplexity evaluation"
	default:
		return t.String()
	}
}

// Binary names inside a llama.cpp build/bin directory.
const (
	BinCLI        = "llama-cli"
	BinServer     = "llama-server"
	BinQuantize   = "llama-quantize"
	BinPerplexity = "llama-perplexity"
)

// QuantType describes one llama-quantize target type.
type QuantType struct {
	Name        string
	Description string
}

// QuantTypes is the enumerated set offered at the UI boundary.
var QuantTypes = []QuantType{
	{"Q2_K", "2-bit K-quant, smallest, heavy quality loss"},
	{"Q3_K_S", "3-bit K-quant, small"},
	{"Q3_K_M", "3-bit K-quant, medium"},
	{"Q4_0", "4-bit legacy quant"},
	{"Q4_K_S", "4-bit K-quant, small"},
	{"Q4_K_M", "4-bit K-quant, medium (recommended)"},
	{"Q5_K_S", "5-bit K-quant, small"},
	{"Q5_K_M", "5-bit K-quant, medium"},
	{"Q6_K", "6-bit K-quant, near lossless"},
	{"Q8_0", "8-bit, practically lossless"},
	{"F16", "16-bit float, no quantization"},
}

// DefaultQuantType is preselected in forms.
const DefaultQuantType = "Q4_K_M"

// QuantTypeNames returns the names of QuantTypes in order.
func QuantTypeNames() []string {
	names := make([]string, len(QuantTypes))
	for i, q := range QuantTypes {
		names[i] = q.Name
	}
	return names
}

// ParseQuantType matches s case-insensitively against QuantTypes and returns
// the canonical name.
func ParseQuantType(s string) (string, error) {
	for _, q := range QuantTypes {
		if strings.EqualFold(q.Name, s) {
			return q.Name, nil
		}
	}
	return "", fmt.Errorf("unknown quant type %q (available: %s)", s, strings.Join(QuantTypeNames(), ", "))
}

// Conversion scripts shipped at the root of a llama.cpp checkout.
const (
	ScriptHF   = "convert_hf_to_gguf.py"
	ScriptGGML = "convert_llama_ggml_to_gguf.py"
	ScriptLoRA = "convert_lora_to_gguf.py"
)

var ConvertScripts = []string{ScriptHF, ScriptGGML, ScriptLoRA}

// OutTypes are the --outtype values accepted by the conversion scripts.
var OutTypes = []string{"f16", "bf16", "f32", "q8_0", "tq1_0", "tq2_0", "auto"}

// PresetOutType is the --outtype preselected when a script is chosen.
func PresetOutType(script string) string {
	switch script {
	case ScriptLoRA:
		return "q8_0"
	default:
		return "f16"
	}
}

// ScriptNotice is shown when a script is chosen.
func ScriptNotice(script string) string {
	switch script {
	case ScriptHF:
		return "Auto-filled: --outtype f16 (recommended for HF)"
	case ScriptGGML:
		return "LEGACY GGML → GGUF (use f16)"
	case ScriptLoRA:
		return "LoRA conversion requires base model GGUF!"
	default:
		return ""
	}
}
