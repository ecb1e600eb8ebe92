package cmd

import (
	"context"
	"slices"

	"github.com/rivo/tview"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logsink"
)

func newToolForm(title string) *tview.Form {
	f := tview.NewForm()
	f.SetBorder(true).SetTitle(" " + title + " ")
	f.SetButtonsAlign(tview.AlignLeft)
	return f
}

func textField(f *tview.Form, label, value string) *tview.InputField {
	field := tview.NewInputField().
		SetLabel(label).
		SetText(value).
		SetFieldWidth(0)
	f.AddFormItem(field)
	return field
}

// pathField is a text field with filesystem completion.
func pathField(f *tview.Form, label, value string) *tview.InputField {
	field := textField(f, label, value)
	field.SetAutocompleteFunc(completePath)
	field.SetAutocompletedFunc(func(text string, index, source int) bool {
		if source != tview.AutocompletedNavigate {
			field.SetText(text)
		}
		return source == tview.AutocompletedEnter || source == tview.AutocompletedClick
	})
	return field
}

func checkbox(f *tview.Form, label string, checked bool) *tview.Checkbox {
	box := tview.NewCheckbox().SetLabel(label).SetChecked(checked)
	f.AddFormItem(box)
	return box
}

func dropDown(f *tview.Form, label string, options []string, selected string) *tview.DropDown {
	dd := tview.NewDropDown().SetLabel(label).SetOptions(options, nil)
	if i := slices.Index(options, selected); i >= 0 {
		dd.SetCurrentOption(i)
	}
	f.AddFormItem(dd)
	return dd
}

func option(dd *tview.DropDown) string {
	_, text := dd.GetCurrentOption()
	return text
}

func (t *tuiApp) chatForm() *tview.Form {
	d := app.ChatDefaults(cfg)
	f := newToolForm("llama-cli")
	binDir := pathField(f, "Bin dir", d.BinDir)
	model := pathField(f, "Model", d.Model)
	tmpl := textField(f, "Chat template", d.ChatTemplate)
	ctxSize := textField(f, "Context size", d.CtxSize)
	threads := textField(f, "Threads", d.Threads)
	color := checkbox(f, "Color", d.Color)
	interactive := checkbox(f, "Interactive (terminal)", d.Interactive)
	prompt := textField(f, "Prompt (batch)", d.Prompt)
	nPredict := textField(f, "Tokens (batch)", d.NPredict)

	read := func() builder.ChatForm {
		return builder.ChatForm{
			BinDir:       binDir.GetText(),
			Model:        model.GetText(),
			ChatTemplate: tmpl.GetText(),
			CtxSize:      ctxSize.GetText(),
			Threads:      threads.GetText(),
			Color:        color.IsChecked(),
			Interactive:  interactive.IsChecked(),
			Prompt:       prompt.GetText(),
			NPredict:     nPredict.GetText(),
		}
	}

	f.AddButton("Preview", func() {
		form := read()
		t.showPreview(func(ctx context.Context) (*builder.Invocation, error) {
			return t.ctrl.Builder().Chat(ctx, form)
		})
	})
	f.AddButton("Launch", func() {
		form := read()
		t.do(func(ctx context.Context) error {
			_, err := t.ctrl.Chat(ctx, form)
			return err
		})
	})
	return f
}

func (t *tuiApp) serverFormPage() *tview.Form {
	d := app.ServerDefaults(cfg)
	f := newToolForm("llama-server")
	binDir := pathField(f, "Bin dir", d.BinDir)
	model := pathField(f, "Model", d.Model)
	tmpl := textField(f, "Chat template", d.ChatTemplate)
	ctxSize := textField(f, "Context size", d.CtxSize)
	threads := textField(f, "Threads", d.Threads)
	host := textField(f, "Host", d.Host)
	port := textField(f, "Port", d.Port)
	gpuLayers := textField(f, "GPU layers", d.GPULayers)

	read := func() builder.ServerForm {
		return builder.ServerForm{
			BinDir:       binDir.GetText(),
			Model:        model.GetText(),
			ChatTemplate: tmpl.GetText(),
			CtxSize:      ctxSize.GetText(),
			Threads:      threads.GetText(),
			Host:         host.GetText(),
			Port:         port.GetText(),
			GPULayers:    gpuLayers.GetText(),
		}
	}

	f.AddButton("Preview", func() {
		form := read()
		t.showPreview(func(ctx context.Context) (*builder.Invocation, error) {
			return t.ctrl.Builder().Server(ctx, form)
		})
	})
	f.AddButton("Start server", func() {
		form := read()
		t.do(func(ctx context.Context) error {
			_, err := t.ctrl.ToggleServer(ctx, form)
			t.app.QueueUpdateDraw(t.updateStatusBar)
			return err
		})
	})
	t.serverForm = f
	t.serverButton = f.GetButtonCount() - 1
	return f
}

func (t *tuiApp) quantizeForm() *tview.Form {
	d := app.QuantizeDefaults(cfg)
	f := newToolForm("llama-quantize")
	binDir := pathField(f, "Bin dir", d.BinDir)
	input := pathField(f, "Input GGUF", d.Input)
	output := pathField(f, "Output GGUF", d.Output)
	qtype := dropDown(f, "Quant type", builder.QuantTypeNames(), d.Type)
	threads := textField(f, "Threads", d.Threads)

	// The derived output name is shown as a placeholder until one is typed.
	suggest := func() {
		if in := input.GetText(); in != "" {
			output.SetPlaceholder(builder.QuantizedName(in, option(qtype)))
		} else {
			output.SetPlaceholder("")
		}
	}
	input.SetChangedFunc(func(string) { suggest() })
	qtype.SetSelectedFunc(func(string, int) { suggest() })

	read := func() builder.QuantizeForm {
		return builder.QuantizeForm{
			BinDir:  binDir.GetText(),
			Input:   input.GetText(),
			Output:  output.GetText(),
			Type:    option(qtype),
			Threads: threads.GetText(),
		}
	}

	f.AddButton("Preview", func() {
		form := read()
		t.showPreview(func(ctx context.Context) (*builder.Invocation, error) {
			return t.ctrl.Builder().Quantize(form)
		})
	})
	f.AddButton("Quantize", func() {
		form := read()
		t.do(func(ctx context.Context) error {
			_, err := t.ctrl.Quantize(ctx, form)
			return err
		})
	})
	return f
}

func (t *tuiApp) convertForm() *tview.Form {
	d := app.ConvertDefaults(cfg)
	f := newToolForm("convert to GGUF")
	llamaDir := pathField(f, "llama.cpp dir", d.LlamaDir)
	script := dropDown(f, "Script", builder.ConvertScripts, d.Script)
	input := pathField(f, "Input model", d.Input)
	base := pathField(f, "Base model (LoRA)", d.Base)
	output := pathField(f, "Output", d.Output)
	outType := dropDown(f, "Out type", builder.OutTypes, d.OutType)
	extra := textField(f, "Extra args", d.Extra)

	script.SetSelectedFunc(func(name string, _ int) {
		if i := slices.Index(builder.OutTypes, builder.PresetOutType(name)); i >= 0 {
			outType.SetCurrentOption(i)
		}
		if notice := builder.ScriptNotice(name); notice != "" {
			t.sink.Append(logsink.PrefixInfo + notice)
		}
	})

	read := func() builder.ConvertForm {
		return builder.ConvertForm{
			LlamaDir: llamaDir.GetText(),
			Script:   option(script),
			Input:    input.GetText(),
			Output:   output.GetText(),
			OutType:  option(outType),
			Base:     base.GetText(),
			Extra:    extra.GetText(),
		}
	}

	f.AddButton("Preview", func() {
		form := read()
		t.showPreview(func(ctx context.Context) (*builder.Invocation, error) {
			return t.ctrl.Builder().Convert(form)
		})
	})
	f.AddButton("Convert", func() {
		form := read()
		t.do(func(ctx context.Context) error {
			_, err := t.ctrl.Convert(ctx, form)
			return err
		})
	})
	return f
}

func (t *tuiApp) perplexityForm() *tview.Form {
	d := app.PerplexityDefaults(cfg)
	f := newToolForm("llama-perplexity")
	binDir := pathField(f, "Bin dir", d.BinDir)
	model := pathField(f, "Model (file or org/name)", d.Model)
	rawPath := pathField(f, "Raw text file", d.RawPath)
	dataset := textField(f, "Dataset", d.Dataset)
	ctxSize := textField(f, "Context size", d.CtxSize)
	batch := textField(f, "Batch size", d.Batch)
	chunks := textField(f, "Chunks", d.Chunks)
	threads := textField(f, "Threads", d.Threads)

	read := func() builder.PerplexityForm {
		return builder.PerplexityForm{
			BinDir:  binDir.GetText(),
			Model:   model.GetText(),
			RawPath: rawPath.GetText(),
			Dataset: dataset.GetText(),
			CtxSize: ctxSize.GetText(),
			Batch:   batch.GetText(),
			Chunks:  chunks.GetText(),
			Threads: threads.GetText(),
		}
	}

	f.AddButton("Preview", func() {
		form := read()
		t.showPreview(func(ctx context.Context) (*builder.Invocation, error) {
			return t.ctrl.Builder().Perplexity(form)
		})
	})
	f.AddButton("Evaluate", func() {
		form := read()
		t.do(func(ctx context.Context) error {
			job, parser, err := t.ctrl.Perplexity(ctx, form)
			if err != nil || job == nil {
				return err
			}
			appendReport(t.sink, form.Model, job, parser)
			return nil
		})
	})
	return f
}
