package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/app"
	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/config"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
	"github.com/ThatCatDev/llamatools/internal/runner"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// toolPage is one form in the tool menu.
type toolPage struct {
	name string
	form *tview.Form
}

// tuiApp is the single mutable state struct for the tview-based TUI.
type tuiApp struct {
	app       *tview.Application
	pages     *tview.Pages // "main" plus transient modals
	menu      *tview.List
	forms     *tview.Pages
	preview   *tview.TextView
	logView   *tview.TextView
	statusBar *tview.TextView

	sink *viewSink
	ctrl *app.Controller

	ctx    context.Context
	cancel context.CancelFunc

	serverForm   *tview.Form
	serverButton int
}

func runTUI() error {
	// Diagnostics go to a file; stderr belongs to the screen now.
	if err := config.EnsureDirs(); err != nil {
		return err
	}
	logFile, err := os.OpenFile(config.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger.SetupWriter(logFile, cfg.Log.Level, cfg.Log.Format)

	t := newTuiApp()
	defer t.shutdown()
	return t.run()
}

func newTuiApp() *tuiApp {
	t := &tuiApp{}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.app = tview.NewApplication()

	t.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	t.logView.SetBorder(true).SetTitle(" Log ")

	t.preview = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	t.preview.SetBorder(true).SetTitle(" Command ")

	t.statusBar = tview.NewTextView().SetDynamicColors(true)

	t.sink = newViewSink(t.app, t.logView)
	t.ctrl = newController(t.sink)
	t.sink.Append(terminalLine(cfg.Terminal, nil))

	t.forms = tview.NewPages()
	t.menu = tview.NewList().ShowSecondaryText(false)
	t.menu.SetBorder(true).SetTitle(" Tools ")

	pages := []toolPage{
		{"Chat", t.chatForm()},
		{"Server", t.serverFormPage()},
		{"Quantize", t.quantizeForm()},
		{"Convert", t.convertForm()},
		{"Perplexity", t.perplexityForm()},
	}
	for i, p := range pages {
		p := p
		t.forms.AddPage(p.name, p.form, true, i == 0)
		t.menu.AddItem(p.name, "", rune('1'+i), func() {
			t.forms.SwitchToPage(p.name)
			t.app.SetFocus(p.form)
		})
	}
	t.menu.SetChangedFunc(func(index int, name, _ string, _ rune) {
		t.forms.SwitchToPage(name)
	})

	top := tview.NewFlex().
		AddItem(t.menu, 20, 0, true).
		AddItem(t.forms, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 3, true).
		AddItem(t.preview, 4, 0, false).
		AddItem(t.logView, 0, 2, false).
		AddItem(t.statusBar, 1, 0, false)

	t.pages = tview.NewPages().AddPage("main", root, true, true)
	t.setupInputCapture()
	t.updateStatusBar()
	return t
}

func (t *tuiApp) run() error {
	go t.tickStatus()
	return t.app.SetRoot(t.pages, true).EnableMouse(true).Run()
}

func (t *tuiApp) shutdown() {
	t.cancel()
	t.sink.Close()
	t.ctrl.Shutdown()
}

// ── Input Capture ──────────────────────────────────────────────────────

func (t *tuiApp) setupInputCapture() {
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			t.app.Stop()
			return nil
		case tcell.KeyCtrlX:
			t.cancelJobs()
			return nil
		case tcell.KeyEscape:
			if t.pages.HasPage("error") {
				return event
			}
			t.app.SetFocus(t.menu)
			return nil
		}
		return event
	})
}

func (t *tuiApp) cancelJobs() {
	jobs := t.ctrl.Jobs()
	if len(jobs) == 0 {
		return
	}
	go func() {
		for _, j := range jobs {
			j.Cancel()
		}
	}()
}

// ── Status Bar ─────────────────────────────────────────────────────────

func (t *tuiApp) tickStatus() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.app.QueueUpdateDraw(t.updateStatusBar)
		}
	}
}

func (t *tuiApp) updateStatusBar() {
	server := "[gray]server stopped[-]"
	label := "Start server"
	if url := t.ctrl.Server().BaseURL(); url != "" {
		server = "[green]server " + url + "[-]"
		label = "Stop server"
	}
	if t.serverForm != nil {
		if b := t.serverForm.GetButton(t.serverButton); b != nil && b.GetLabel() != label {
			b.SetLabel(label)
		}
	}

	mode := ""
	if t.ctrl.DryRun {
		mode = " [yellow]dry run[-] |"
	}
	t.statusBar.SetText(fmt.Sprintf(" %s | jobs: %d |%s [gray]Esc[-] menu  [gray]Ctrl+X[-] cancel  [gray]Ctrl+C[-] quit",
		server, len(t.ctrl.Jobs()), mode))
}

// ── Actions ────────────────────────────────────────────────────────────

// showPreview builds without launching and shows the highlighted command.
func (t *tuiApp) showPreview(build func(ctx context.Context) (*builder.Invocation, error)) {
	go func() {
		inv, err := build(t.ctx)
		t.app.QueueUpdateDraw(func() {
			if err != nil {
				t.showError(err)
				return
			}
			t.preview.SetText(highlightCommand(inv.String()))
		})
	}()
}

// do runs a launch action off the UI goroutine; probing and spawning may take
// a moment. Errors end up in a modal.
func (t *tuiApp) do(action func(ctx context.Context) error) {
	go func() {
		if err := action(t.ctx); err != nil {
			t.app.QueueUpdateDraw(func() { t.showError(err) })
		}
	}()
}

func (t *tuiApp) showError(err error) {
	title := "Error"
	var cfgErr *builder.ConfigError
	if errors.As(err, &cfgErr) {
		title = "Configuration error"
	}
	focus := t.app.GetFocus()
	modal := tview.NewModal().
		SetText(title + "\n\n" + err.Error()).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			t.pages.RemovePage("error")
			if focus != nil {
				t.app.SetFocus(focus)
			}
		})
	t.pages.AddPage("error", modal, false, true)
	t.app.SetFocus(modal)
}

// ── Helpers ─────────────────────────────────────────────────────────────

// terminalLine reports which emulator interactive chat will open in.
func terminalLine(preferred string, lookPath func(string) (string, error)) string {
	term, err := runner.DetectTerminal(preferred, lookPath)
	if err != nil {
		logger.Log.Warn("no terminal emulator", "error", err)
		return logsink.PrefixFailure + "no terminal detected"
	}
	return logsink.PrefixInfo + "terminal: " + term.Name
}

func highlightCommand(line string) string {
	lexer := lexers.Get("bash")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return tview.Escape(line)
	}

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return tview.Escape(line)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return tview.Escape(line)
	}
	return tview.TranslateANSI(buf.String())
}

// completePath lists filesystem entries starting with text. Directories get a
// trailing separator so completion can continue into them.
func completePath(text string) []string {
	if text == "" {
		return nil
	}
	pattern := text
	if strings.HasPrefix(pattern, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			pattern = filepath.Join(home, pattern[2:])
		}
	}
	matches, err := filepath.Glob(pattern + "*")
	if err != nil || len(matches) == 0 {
		return nil
	}
	if len(matches) > 50 {
		matches = matches[:50]
	}
	for i, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			matches[i] = m + string(filepath.Separator)
		}
	}
	return matches
}
