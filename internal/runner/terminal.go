package runner

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
)

// KnownTerminals are tried in order when no terminal is configured.
var KnownTerminals = []string{"xfce4-terminal", "gnome-terminal", "konsole", "xterm"}

// Terminal launches commands in a separate terminal emulator window. The
// host gets no output and no lifecycle visibility beyond "launched".
type Terminal struct {
	Name string // emulator basename, selects the argument convention
	Path string
}

// DetectTerminal resolves preferred (when set) or the first KnownTerminals
// entry found by lookPath. A nil lookPath means exec.LookPath.
func DetectTerminal(preferred string, lookPath func(string) (string, error)) (*Terminal, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	candidates := KnownTerminals
	if preferred != "" {
		candidates = []string{preferred}
	}
	for _, name := range candidates {
		if path, err := lookPath(name); err == nil {
			return &Terminal{Name: filepath.Base(name), Path: path}, nil
		}
	}
	if preferred != "" {
		return nil, fmt.Errorf("terminal %q not found", preferred)
	}
	return nil, fmt.Errorf("no terminal emulator found (tried %v)", KnownTerminals)
}

// Script is the shell line run inside the window. It keeps the window open
// until a key is pressed so the final output stays readable.
func Script(inv *builder.Invocation) string {
	line := inv.String()
	if inv.WorkDir != "" {
		line = "cd " + builder.ShellQuote(inv.WorkDir) + " && " + line
	}
	return line + "; echo; echo '--- exited ---'; read -n1"
}

// Argv returns the emulator command line that runs inv.
func (t *Terminal) Argv(inv *builder.Invocation) []string {
	script := Script(inv)
	switch t.Name {
	case "xfce4-terminal":
		return []string{t.Path, "--command", "bash -c " + builder.ShellQuote(script)}
	case "gnome-terminal":
		return []string{t.Path, "--", "bash", "-c", script}
	default:
		return []string{t.Path, "-e", "bash", "-c", script}
	}
}

// Launch starts the emulator and returns without waiting for it.
func (t *Terminal) Launch(inv *builder.Invocation, sink logsink.Sink) error {
	argv := t.Argv(inv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = commandEnv(inv)
	if err := cmd.Start(); err != nil {
		sink.Append(logsink.PrefixFailure + "Error: " + err.Error())
		return &SpawnError{Binary: t.Path, Err: err}
	}
	logger.Log.Info("launched in terminal", "invocation", inv.ID, "terminal", t.Name, "pid", cmd.Process.Pid)
	sink.Append(logsink.PrefixInfo + "launched in " + t.Name)
	// Reap the emulator so it does not linger as a zombie.
	go cmd.Wait()
	return nil
}
