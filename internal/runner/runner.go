// Package runner launches llama.cpp tools and relays their output.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
)

const (
	defaultGracePeriod = 5 * time.Second
	maxLineSize        = 1024 * 1024
)

// SpawnError means the process could not be started at all.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Runner starts invocations in piped mode: stdout and stderr are merged and
// forwarded line by line to a sink while the process runs.
type Runner struct {
	// GracePeriod is how long Cancel waits after SIGTERM before SIGKILL.
	GracePeriod time.Duration
}

func New() *Runner {
	return &Runner{GracePeriod: defaultGracePeriod}
}

// Start launches inv and returns a handle to it. The sink receives every
// output line, then exactly one terminal status line. If the process cannot
// be spawned, the sink receives a single error line and no Job is returned.
// Cancelling ctx stops the process the same way Job.Cancel does.
func (r *Runner) Start(ctx context.Context, inv *builder.Invocation, sink logsink.Sink) (*Job, error) {
	log := logger.Log.With("invocation", inv.ID, "tool", inv.Tool.String())

	cmd := exec.Command(inv.Binary, inv.Args()...)
	cmd.Dir = inv.WorkDir
	cmd.Env = commandEnv(inv)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, spawnFailed(inv, sink, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		log.Warn("spawn failed", "binary", inv.Binary, "error", err)
		return nil, spawnFailed(inv, sink, err)
	}
	// The child holds its own copy of the write end; ours must go so the
	// reader sees EOF when the child exits.
	pw.Close()

	grace := r.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	job := &Job{
		ID:      inv.ID,
		Tool:    inv.Tool,
		Command: inv.String(),
		cmd:     cmd,
		sink:    sink,
		grace:   grace,
		started: time.Now(),
		done:    make(chan struct{}),
		log:     log,
	}
	log.Info("process started", "pid", job.Pid(), "command", job.Command)

	go job.run(pr)
	go job.watch(ctx)
	return job, nil
}

func spawnFailed(inv *builder.Invocation, sink logsink.Sink, err error) error {
	sink.Append(logsink.PrefixFailure + "Error: " + err.Error())
	return &SpawnError{Binary: inv.Binary, Err: err}
}

// commandEnv puts the binary's directory on the shared-library path, where
// llama.cpp release builds keep libllama and the ggml backends.
func commandEnv(inv *builder.Invocation) []string {
	env := os.Environ()
	if inv.Tool == builder.ToolConvert {
		return env
	}
	dir := filepath.Dir(inv.Binary)
	switch runtime.GOOS {
	case "linux", "freebsd":
		return append(env, "LD_LIBRARY_PATH="+joinPath(dir, os.Getenv("LD_LIBRARY_PATH")))
	case "darwin":
		return append(env, "DYLD_LIBRARY_PATH="+joinPath(dir, os.Getenv("DYLD_LIBRARY_PATH")))
	default:
		return env
	}
}

func joinPath(dir, existing string) string {
	if existing == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + existing
}

// pump forwards lines from r to the sink until EOF. A panic inside the sink
// is reported as an error instead of taking the host down.
func pump(r io.Reader, sink logsink.Sink) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("output reader panicked: %v", p)
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	for scanner.Scan() {
		sink.Append(scanner.Text())
	}
	return scanner.Err()
}

// safeAppend appends one line, turning a sink panic into an error.
func safeAppend(sink logsink.Sink, line string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panicked: %v", p)
		}
	}()
	sink.Append(line)
	return nil
}

// scanLines splits on "\n", "\r\n" and bare "\r", so carriage-return progress
// bars arrive as separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// statusLine renders the single terminal line for a finished job.
func statusLine(tool builder.Tool, res Result) string {
	switch {
	case res.Cancelled:
		return logsink.PrefixWarning + tool.Title() + " stopped"
	case res.Err != nil:
		return logsink.PrefixFailure + "Error: " + res.Err.Error()
	case res.ExitCode == 0:
		return logsink.PrefixSuccess + tool.Title() + " completed successfully!"
	default:
		line := fmt.Sprintf("%sExited with code %d", logsink.PrefixFailure, res.ExitCode)
		if res.State != "" && !strings.HasPrefix(res.State, "exit status") {
			line += " (" + res.State + ")"
		}
		return line
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
