package runner

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
)

// Result describes how a piped job ended.
type Result struct {
	ExitCode  int
	State     string // os.ProcessState description, e.g. "signal: killed"
	Err       error  // output read or wait failure
	Cancelled bool
	Duration  time.Duration
	PeakRSS   int64 // bytes, 0 when the platform does not report it
}

// Success reports a clean zero exit.
func (r Result) Success() bool {
	return r.Err == nil && !r.Cancelled && r.ExitCode == 0
}

// Job is the handle of one running piped process. It is valid from a
// successful Runner.Start until Done is closed.
type Job struct {
	ID      string
	Tool    builder.Tool
	Command string

	cmd     *exec.Cmd
	sink    logsink.Sink
	grace   time.Duration
	started time.Time
	done    chan struct{}
	log     *logger.Logger

	mu        sync.Mutex
	cancelled bool
	result    Result
}

// Pid returns the process id.
func (j *Job) Pid() int {
	return j.cmd.Process.Pid
}

// Done returns a channel that is closed once the process has exited and its
// output has been fully relayed.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Running reports whether the process has not exited yet.
func (j *Job) Running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the job finishes and returns its result.
func (j *Job) Wait() Result {
	<-j.done
	return j.Result()
}

// Result returns the final result; it is only meaningful after Done.
func (j *Job) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Cancel sends SIGTERM, waits up to the grace period, then SIGKILL. It
// returns once the process has exited. Cancelling a finished job is a no-op.
func (j *Job) Cancel() error {
	if !j.Running() {
		return nil
	}
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()

	pid := j.Pid()
	j.log.Info("sending SIGTERM", "pid", pid)

	var sigErr error
	if runtime.GOOS == "windows" {
		sigErr = j.cmd.Process.Signal(os.Interrupt)
	} else {
		sigErr = j.cmd.Process.Signal(syscall.SIGTERM)
	}
	if sigErr != nil {
		// Process may already be dead.
		j.log.Debug("signal failed", "pid", pid, "error", sigErr)
		<-j.done
		return nil
	}

	select {
	case <-j.done:
		j.log.Info("process exited cleanly", "pid", pid)
		return nil
	case <-time.After(j.grace):
		j.log.Warn("process did not exit after SIGTERM, sending SIGKILL", "pid", pid)
		if err := j.cmd.Process.Kill(); err != nil {
			return err
		}
		<-j.done
		return nil
	}
}

// run relays output, reaps the process and emits the terminal status line.
func (j *Job) run(pr *os.File) {
	defer close(j.done)

	readErr := pump(pr, j.sink)
	if readErr != nil {
		j.log.Error("output read failed", "error", readErr)
		// Keep draining so the child never blocks on a full pipe.
		io.Copy(io.Discard, pr)
	}

	waitErr := j.cmd.Wait()
	pr.Close()

	res := Result{Duration: time.Since(j.started)}
	if state := j.cmd.ProcessState; state != nil {
		res.ExitCode = state.ExitCode()
		res.State = state.String()
		res.PeakRSS = peakRSS(state)
	}
	if waitErr != nil && !isExitError(waitErr) {
		res.Err = waitErr
	} else if readErr != nil {
		res.Err = readErr
	}

	j.mu.Lock()
	res.Cancelled = j.cancelled
	j.result = res
	j.mu.Unlock()

	j.log.Info("process exited", "exit_code", res.ExitCode, "duration", res.Duration.String(), "cancelled", res.Cancelled)
	if err := safeAppend(j.sink, statusLine(j.Tool, res)); err != nil {
		j.log.Warn("status line dropped", "error", err)
	}
}

func (j *Job) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		j.Cancel()
	case <-j.done:
	}
}
