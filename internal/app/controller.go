// Package app wires form state to the builder and the runners. Both the CLI
// and the terminal UI drive llama.cpp through a Controller.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
	"github.com/ThatCatDev/llamatools/internal/perplexity"
	"github.com/ThatCatDev/llamatools/internal/runner"
)

// Starter launches piped jobs. *runner.Runner satisfies it.
type Starter interface {
	Start(ctx context.Context, inv *builder.Invocation, sink logsink.Sink) (*runner.Job, error)
}

// Controller handles one user action at a time: build the invocation, show
// it, then launch it (or not, in dry-run mode).
type Controller struct {
	builder *builder.Builder
	runner  Starter
	server  *runner.ServerSlot
	sink    logsink.Sink

	// DryRun shows commands without starting anything.
	DryRun bool
	// Terminal is the preferred emulator for interactive chat; empty means
	// auto-detect.
	Terminal string
	// LookPath resolves terminal emulators; nil means exec.LookPath.
	LookPath func(string) (string, error)

	mu      sync.Mutex
	running map[builder.Tool][]*runner.Job
}

// NewController returns a Controller writing user-facing lines to sink.
func NewController(b *builder.Builder, r Starter, server *runner.ServerSlot, sink logsink.Sink) *Controller {
	return &Controller{
		builder: b,
		runner:  r,
		server:  server,
		sink:    sink,
		running: make(map[builder.Tool][]*runner.Job),
	}
}

// Builder returns the builder, for previews that must not launch.
func (c *Controller) Builder() *builder.Builder {
	return c.builder
}

// Server returns the server slot.
func (c *Controller) Server() *runner.ServerSlot {
	return c.server
}

// Chat runs a batch chat in the log, or an interactive one in a terminal
// window. The returned job is nil for terminal launches and dry runs.
func (c *Controller) Chat(ctx context.Context, f builder.ChatForm) (*runner.Job, error) {
	inv, err := c.builder.Chat(ctx, f)
	if err != nil {
		return nil, err
	}
	if f.Interactive {
		return nil, c.LaunchInTerminal(inv)
	}
	return c.Launch(ctx, inv)
}

func (c *Controller) Quantize(ctx context.Context, f builder.QuantizeForm) (*runner.Job, error) {
	inv, err := c.builder.Quantize(f)
	if err != nil {
		return nil, err
	}
	return c.Launch(ctx, inv)
}

func (c *Controller) Convert(ctx context.Context, f builder.ConvertForm) (*runner.Job, error) {
	inv, err := c.builder.Convert(f)
	if err != nil {
		return nil, err
	}
	return c.Launch(ctx, inv)
}

// Perplexity launches an evaluation. The returned parser follows the
// tool's output; combine it with the job result via perplexity.NewReport.
func (c *Controller) Perplexity(ctx context.Context, f builder.PerplexityForm) (*runner.Job, *perplexity.Parser, error) {
	inv, err := c.builder.Perplexity(f)
	if err != nil {
		return nil, nil, err
	}
	parser := perplexity.NewParser(c.sink)
	job, err := c.launch(ctx, inv, parser)
	return job, parser, err
}

// ToggleServer stops the running server, or builds and starts one. started
// reports which happened; in dry-run mode nothing starts.
func (c *Controller) ToggleServer(ctx context.Context, f builder.ServerForm) (started bool, err error) {
	if c.DryRun && !c.server.Running() {
		inv, err := c.builder.Server(ctx, f)
		if err != nil {
			return false, err
		}
		c.announce(inv)
		c.sink.Append(logsink.PrefixInfo + "dry run, not started")
		return false, nil
	}

	return c.server.Toggle(ctx, func() (*builder.Invocation, error) {
		inv, err := c.builder.Server(ctx, f)
		if err != nil {
			return nil, err
		}
		c.announce(inv)
		return inv, nil
	}, c.sink)
}

// Launch starts inv as a piped job streaming into the sink.
func (c *Controller) Launch(ctx context.Context, inv *builder.Invocation) (*runner.Job, error) {
	return c.launch(ctx, inv, c.sink)
}

func (c *Controller) launch(ctx context.Context, inv *builder.Invocation, sink logsink.Sink) (*runner.Job, error) {
	c.announce(inv)
	if c.DryRun {
		c.sink.Append(logsink.PrefixInfo + "dry run, not started")
		return nil, nil
	}

	if n := c.Running(inv.Tool); n > 0 {
		c.sink.Append(fmt.Sprintf("%s%d %s job(s) already running", logsink.PrefixWarning, n, inv.Tool))
		logger.Log.Warn("launching while another job of the same tool runs", "tool", inv.Tool.String(), "running", n)
	}

	job, err := c.runner.Start(ctx, inv, sink)
	if err != nil {
		return nil, err
	}
	c.track(job)
	return job, nil
}

// LaunchInTerminal opens inv in a terminal emulator window.
func (c *Controller) LaunchInTerminal(inv *builder.Invocation) error {
	c.announce(inv)
	if c.DryRun {
		c.sink.Append(logsink.PrefixInfo + "dry run, not started")
		return nil
	}

	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	term, err := runner.DetectTerminal(c.Terminal, lookPath)
	if err != nil {
		c.sink.Append(logsink.PrefixFailure + "Error: " + err.Error())
		return err
	}
	return term.Launch(inv, c.sink)
}

// Running returns how many piped jobs of tool are still running.
func (c *Controller) Running(tool builder.Tool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running[tool])
}

// Jobs returns every running piped job.
func (c *Controller) Jobs() []*runner.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	var jobs []*runner.Job
	for _, js := range c.running {
		jobs = append(jobs, js...)
	}
	return jobs
}

// Shutdown cancels every running job and stops the server.
func (c *Controller) Shutdown() {
	var wg sync.WaitGroup
	for _, job := range c.Jobs() {
		wg.Add(1)
		go func(j *runner.Job) {
			defer wg.Done()
			j.Cancel()
		}(job)
	}
	if err := c.server.Stop(); err != nil {
		logger.Log.Warn("stop server", "error", err)
	}
	wg.Wait()
}

func (c *Controller) announce(inv *builder.Invocation) {
	for _, n := range inv.Notices {
		c.sink.Append(logsink.PrefixInfo + n)
	}
	c.sink.Append(logsink.PrefixCommand + inv.String())
	logger.Log.Debug("invocation built", "invocation", inv.ID, "tool", inv.Tool.String(), "argv", inv.Argv())
}

func (c *Controller) track(job *runner.Job) {
	c.mu.Lock()
	c.running[job.Tool] = append(c.running[job.Tool], job)
	c.mu.Unlock()

	go func() {
		<-job.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		jobs := c.running[job.Tool]
		for i, j := range jobs {
			if j == job {
				c.running[job.Tool] = append(jobs[:i], jobs[i+1:]...)
				break
			}
		}
	}()
}
