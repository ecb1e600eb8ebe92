package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/logger"
	"github.com/ThatCatDev/llamatools/internal/logsink"
)

// ErrServerRunning is returned by Start when the slot is occupied.
var ErrServerRunning = errors.New("a server is already running")

// ServerSlot holds at most one running llama-server. Toggle starts a server
// when the slot is empty and stops it when occupied. The slot empties itself
// when the process exits on its own.
type ServerSlot struct {
	runner        *Runner
	healthTimeout time.Duration

	mu      sync.Mutex
	job     *Job
	baseURL string
}

// NewServerSlot returns an empty slot. healthTimeout bounds the readiness
// wait after start (default 120s).
func NewServerSlot(r *Runner, healthTimeout time.Duration) *ServerSlot {
	if healthTimeout <= 0 {
		healthTimeout = 120 * time.Second
	}
	return &ServerSlot{runner: r, healthTimeout: healthTimeout}
}

// Running reports whether the slot holds a live server.
func (s *ServerSlot) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

// Job returns the running server job, or nil.
func (s *ServerSlot) Job() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// BaseURL returns the HTTP base URL of the running server, or "".
func (s *ServerSlot) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// Toggle stops the running server, or builds and starts a new one. started
// reports which of the two happened.
func (s *ServerSlot) Toggle(ctx context.Context, build func() (*builder.Invocation, error), sink logsink.Sink) (started bool, err error) {
	if job := s.Job(); job != nil {
		sink.Append(logsink.PrefixInfo + "stopping server")
		return false, job.Cancel()
	}

	// Building may probe the binary; keep the slot unlocked meanwhile.
	inv, err := build()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return false, ErrServerRunning
	}
	if err := s.startLocked(ctx, inv, sink); err != nil {
		return false, err
	}
	return true, nil
}

// Start launches inv in the empty slot.
func (s *ServerSlot) Start(ctx context.Context, inv *builder.Invocation, sink logsink.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return ErrServerRunning
	}
	return s.startLocked(ctx, inv, sink)
}

func (s *ServerSlot) startLocked(ctx context.Context, inv *builder.Invocation, sink logsink.Sink) error {
	// The server outlives the request that started it; only Stop ends it.
	job, err := s.runner.Start(context.WithoutCancel(ctx), inv, sink)
	if err != nil {
		return err
	}
	s.job = job
	s.baseURL = serverURL(inv)

	go s.release(job)
	go s.awaitReady(ctx, job, s.baseURL, sink)
	return nil
}

// Stop terminates the running server. Stopping an empty slot is a no-op.
func (s *ServerSlot) Stop() error {
	job := s.Job()
	if job == nil {
		return nil
	}
	return job.Cancel()
}

func (s *ServerSlot) release(job *Job) {
	<-job.Done()
	s.mu.Lock()
	if s.job == job {
		s.job = nil
		s.baseURL = ""
	}
	s.mu.Unlock()
}

// serverURL derives the address llama-server listens on from its flags.
func serverURL(inv *builder.Invocation) string {
	host, ok := inv.FlagValue("--host")
	if !ok || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	port, ok := inv.FlagValue("--port")
	if !ok {
		port = "8080"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// awaitReady polls /health until the server answers 200, then reports it.
func (s *ServerSlot) awaitReady(ctx context.Context, job *Job, baseURL string, sink logsink.Sink) {
	log := logger.Log.With("invocation", job.ID)
	if err := waitForHealth(ctx, job.Done(), baseURL, s.healthTimeout); err != nil {
		// A cancelled context means the caller is shutting down.
		if job.Running() && ctx.Err() == nil {
			sink.Append(logsink.PrefixWarning + err.Error())
		}
		log.Warn("server not ready", "error", err)
		return
	}
	sink.Append(logsink.PrefixInfo + "server ready at " + baseURL)
	log.Info("server ready", "url", baseURL)
}

// waitForHealth polls /health until it returns 200, with progress logging.
func waitForHealth(ctx context.Context, exited <-chan struct{}, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	progressTicker := time.NewTicker(5 * time.Second)
	defer progressTicker.Stop()

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("server exited during startup")
		case <-progressTicker.C:
			logger.Log.Info("still loading model", "elapsed", time.Since(start).Round(time.Second).String())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for server to become ready after %s", timeout)
			}
			if healthCheck(ctx, baseURL) == nil {
				return nil
			}
		}
	}
}

func healthCheck(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}
