package builder

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ThatCatDev/llamatools/internal/logger"
)

// Prober fetches a binary's help text for capability detection.
type Prober interface {
	Help(ctx context.Context, exe string) (string, error)
}

// ExecProber runs "<exe> --help" and returns its combined output.
type ExecProber struct {
	Timeout time.Duration // 0 = no timeout beyond ctx
}

func (p ExecProber) Help(ctx context.Context, exe string) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, exe, "--help").CombinedOutput()
	return string(out), err
}

// Supports reports whether help text advertises flag.
func Supports(help, flag string) bool {
	return help != "" && strings.Contains(help, flag)
}

// probe never caches: the binary may be swapped between launches. A failed
// probe yields empty help, so every gated flag is treated as unsupported.
func (b *Builder) probe(ctx context.Context, exe string) string {
	help, err := b.prober.Help(ctx, exe)
	if err != nil {
		logger.Log.Debug("capability probe failed", "binary", exe, "error", err)
		return ""
	}
	return help
}
