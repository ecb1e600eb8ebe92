//go:build unix

package runner

import (
	"os"
	"runtime"
	"syscall"
)

// peakRSS returns the child's maximum resident set size in bytes.
func peakRSS(state *os.ProcessState) int64 {
	ru, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return 0
	}
	// Darwin reports bytes, the other unixes kilobytes.
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		return int64(ru.Maxrss)
	}
	return int64(ru.Maxrss) * 1024
}
