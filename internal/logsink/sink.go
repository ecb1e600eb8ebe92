// Package logsink holds the append-only line sinks that receive process
// output and status lines.
package logsink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Sink receives log lines. Implementations must be safe for concurrent use:
// lines arrive from process reader goroutines.
type Sink interface {
	Append(line string)
}

// Func adapts a function to a Sink.
type Func func(line string)

func (f Func) Append(line string) { f(line) }

// Buffer is an in-memory sink. It is never truncated.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Lines returns a snapshot of every line appended so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of lines appended so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Multi fans a line out to every sink in order.
type Multi []Sink

func (m Multi) Append(line string) {
	for _, s := range m {
		s.Append(line)
	}
}

// Writer writes lines to an io.Writer, colouring status lines.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Append(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if paint := painter(Classify(line)); paint != nil {
		line = paint("%s", line)
	}
	fmt.Fprintln(w.w, line)
}

// Kind classifies a line by its status prefix.
type Kind int

const (
	KindOutput Kind = iota
	KindCommand
	KindInfo
	KindSuccess
	KindWarning
	KindFailure
)

// Status line prefixes. Process output never starts with these.
const (
	PrefixCommand = "▶ "
	PrefixInfo    = "✔ "
	PrefixSuccess = "✅ "
	PrefixWarning = "⚠️ "
	PrefixFailure = "❌ "
)

func Classify(line string) Kind {
	switch {
	case strings.HasPrefix(line, PrefixCommand):
		return KindCommand
	case strings.HasPrefix(line, PrefixInfo):
		return KindInfo
	case strings.HasPrefix(line, PrefixSuccess):
		return KindSuccess
	case strings.HasPrefix(line, PrefixWarning):
		return KindWarning
	case strings.HasPrefix(line, PrefixFailure):
		return KindFailure
	default:
		return KindOutput
	}
}

func painter(k Kind) func(format string, a ...interface{}) string {
	switch k {
	case KindCommand:
		return color.YellowString
	case KindInfo:
		return color.CyanString
	case KindSuccess:
		return color.GreenString
	case KindWarning:
		return color.HiYellowString
	case KindFailure:
		return color.RedString
	default:
		return nil
	}
}
