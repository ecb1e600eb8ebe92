package cmd

import (
	"strings"
	"sync"

	"github.com/rivo/tview"

	"github.com/ThatCatDev/llamatools/internal/logsink"
)

// viewSink appends lines to a TextView. Append never blocks: lines are queued
// and a single flusher moves them onto the UI goroutine, so process readers
// and UI callbacks can both write without deadlocking the event loop.
type viewSink struct {
	app  *tview.Application
	view *tview.TextView

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newViewSink(app *tview.Application, view *tview.TextView) *viewSink {
	s := &viewSink{
		app:  app,
		view: view,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	go s.flush()
	return s
}

func (s *viewSink) Append(line string) {
	s.mu.Lock()
	s.pending = append(s.pending, styleLine(line))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops the flusher. Lines appended afterwards are dropped.
func (s *viewSink) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *viewSink) flush() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		lines := s.pending
		s.pending = nil
		s.mu.Unlock()
		if len(lines) == 0 {
			continue
		}

		text := strings.Join(lines, "\n") + "\n"
		s.app.QueueUpdateDraw(func() {
			s.view.Write([]byte(text))
			s.view.ScrollToEnd()
		})
	}
}

// styleLine escapes tool output and colours status lines.
func styleLine(line string) string {
	escaped := tview.Escape(line)
	switch logsink.Classify(line) {
	case logsink.KindCommand:
		return "[yellow]" + escaped + "[-]"
	case logsink.KindInfo:
		return "[darkcyan]" + escaped + "[-]"
	case logsink.KindSuccess:
		return "[green::b]" + escaped + "[-::-]"
	case logsink.KindWarning:
		return "[orange]" + escaped + "[-]"
	case logsink.KindFailure:
		return "[red::b]" + escaped + "[-::-]"
	default:
		return escaped
	}
}
