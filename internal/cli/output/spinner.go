package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner animates a progress message on the diagnostic writer.
type Spinner struct {
	w       io.Writer
	msg     string
	frames  spinner.Spinner
	styles  *Styles
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
}

// NewSpinner creates a spinner with msg. Call Start to animate it.
func (r *Renderer) NewSpinner(msg string) *Spinner {
	return &Spinner{
		w:      r.errOut,
		msg:    msg,
		frames: spinner.Dot,
		styles: r.styles,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the animation in the background.
func (s *Spinner) Start() {
	s.started = true
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.frames.FPS)
		defer ticker.Stop()
		for i := 0; ; i++ {
			frame := s.frames.Frames[i%len(s.frames.Frames)]
			_, _ = fmt.Fprintf(s.w, "\r%s %s", s.styles.Info.Render(frame), s.msg)
			select {
			case <-s.stop:
				_, _ = fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) halt() {
	s.once.Do(func() {
		close(s.stop)
		if s.started {
			<-s.done
		}
	})
}

// Stop clears the spinner line.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(msg string) {
	s.halt()
	_, _ = fmt.Fprintln(s.w, s.styles.Success.Render("✓ "+msg))
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(msg string) {
	s.halt()
	_, _ = fmt.Fprintln(s.w, s.styles.Error.Render("✗ "+msg))
}
