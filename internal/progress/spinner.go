package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner animates a message while a blocking step runs, such as waiting
// for a server to accept connections. Without a TTY it prints the message
// once.
type Spinner struct {
	output io.Writer
	tty    bool

	mu      sync.Mutex
	message string
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner writing to output. tty selects animation.
func NewSpinner(output io.Writer, tty bool) *Spinner {
	return &Spinner{output: output, tty: tty, done: make(chan struct{})}
}

// Start shows message and begins animating.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()

	if !s.tty {
		fmt.Fprintln(s.output, message)
		return
	}
	go s.animate()
}

// SetMessage replaces the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and prints final, if non-empty. Calling Stop more
// than once is a no-op.
func (s *Spinner) Stop(final string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	if s.tty {
		fmt.Fprintf(s.output, "\r%s\r", strings.Repeat(" ", lineWidth))
	}
	if final != "" {
		fmt.Fprintln(s.output, final)
	}
	s.mu.Unlock()
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				fmt.Fprint(s.output, pad(fmt.Sprintf("\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.message)))
			}
			s.mu.Unlock()
		}
	}
}
