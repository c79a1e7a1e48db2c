// Package progress renders download progress and wait spinners on a
// terminal. Nothing is animated when the output is not a TTY.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// IsTerminalFunc reports whether fd is a terminal. Tests override it.
var IsTerminalFunc = term.IsTerminal

const (
	lineWidth      = 80
	barWidth       = 24
	redrawInterval = 100 * time.Millisecond
)

// Writer counts bytes passing through to w and redraws a progress line for
// label on output.
type Writer struct {
	w      io.Writer
	output io.Writer
	label  string
	total  int64

	mu      sync.Mutex
	written int64
	start   time.Time
	drawn   time.Time
	now     func() time.Time
}

// NewWriter wraps w. A total <= 0 means the size is unknown and only the
// byte count and rate are shown.
func NewWriter(w io.Writer, label string, total int64, output io.Writer) *Writer {
	return &Writer{
		w:      w,
		output: output,
		label:  label,
		total:  total,
		start:  time.Now(),
		now:    time.Now,
	}
}

// Write implements io.Writer.
func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 {
		pw.mu.Lock()
		pw.written += int64(n)
		if t := pw.now(); t.Sub(pw.drawn) >= redrawInterval {
			pw.drawn = t
			fmt.Fprint(pw.output, pad(pw.line(t)))
		}
		pw.mu.Unlock()
	}
	return n, err
}

// Written returns the number of bytes passed through so far.
func (pw *Writer) Written() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.written
}

// Finish clears the progress line.
func (pw *Writer) Finish() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	fmt.Fprintf(pw.output, "\r%s\r", strings.Repeat(" ", lineWidth))
}

func (pw *Writer) line(t time.Time) string {
	elapsed := t.Sub(pw.start).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(pw.written) / elapsed
	}

	if pw.total <= 0 {
		return fmt.Sprintf("\r   %s %s (%s/s)", pw.label, FormatBytes(pw.written), FormatBytes(int64(rate)))
	}

	frac := float64(pw.written) / float64(pw.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}

	eta := "--:--"
	if rate > 0 {
		eta = formatDuration(float64(pw.total-pw.written) / rate)
	}
	return fmt.Sprintf("\r   %s [%s] %3.0f%% %s/%s ETA %s",
		pw.label, bar, frac*100, FormatBytes(pw.written), FormatBytes(pw.total), eta)
}

func pad(line string) string {
	if len(line) < lineWidth {
		line += strings.Repeat(" ", lineWidth-len(line))
	}
	return line
}

// FormatBytes renders b with a binary unit suffix.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1fGB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.1fMB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.1fKB", float64(b)/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// formatDuration renders seconds as M:SS or H:MM:SS.
func formatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && IsTerminalFunc(int(f.Fd()))
}
