package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer shared with the animation goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerAnimates(t *testing.T) {
	out := &syncBuffer{}
	s := NewSpinner(out, true)
	s.Start("waiting for mongod")
	time.Sleep(350 * time.Millisecond)
	s.SetMessage("still waiting")
	time.Sleep(250 * time.Millisecond)
	s.Stop("mongod is ready")

	got := out.String()
	for _, want := range []string{"waiting for mongod", "still waiting", "mongod is ready"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSpinnerNonTTY(t *testing.T) {
	out := &syncBuffer{}
	s := NewSpinner(out, false)
	s.Start("waiting for mongod")
	time.Sleep(250 * time.Millisecond)
	s.Stop("")

	if got := out.String(); got != "waiting for mongod\n" {
		t.Errorf("output = %q, want the message printed once", got)
	}
}

func TestSpinnerStopTwice(t *testing.T) {
	out := &syncBuffer{}
	s := NewSpinner(out, false)
	s.Start("x")
	s.Stop("done")
	s.Stop("done")

	if strings.Count(out.String(), "done") != 1 {
		t.Errorf("second Stop must be a no-op, output %q", out.String())
	}
}
