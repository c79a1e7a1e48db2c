// Package process starts an executable, waits until it is ready and stops
// it exactly once.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/log"
)

// ReadyFunc blocks until the started process is usable. It is called with
// a context bounded by the start timeout.
type ReadyFunc func(ctx context.Context, r *Running) error

// Config describes the process to launch.
type Config struct {
	Executable string
	Args       []string
	// Env is added to the current environment, overriding existing keys.
	Env     map[string]string
	WorkDir string

	Stdout io.Writer
	Stderr io.Writer

	// StartTimeout bounds Ready. Zero uses EMBEDDB_START_TIMEOUT.
	StartTimeout time.Duration
	// StopTimeout is the grace period between terminate and kill. Zero uses
	// EMBEDDB_STOP_TIMEOUT.
	StopTimeout time.Duration

	// Ready confirms the process is usable. Nil means running is enough.
	Ready ReadyFunc

	Logger log.Logger
}

// outputTail is how much combined output a StartError carries.
const outputTail = 4096

// StartError reports a process that could not be started or never became
// ready.
type StartError struct {
	Executable string
	Reason     string
	Err        error
	// Output is the tail of the process output, if any was captured.
	Output string
}

func (e *StartError) Error() string {
	msg := fmt.Sprintf("failed to start %s: %s", e.Executable, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Running is a started process. Stop it exactly once; further calls return
// the first result.
type Running struct {
	cmd         *exec.Cmd
	stopTimeout time.Duration
	logger      log.Logger
	output      *tailBuffer

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// Start launches cfg.Executable and blocks until cfg.Ready succeeds, the
// process exits, or the start timeout passes. On failure the process is
// killed and a *StartError is returned.
func Start(ctx context.Context, cfg Config) (*Running, error) {
	logger := log.For(cfg.Logger, "process")
	startTimeout := cfg.StartTimeout
	if startTimeout <= 0 {
		startTimeout = config.GetStartTimeout()
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = config.GetStopTimeout()
	}

	info, err := os.Stat(cfg.Executable)
	if err != nil {
		return nil, &StartError{Executable: cfg.Executable, Reason: "executable not found", Err: err}
	}
	if info.IsDir() {
		return nil, &StartError{Executable: cfg.Executable, Reason: "executable is a directory"}
	}

	// The process belongs to its owner, not to ctx; Stop ends it.
	cmd := exec.Command(cfg.Executable, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	cmd.WaitDelay = time.Second

	tail := newTailBuffer(outputTail)
	cmd.Stdout = teeTo(cfg.Stdout, tail)
	cmd.Stderr = teeTo(cfg.Stderr, tail)

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Executable: cfg.Executable, Reason: "exec failed", Err: err}
	}

	r := &Running{
		cmd:         cmd,
		stopTimeout: stopTimeout,
		logger:      logger.With("pid", cmd.Process.Pid),
		output:      tail,
		done:        make(chan struct{}),
	}
	go func() {
		r.waitErr = cmd.Wait()
		close(r.done)
	}()
	r.logger.Info("process started", "executable", cfg.Executable, "args", cfg.Args)

	if err := r.awaitReady(ctx, cfg.Ready, startTimeout); err != nil {
		_ = r.kill()
		err.Executable = cfg.Executable
		err.Output = tail.String()
		return nil, err
	}
	return r, nil
}

func (r *Running) awaitReady(ctx context.Context, ready ReadyFunc, timeout time.Duration) *StartError {
	if ready == nil {
		select {
		case <-r.done:
			return &StartError{Reason: "exited immediately", Err: r.exitErr()}
		default:
			return nil
		}
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- ready(readyCtx, r) }()

	select {
	case <-r.done:
		cancel()
		return &StartError{Reason: "exited before becoming ready", Err: r.exitErr()}
	case err := <-result:
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &StartError{Reason: fmt.Sprintf("not ready within %s", timeout), Err: err}
		}
		return &StartError{Reason: "readiness check failed", Err: err}
	}
}

func (r *Running) exitErr() error {
	if r.waitErr != nil {
		return r.waitErr
	}
	return errors.New("exit status 0")
}

// PID returns the operating system process id.
func (r *Running) PID() int {
	return r.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (r *Running) Done() <-chan struct{} {
	return r.done
}

// Exited reports whether the process has exited.
func (r *Running) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or ctx is done.
func (r *Running) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Output returns the tail of the combined process output.
func (r *Running) Output() string {
	return r.output.String()
}

// Stop asks the process to terminate and kills it if it is still running
// after the stop timeout or when ctx ends. Only the first call acts.
func (r *Running) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.stopErr = r.stop(ctx)
	})
	return r.stopErr
}

func (r *Running) stop(ctx context.Context) error {
	if r.Exited() {
		r.logger.Debug("process already exited")
		return nil
	}

	r.logger.Info("stopping process")
	if err := terminate(r.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Debug("terminate failed, killing", "error", err)
		return r.kill()
	}

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
		r.logger.Debug("process stopped")
		return nil
	case <-timer.C:
		r.logger.Warn("process did not stop in time, killing", "timeout", r.stopTimeout)
	case <-ctx.Done():
		r.logger.Warn("stop canceled, killing", "error", ctx.Err())
	}
	return r.kill()
}

// kill ends the process and waits for it to be reaped.
func (r *Running) kill() error {
	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", r.PID(), err)
	}
	<-r.done
	return nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; !overridden {
			env = append(env, kv)
		}
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func teeTo(w io.Writer, tail *tailBuffer) io.Writer {
	if w == nil {
		return tail
	}
	return io.MultiWriter(w, tail)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
