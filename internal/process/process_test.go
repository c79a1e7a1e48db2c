//go:build !windows

package process

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/embeddb/internal/log"
)

func script(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fake-mongod")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return p
}

func baseConfig(exe string) Config {
	return Config{
		Executable:   exe,
		StartTimeout: 5 * time.Second,
		StopTimeout:  2 * time.Second,
		Logger:       log.NewNoop(),
	}
}

func TestStartAndStop(t *testing.T) {
	r, err := Start(context.Background(), baseConfig(script(t, "exec sleep 30")))
	require.NoError(t, err)
	assert.Greater(t, r.PID(), 0)
	assert.False(t, r.Exited())

	require.NoError(t, r.Stop(context.Background()))
	assert.True(t, r.Exited())
	require.NoError(t, r.Stop(context.Background()), "second stop returns the first result")
}

func TestStartMissingExecutable(t *testing.T) {
	_, err := Start(context.Background(), baseConfig(filepath.Join(t.TempDir(), "nope")))
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "executable not found", se.Reason)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStartExitsBeforeReady(t *testing.T) {
	cfg := baseConfig(script(t, "echo 'addr already in use' >&2; exit 3"))
	cfg.Ready = WaitForPort("127.0.0.1", 1, 20*time.Millisecond)

	_, err := Start(context.Background(), cfg)
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Reason, "exited before becoming ready")
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, se.Output, "addr already in use")
}

func TestStartReadyTimeoutKillsProcess(t *testing.T) {
	cfg := baseConfig(script(t, "exec sleep 30"))
	cfg.StartTimeout = 200 * time.Millisecond

	var started *Running
	cfg.Ready = func(ctx context.Context, r *Running) error {
		started = r
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := Start(context.Background(), cfg)
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Reason, "not ready within")
	require.NotNil(t, started)
	assert.True(t, started.Exited(), "process must be killed when readiness fails")
}

func TestStartReadyError(t *testing.T) {
	cfg := baseConfig(script(t, "exec sleep 30"))
	probe := errors.New("handshake failed")
	cfg.Ready = func(context.Context, *Running) error { return probe }

	_, err := Start(context.Background(), cfg)
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, probe)
	assert.Equal(t, "readiness check failed", se.Reason)
}

func TestStopKillsAfterTimeout(t *testing.T) {
	cfg := baseConfig(script(t, "trap '' TERM\nwhile :; do :; done"))
	cfg.StopTimeout = 200 * time.Millisecond

	r, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Stop(context.Background()))
	assert.True(t, r.Exited())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestStopCanceledContextKills(t *testing.T) {
	cfg := baseConfig(script(t, "trap '' TERM\nwhile :; do :; done"))
	cfg.StopTimeout = time.Minute

	r, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.True(t, r.Exited())
}

func TestEnvWorkDirAndOutput(t *testing.T) {
	workDir := t.TempDir()
	var stdout bytes.Buffer
	var mu sync.Mutex
	cfg := baseConfig(script(t, `echo "$EMBEDDB_TEST_VALUE $(pwd)"; touch ready; exec sleep 30`))
	cfg.WorkDir = workDir
	cfg.Env = map[string]string{"EMBEDDB_TEST_VALUE": "hello"}
	cfg.Stdout = writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return stdout.Write(p)
	})
	cfg.Ready = func(ctx context.Context, _ *Running) error {
		for {
			if _, err := os.Stat(filepath.Join(workDir, "ready")); err == nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	r, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Stop(context.Background())

	realWorkDir, err := filepath.EvalSymlinks(workDir)
	require.NoError(t, err)
	assert.Contains(t, r.Output(), "hello")
	assert.Contains(t, r.Output(), realWorkDir)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(stdout.String(), "hello "))
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestWaitForPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, WaitForPort("127.0.0.1", port, 10*time.Millisecond)(ctx, nil))
}

func TestWaitForPortTimeout(t *testing.T) {
	port, err := FreePort("127.0.0.1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = WaitForPort("127.0.0.1", port, 10*time.Millisecond)(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2", "=C:=C:\\"}, map[string]string{"B": "3", "Z": "9"})
	assert.Equal(t, []string{"A=1", "=C:=C:\\", "B=3", "Z=9"}, got)
	assert.Equal(t, []string{"A=1"}, mergeEnv([]string{"A=1"}, nil))
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(5)
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "cdefg", b.String())
}
