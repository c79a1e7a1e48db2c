package functional

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tsukumogami/embeddb/internal/testutil"
)

// archiveOrigin serves the same mongod archive for every path.
type archiveOrigin struct {
	*httptest.Server
	requests atomic.Int32
}

func newArchiveOrigin() (*archiveOrigin, error) {
	body, err := testutil.MongodArchive("4.0.12", "#!/bin/sh\necho fake mongod\n")
	if err != nil {
		return nil, err
	}

	o := &archiveOrigin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.requests.Add(1)
		if !strings.HasSuffix(r.URL.Path, ".tgz") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Write(body)
	}))
	return o, nil
}

// aCleanEmbeddbEnvironment is a no-op because the Before hook already sets
// up the environment. This step exists so feature files read naturally.
func aCleanEmbeddbEnvironment(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

func aLocalOriginServingAMongodArchive(ctx context.Context) (context.Context, error) {
	state := getState(ctx)
	o, err := newArchiveOrigin()
	if err != nil {
		return ctx, err
	}
	state.origin = o
	return ctx, nil
}

// iRun executes a command string, replacing "embeddb" with the test binary
// path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "embeddb" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = state.homeDir

	env := append(os.Environ(), "EMBEDDED_MONGO_ARTIFACTS="+state.homeDir)
	if state.origin != nil {
		env = append(env, "EMBEDDB_DOWNLOAD_ORIGIN="+state.origin.URL)
	}
	cmd.Env = env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}

	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theOriginServedRequests(ctx context.Context, n int) error {
	state := getState(ctx)
	if state.origin == nil {
		return fmt.Errorf("no local origin in this scenario")
	}
	if got := int(state.origin.requests.Load()); got != n {
		return fmt.Errorf("expected %d origin requests, got %d", n, got)
	}
	return nil
}

// theDirectoryHasEntries counts non-hidden entries, ignoring lock files and
// metadata sidecars.
func theDirectoryHasEntries(ctx context.Context, dir string, n int) error {
	state := getState(ctx)
	entries, err := os.ReadDir(filepath.Join(state.homeDir, dir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		count++
	}
	if count != n {
		return fmt.Errorf("expected %d entries in %s, got %d", n, dir, count)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", fullPath)
	}
	return nil
}
