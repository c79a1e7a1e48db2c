package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	homeDir  string
	binPath  string
	origin   *archiveOrigin
	stdout   string
	stderr   string
	exitCode int
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("EMBEDDB_TEST_BINARY")
	if binPath == "" {
		t.Skip("EMBEDDB_TEST_BINARY not set; build cmd/embeddb and point it at the binary")
	}

	// Resolve to absolute path since go test changes the working directory
	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}
	binPath = absBin

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("EMBEDDB_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, binPath)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	// Fresh artifacts directory per scenario
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		homeDir, err := os.MkdirTemp("", "embeddb-functional-")
		if err != nil {
			return ctx, err
		}
		return setState(ctx, &testState{homeDir: homeDir, binPath: binPath}), nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if state := getState(ctx); state != nil {
			if state.origin != nil {
				state.origin.Close()
			}
			os.RemoveAll(state.homeDir)
		}
		return ctx, nil
	})

	// Environment steps
	ctx.Step(`^a clean embeddb environment$`, aCleanEmbeddbEnvironment)
	ctx.Step(`^a local origin serving a mongod archive$`, aLocalOriginServingAMongodArchive)

	// Command steps
	ctx.Step(`^I run "([^"]*)"$`, iRun)

	// Assertion steps
	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the exit code is not (\d+)$`, theExitCodeIsNot)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the output does not contain "([^"]*)"$`, theOutputDoesNotContain)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
	ctx.Step(`^the origin served (\d+) requests?$`, theOriginServedRequests)
	ctx.Step(`^the directory "([^"]*)" has (\d+) entr(?:y|ies)$`, theDirectoryHasEntries)
	ctx.Step(`^the file "([^"]*)" exists$`, theFileExists)
}
