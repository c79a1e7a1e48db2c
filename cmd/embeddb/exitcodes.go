package main

import (
	"errors"
	"os"

	"github.com/tsukumogami/embeddb/internal/packageresolver"
	"github.com/tsukumogami/embeddb/internal/process"
	"github.com/tsukumogami/embeddb/internal/store"
	"github.com/tsukumogami/embeddb/internal/transition"
)

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error
	ExitUsage = 2

	// ExitUnsupported indicates no package exists for the distribution
	ExitUnsupported = 3

	// ExitNetwork indicates a failed download; retrying may help
	ExitNetwork = 5

	// ExitCacheWrite indicates the artifacts directory could not be written
	ExitCacheWrite = 6

	// ExitMalformedArchive indicates a downloaded archive was unusable
	ExitMalformedArchive = 7

	// ExitVerifyFailed indicates signature verification failed
	ExitVerifyFailed = 8

	// ExitStartFailed indicates the server process did not start
	ExitStartFailed = 9

	// ExitGraph indicates an invalid launch graph
	ExitGraph = 10
)

// usageError marks errors caused by bad arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exitCodeFor maps an error to the exit code of its failure mode.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	var unsupported *packageresolver.UnsupportedDistributionError
	if errors.As(err, &unsupported) {
		return ExitUnsupported
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch storeErr.Type {
		case store.ErrTypeDownloadFailed:
			return ExitNetwork
		case store.ErrTypeCacheWrite:
			return ExitCacheWrite
		case store.ErrTypeMalformedArchive:
			return ExitMalformedArchive
		case store.ErrTypeVerification:
			return ExitVerifyFailed
		}
	}
	var startErr *process.StartError
	if errors.As(err, &startErr) {
		return ExitStartFailed
	}
	if transition.IsDefinitionError(err) {
		return ExitGraph
	}
	return ExitGeneral
}

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}
