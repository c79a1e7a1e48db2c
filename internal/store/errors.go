package store

import (
	"fmt"
)

// ErrorType classifies store failures.
type ErrorType int

const (
	// ErrTypeDownloadFailed indicates a network or remote IO failure while
	// fetching an archive. The caller may retry; the store never does.
	ErrTypeDownloadFailed ErrorType = iota
	// ErrTypeCacheWrite indicates a local disk or permission failure.
	ErrTypeCacheWrite
	// ErrTypeMalformedArchive indicates an archive that could not be read or
	// lacks a declared file entry.
	ErrTypeMalformedArchive
	// ErrTypeVerification indicates a downloaded archive that failed
	// signature verification.
	ErrTypeVerification
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeDownloadFailed:
		return "download failed"
	case ErrTypeCacheWrite:
		return "cache write failed"
	case ErrTypeMalformedArchive:
		return "malformed archive"
	case ErrTypeVerification:
		return "verification failed"
	default:
		return "store error"
	}
}

// Error provides structured information about a store failure.
type Error struct {
	Type    ErrorType
	Key     CacheKey
	URL     string // sanitized
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Type.String()
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain support
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool {
	return e.Type == ErrTypeDownloadFailed
}

// Suggestion returns an actionable suggestion for the user based on the error type.
func (e *Error) Suggestion() string {
	switch e.Type {
	case ErrTypeDownloadFailed:
		return "Check your internet connection and try again"
	case ErrTypeCacheWrite:
		return "Check free disk space and permissions of the artifacts directory (EMBEDDED_MONGO_ARTIFACTS)"
	case ErrTypeMalformedArchive:
		return "The published archive does not contain the expected files; try another version"
	case ErrTypeVerification:
		return "Check the signing key, or disable verify_signatures in config.toml"
	default:
		return ""
	}
}
