// Package errmsg renders errors for the terminal with possible causes and
// actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tsukumogami/embeddb/internal/download"
	"github.com/tsukumogami/embeddb/internal/packageresolver"
	"github.com/tsukumogami/embeddb/internal/process"
	"github.com/tsukumogami/embeddb/internal/store"
	"github.com/tsukumogami/embeddb/internal/transition"
)

// ErrorContext provides additional context for error formatting
type ErrorContext struct {
	Command string // e.g. "mongod", used in suggested invocations
}

func (c *ErrorContext) command() string {
	if c == nil || c.Command == "" {
		return "<command>"
	}
	return c.Command
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	var unsupported *packageresolver.UnsupportedDistributionError
	if errors.As(err, &unsupported) {
		return render(msg,
			[]string{
				"No package is published for this version on this platform",
				"The version predates or postdates support for the OS release",
			},
			[]string{
				fmt.Sprintf("Run 'embeddb explain %s' to see which versions each platform supports", ctx.command()),
				"Override the platform with --os, --arch and --os-version",
			})
	}

	var tools *packageresolver.MissingToolsVersionError
	if errors.As(err, &tools) {
		return render(msg, nil, []string{
			"Pass --tools-version, or set tools_version with 'embeddb config set tools_version <version>'",
		})
	}

	var gde *transition.GraphDefinitionError
	if errors.As(err, &gde) {
		return render(msg, []string{"The launch graph is inconsistent; this is a bug"}, []string{
			"Report the issue together with 'embeddb explain --graph' output",
		})
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return formatStoreError(msg, storeErr)
	}

	var startErr *process.StartError
	if errors.As(err, &startErr) {
		return formatStartError(msg, startErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(msg, netErr.Timeout())
	}
	if isNetworkError(msg) {
		return formatNetworkError(msg, false)
	}

	if isPermissionError(msg) {
		return render(msg,
			[]string{"Insufficient permissions on the artifacts directory"},
			[]string{"Check ownership of ~/.embedmongo or point EMBEDDED_MONGO_ARTIFACTS elsewhere"})
	}

	return msg
}

func formatStoreError(msg string, err *store.Error) string {
	var causes []string
	switch err.Type {
	case store.ErrTypeDownloadFailed:
		var status *download.StatusError
		if errors.As(err, &status) && status.NotFound() {
			causes = append(causes,
				"The download origin has no archive at this path",
				"The rule tables list a version that was never published")
		} else {
			causes = append(causes, "Network connectivity issue", "Download origin temporarily unavailable")
		}
	case store.ErrTypeCacheWrite:
		causes = append(causes, "Disk full", "Insufficient permissions on the artifacts directory")
	case store.ErrTypeMalformedArchive:
		causes = append(causes, "Truncated or corrupted download", "Archive layout changed upstream")
	case store.ErrTypeVerification:
		causes = append(causes, "The archive was tampered with or is not the official build", "Wrong signing key configured")
	}

	suggestions := []string{err.Suggestion()}
	if err.Type == store.ErrTypeMalformedArchive {
		suggestions = append(suggestions, "Run 'embeddb cache clear' and retry")
	}
	if err.Retryable() {
		suggestions = append(suggestions, "Retry; nothing was left in the cache")
	}
	return render(msg, causes, suggestions)
}

func formatStartError(msg string, err *process.StartError) string {
	causes := []string{"The port is already in use", "The executable cannot run on this system"}
	if strings.Contains(err.Reason, "not found") {
		causes = []string{"The extracted files were removed while in use"}
	}
	out := render(msg, causes, []string{
		"Rerun with --debug to see the server output",
		"Choose a different --port",
	})
	if tail := strings.TrimSpace(err.Output); tail != "" {
		out += "\nProcess output (tail):\n" + indent(tail)
	}
	return out
}

func formatNetworkError(msg string, timeout bool) string {
	causes := []string{"Network connectivity issue", "DNS resolution failure"}
	if timeout {
		causes = []string{"Request timed out", "Slow or unstable network connection"}
	}
	causes = append(causes, "Firewall or proxy blocking the connection")

	suggestions := []string{"Check your internet connection", "Try again in a few minutes"}
	if timeout {
		suggestions = append(suggestions, "Raise EMBEDDB_DOWNLOAD_TIMEOUT")
	}
	suggestions = append(suggestions, "Use a mirror with EMBEDDB_DOWNLOAD_ORIGIN")
	return render(msg, causes, suggestions)
}

func render(msg string, causes, suggestions []string) string {
	var sb strings.Builder
	sb.WriteString(msg)
	sb.WriteString("\n")

	if len(causes) > 0 {
		sb.WriteString("\nPossible causes:\n")
		for _, c := range causes {
			sb.WriteString("  - " + c + "\n")
		}
	}
	if len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			if s != "" {
				sb.WriteString("  - " + s + "\n")
			}
		}
	}
	return sb.String()
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// isNetworkError checks if the error message indicates a network issue
func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "i/o timeout")
}

// isPermissionError checks if the error message indicates a permission issue
func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
