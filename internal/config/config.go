package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EnvArtifactsDir overrides the base directory holding downloaded
	// archives and extracted file sets.
	EnvArtifactsDir = "EMBEDDED_MONGO_ARTIFACTS"

	// EnvDownloadOrigin overrides the prefix that package URL paths are
	// resolved against.
	EnvDownloadOrigin = "EMBEDDB_DOWNLOAD_ORIGIN"

	// EnvDownloadTimeout configures the timeout for a single archive download.
	EnvDownloadTimeout = "EMBEDDB_DOWNLOAD_TIMEOUT"

	// EnvStartTimeout configures how long a launched process may take to
	// become ready.
	EnvStartTimeout = "EMBEDDB_START_TIMEOUT"

	// EnvStopTimeout configures how long a stopping process is given before
	// it is killed.
	EnvStopTimeout = "EMBEDDB_STOP_TIMEOUT"

	// DefaultDownloadOrigin is where the official archives are published.
	DefaultDownloadOrigin = "https://fastdl.mongodb.org"

	// DefaultDownloadTimeout is the default timeout for an archive download (5 minutes)
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultStartTimeout is the default readiness timeout (20 seconds)
	DefaultStartTimeout = 20 * time.Second

	// DefaultStopTimeout is the default grace period before a kill (10 seconds)
	DefaultStopTimeout = 10 * time.Second

	defaultHomeName = ".embedmongo"
)

// GetDownloadOrigin returns the download origin from EMBEDDB_DOWNLOAD_ORIGIN,
// or DefaultDownloadOrigin. A trailing slash is removed so URL paths can be
// appended directly.
func GetDownloadOrigin() string {
	origin := strings.TrimSpace(os.Getenv(EnvDownloadOrigin))
	if origin == "" {
		return DefaultDownloadOrigin
	}
	return strings.TrimRight(origin, "/")
}

// GetDownloadTimeout returns the configured download timeout from EMBEDDB_DOWNLOAD_TIMEOUT.
// If not set or invalid, returns DefaultDownloadTimeout.
// Values are clamped to the range 10s..1h.
func GetDownloadTimeout() time.Duration {
	return durationFromEnv(EnvDownloadTimeout, DefaultDownloadTimeout, 10*time.Second, time.Hour)
}

// GetStartTimeout returns the configured start timeout from EMBEDDB_START_TIMEOUT.
// If not set or invalid, returns DefaultStartTimeout. Clamped to 1s..10m.
func GetStartTimeout() time.Duration {
	return durationFromEnv(EnvStartTimeout, DefaultStartTimeout, time.Second, 10*time.Minute)
}

// GetStopTimeout returns the configured stop timeout from EMBEDDB_STOP_TIMEOUT.
// If not set or invalid, returns DefaultStopTimeout. Clamped to 100ms..5m.
func GetStopTimeout() time.Duration {
	return durationFromEnv(EnvStopTimeout, DefaultStopTimeout, 100*time.Millisecond, 5*time.Minute)
}

// durationFromEnv parses a duration from the named variable, warning on
// stderr and falling back to def when the value is unusable.
func durationFromEnv(name string, def, lo, hi time.Duration) time.Duration {
	envValue := os.Getenv(name)
	if envValue == "" {
		return def
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			name, envValue, def)
		return def
	}

	if duration < lo {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n",
			name, duration, lo)
		return lo
	}
	if duration > hi {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n",
			name, duration, hi)
		return hi
	}

	return duration
}

// Config holds the on-disk layout.
type Config struct {
	HomeDir     string // $EMBEDDED_MONGO_ARTIFACTS or ~/.embedmongo
	ArchivesDir string // <home>/archives
	FileSetsDir string // <home>/fileSets
	ConfigFile  string // <home>/config.toml
}

// DefaultConfig returns the default configuration. The base directory is
// read from EMBEDDED_MONGO_ARTIFACTS once here; callers keep the returned
// value for the rest of the run.
func DefaultConfig() (*Config, error) {
	home := os.Getenv(EnvArtifactsDir)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, defaultHomeName)
	}
	return ForHome(home), nil
}

// ForHome returns the layout rooted at home.
func ForHome(home string) *Config {
	return &Config{
		HomeDir:     home,
		ArchivesDir: filepath.Join(home, "archives"),
		FileSetsDir: filepath.Join(home, "fileSets"),
		ConfigFile:  filepath.Join(home, "config.toml"),
	}
}

// EnsureDirectories creates all necessary directories
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.HomeDir, c.ArchivesDir, c.FileSetsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
