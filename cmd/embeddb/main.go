package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/buildinfo"
	"github.com/tsukumogami/embeddb/internal/log"
)

// Version is the current version of embeddb
var Version = buildinfo.Read().String()

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "embeddb",
	Short: "Download, cache and run MongoDB server binaries",
	Long: `embeddb resolves the MongoDB package for a version and platform,
downloads and extracts it into a shared content-addressed cache, and
starts the server from there.

Archives live under $EMBEDDED_MONGO_ARTIFACTS (default ~/.embedmongo).
Repeated runs and parallel processes reuse the same cached files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := determineLogLevel()
		log.SetDefault(log.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		// --quiet hides informational stdout lines too.
		if level == slog.LevelError {
			quietFlag = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log downloads, extractions and state construction")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log cache keys, lock waits and rule evaluation")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}

// determineLogLevel maps flags and EMBEDDB_* env vars to a level. Flags win
// over env vars; debug beats verbose beats quiet.
func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	case isTruthy(os.Getenv("EMBEDDB_DEBUG")):
		return slog.LevelDebug
	case isTruthy(os.Getenv("EMBEDDB_VERBOSE")):
		return slog.LevelInfo
	case isTruthy(os.Getenv("EMBEDDB_QUIET")):
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		exitWithCode(exitCodeFor(err))
	}
}
