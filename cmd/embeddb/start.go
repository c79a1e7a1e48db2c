package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/progress"
)

var (
	startFlags      distFlags
	startHost       string
	startPort       int
	startShowOutput bool
)

var startCmd = &cobra.Command{
	Use:   "start <version>",
	Short: "Run a server from the cache until interrupted",
	Long: `Resolve, fetch and start a server, then wait for Ctrl-C.

The server runs in a fresh temporary working directory that is removed
when it stops. Cached archives and extracted files are kept.

Examples:
  embeddb start 4.4.0
  embeddb start 4.0.12 --port 27017 --show-output`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServer(&startFlags, args[0])
		if err != nil {
			return err
		}
		s.Host = startHost
		s.Port = startPort
		if startShowOutput {
			s.Stdout, s.Stderr = os.Stderr, os.Stderr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var out io.Writer = os.Stderr
		if quietFlag {
			out = io.Discard
		}
		spinner := progress.NewSpinner(out, !quietFlag && progress.IsTerminal(os.Stderr))
		spinner.Start(fmt.Sprintf("Starting %s %s", s.Command, s.Distribution.Version))
		inst, err := s.Start(ctx)
		if err != nil {
			spinner.Stop("")
			return err
		}
		spinner.Stop(fmt.Sprintf("%s listening on %s (pid %d)", s.Command, inst.Net().Addr(), inst.Process().PID()))
		printInfof("Working directory: %s\n", inst.WorkDir())

		select {
		case <-ctx.Done():
			printInfo("Stopping...")
		case <-inst.Process().Done():
			printInfo("Server exited")
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), config.GetStopTimeout()+launchStopGrace)
		defer cancel()
		return inst.Stop(stopCtx)
	},
}

// launchStopGrace leaves room for the forced kill after the stop timeout.
const launchStopGrace = 5 * time.Second

func init() {
	addDistFlags(startCmd, &startFlags)
	startCmd.Flags().StringVar(&startHost, "host", "127.0.0.1", "Address to bind")
	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "Port to listen on (default: a free port)")
	startCmd.Flags().BoolVar(&startShowOutput, "show-output", false, "Copy server output to stderr")
}
