package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/launch"
	"github.com/tsukumogami/embeddb/internal/packageresolver"
)

var (
	explainCommand string
	explainGraph   bool
)

var explainCmd = &cobra.Command{
	Use:   "explain [command]",
	Short: "Show the resolution rules or the launch plan",
	Long: `Print the ordered platform rules used to resolve a command.
The first rule matching a distribution wins.

With --graph, print the order in which the launch states of a server
are built instead.

Examples:
  embeddb explain
  embeddb explain mongodump
  embeddb explain --graph`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := distFlags{command: explainCommand}
		if len(args) == 1 {
			f.command = args[0]
		}
		command, err := f.parseCommand()
		if err != nil {
			return err
		}

		if explainGraph {
			plan, err := launch.Server{Command: command}.Explain()
			if err != nil {
				return err
			}
			fmt.Println(plan)
			return nil
		}

		r, err := packageresolver.New(command)
		if err != nil {
			return err
		}
		fmt.Println(r.Explain())
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVarP(&explainCommand, "command", "c", "mongod", "Command whose rules to show")
	explainCmd.Flags().BoolVar(&explainGraph, "graph", false, "Show the launch plan instead of the rules")
}
