// Package cmd wires the cobra commands: the chat TUI, model management and
// the Slurm cluster helper.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "termchat",
	Short:         "Terminal chat for local models served by Ollama",
	Long:          "termchat is a terminal chat front-end for a local Ollama server,\nwith a helper to run the same stack on a Slurm cluster over SSH.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(func() {
		// .env may carry OLLAMA_HOST or CLUSTERS_FILE; absence is fine.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().String("host", "", "Ollama server (default $OLLAMA_HOST or http://localhost:11434)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(clusterCmd)
}

// routeArgs defaults an invocation without a subcommand to `chat`, so both
// `termchat` and `termchat --host X` open the chat UI. Help and completion
// requests pass through untouched.
func routeArgs(args []string) []string {
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return args
		}
	}
	cmd, _, err := rootCmd.Find(args)
	if err != nil || cmd != rootCmd {
		return args
	}
	return append([]string{"chat"}, args...)
}

func Execute() {
	rootCmd.SetArgs(routeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	return 1
}
