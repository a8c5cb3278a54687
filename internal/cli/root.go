// Package cli defines Cobra command definitions for the skipper CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skipper-dev/skipper/internal/config"
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "skipper",
	Short: "Agent runtime for natural-language shell and coding requests",
	Long: `Skipper routes natural-language requests through a pipeline of
processing stages, keeps durable cross-session history, and can drive
interactive subprocesses on your behalf.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// With no subcommand, start the REPL on a TTY, show help otherwise.
		if !isTTY() {
			return cmd.Help()
		}
		return runChat(cmd, args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// isTTY returns true if stdin is connected to a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// loadConfig reads the project config, falling back to defaults when the
// project was never initialized.
func loadConfig(root string) *config.Config {
	cfg, err := config.ReadConfig(root)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print stage-level progress while processing")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(resetCmd)
}
