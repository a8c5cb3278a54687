// sessions.go implements "skipper init" and "skipper sessions".
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skipper-dev/skipper/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .skipper/config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		root, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		if _, err := config.ReadConfig(root); err == nil {
			return fmt.Errorf(".skipper/config.yaml already exists")
		}
		if err := config.WriteConfig(root, config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Println("Initialized .skipper/config.yaml")
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List interactive sessions of the current process",
	Long: `Sessions live inside one skipper process; this command is useful from
the chat REPL's host process, where the controller registry is populated.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// A fresh CLI process has an empty registry by construction.
		fmt.Println("No sessions in this process. Interactive sessions are listed in chat via 'sessions'.")
		return nil
	},
}
