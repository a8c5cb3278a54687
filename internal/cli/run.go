// run.go implements the "skipper run" command: process one request and
// print its result.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skipper-dev/skipper/internal/agent"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Process a single natural-language request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	cfg := loadConfig(root)

	a, err := agent.New(cfg, root, agent.Options{})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	}()

	// Ctrl-C cancels the in-flight run; session cleanup follows from the
	// cancellation.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, runErr := a.ProcessRequest(ctx, args[0])
	fmt.Println(s.Result.Response)
	if runErr != nil {
		return fmt.Errorf("request aborted: %w", runErr)
	}
	return nil
}
