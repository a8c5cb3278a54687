// chat.go implements the interactive REPL: requests in, results out,
// one agent instance across the whole session.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skipper-dev/skipper/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive request loop",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("skipper ready. Type a request, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == "sessions" {
			infos := a.Controller().List()
			if len(infos) == 0 {
				fmt.Println("No sessions.")
			}
			for _, info := range infos {
				fmt.Printf("%s  %-14s %s\n", info.ID, info.State, info.Command)
			}
			continue
		}

		s, runErr := a.ProcessRequest(ctx, line)
		fmt.Println(s.Result.Response)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "request aborted: %v\n", runErr)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}
