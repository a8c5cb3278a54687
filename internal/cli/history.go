// history.go implements the "skipper history" and "skipper reset"
// commands over the persistent context store.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skipper-dev/skipper/internal/config"
	"github.com/skipper-dev/skipper/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent request history",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all persisted history",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

func openStore() (*history.Store, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	cfg := loadConfig(root)

	dbPath := cfg.Store.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(config.Dir(root), dbPath)
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ReadRecent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	for _, rec := range records {
		if rec.Kind == history.KindSummary {
			fmt.Printf("%6d  [summary of %d-%d] %s\n", rec.ID, rec.SpanStart, rec.SpanEnd, rec.ResultSummary)
			continue
		}
		fmt.Printf("%6d  %s  %s  (%s)\n",
			rec.ID, rec.Timestamp.Format("2006-01-02 15:04"), rec.Request, rec.ResultSummary)
	}
	return nil
}

func runReset(_ *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("History cleared.")
	return nil
}
