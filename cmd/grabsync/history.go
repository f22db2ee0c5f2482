package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franksops/grabsync/config"
	"github.com/franksops/grabsync/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List job executions of the configured client",
	Long: `Lists the recorded executions of the configured client in id order.
If a path is provided, only executions of that path are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	config.SetupLogger(cfg.Log, debug, cmd.ErrOrStderr())

	s, err := store.NewBoltStore(filepath.Join(cfg.Client.StateDir, historyFile))
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.ListExecutions(cfg.Client.Username)
	if err != nil {
		return err
	}

	cmd.Printf("%-6s %-22s %-10s %-24s %-24s %8s %8s  %s\n",
		"ID", "JOB", "STATUS", "STARTED", "ENDED", "FILES", "DROPPED", "PATH")
	for _, rec := range records {
		if len(args) > 0 && rec.Path != args[0] {
			continue
		}
		cmd.Printf("%-6d %-22s %-10s %-24s %-24s %8d %8d  %s\n",
			rec.ID, rec.JobName, rec.Status, formatTime(rec.StartTime), formatTime(rec.EndTime),
			rec.FilesTransferred, rec.PropertiesDropped, rec.Path)
		if rec.ExitMessage != "" {
			cmd.Printf("%6s %s\n", "", fmt.Sprintf("exit: %s", rec.ExitMessage))
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
