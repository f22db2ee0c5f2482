package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/franksops/grabsync/config"
	"github.com/franksops/grabsync/engine"
	"github.com/franksops/grabsync/jobconfig"
	"github.com/franksops/grabsync/metrics"
	"github.com/franksops/grabsync/provider"
	"github.com/franksops/grabsync/store"
	"github.com/franksops/grabsync/ui"
)

const (
	historyFile = "history.db"
	logFile     = "grabsync.log"
)

var (
	tuiEnabled  bool
	metricsAddr string
)

var syncCmd = &cobra.Command{
	Use:   "sync [path...]",
	Short: "Transfer the configured content paths",
	Long: `Builds one job per configured path and runs them against the client repository.
Paths configured for delta transfer only copy content changed since their last
completed run. If paths are provided, only those configurations run.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&tuiEnabled, "tui", false, "show live progress (logs go to the state directory)")
	syncCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Client.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	if tuiEnabled {
		f, err := os.OpenFile(filepath.Join(cfg.Client.StateDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := config.SetupLogger(cfg.Log, debug, logOut)

	paths, err := selectPaths(cfg.PathConfigurations, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := store.NewBoltStore(filepath.Join(cfg.Client.StateDir, historyFile))
	if err != nil {
		return err
	}
	defer s.Close()

	history, err := engine.AbandonInterrupted(s, cfg.Client.Username, logger)
	if err != nil {
		return err
	}

	dst, err := provider.FromLocation(ctx, cfg.Client.Destination)
	if err != nil {
		return fmt.Errorf("failed to create destination provider: %w", err)
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	runner, err := engine.NewRunner(engine.RunnerConfig{
		Store:       s,
		Destination: dst,
		Source: provider.SourceOptions{
			Bucket: cfg.Server.Bucket,
			Root:   cfg.Server.Root,
		},
		Workers:           cfg.Transfer.Workers,
		BufferSize:        cfg.Transfer.BufferSize,
		MaxItemsPerSecond: cfg.Transfer.MaxItemsPerSecond,
		Metrics:           metrics.NewTransfer(reg),
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	for _, pc := range paths {
		txID, err := s.NextTransactionID()
		if err != nil {
			cancel()
			_ = runner.Wait()
			return err
		}

		job, err := jobconfig.New(runner, jobconfig.WithLogger(logger)).
			Server(cfg.Server.Scheme, cfg.Server.Host, cfg.Server.Port).
			Credentials(cfg.Client.Username, cfg.Server.Username, cfg.Server.Password).
			History(history).
			Configuration(pc, txID).
			Build()
		if err == nil {
			_, err = job.Start(ctx)
		}
		if err != nil {
			cancel()
			_ = runner.Wait()
			return err
		}
	}

	done := make(chan error, 1)
	go func() { done <- runner.Wait() }()

	var runErr error
	if tuiEnabled {
		runErr = runTUI(runner, cfg.Transfer.Workers, done, cancel, logger)
	} else {
		runErr = <-done
	}

	for _, p := range runner.Snapshot() {
		cmd.Printf("#%d %s %s: %s, %d files, %d properties withheld\n",
			p.ExecutionID, p.JobName, p.Path, p.Status, p.Files, p.PropertiesDropped)
	}
	return runErr
}

// selectPaths keeps the configurations named in args, or all of them. A path
// named twice runs once.
func selectPaths(all []jobconfig.PathConfiguration, args []string) ([]jobconfig.PathConfiguration, error) {
	if len(args) == 0 {
		return all, nil
	}
	var (
		out  []jobconfig.PathConfiguration
		seen []string
	)
	for _, arg := range args {
		i := slices.IndexFunc(all, func(pc jobconfig.PathConfiguration) bool { return pc.Path == arg })
		if i < 0 {
			return nil, fmt.Errorf("path %s is not configured", arg)
		}
		if slices.Contains(seen, arg) {
			continue
		}
		seen = append(seen, arg)
		out = append(out, all[i])
	}
	return out, nil
}

// runTUI shows live progress until every execution finished. Quitting the UI
// early stops the running executions.
func runTUI(runner *engine.Runner, workers int, done <-chan error, cancel context.CancelFunc, logger *slog.Logger) error {
	p := tea.NewProgram(ui.NewTUIModel(ui.NewUIState(runner.Snapshot(), workers, time.Now())), tea.WithAltScreen())

	result := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case err := <-done:
				state := ui.NewUIState(runner.Snapshot(), workers, time.Now())
				state.Done = true
				p.Send(ui.TUIUpdateMsg{State: state})
				result <- err
				return
			case <-ticker.C:
				p.Send(ui.TUIUpdateMsg{State: ui.NewUIState(runner.Snapshot(), workers, time.Now())})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		logger.Warn("terminal UI failed", "error", err)
	}
	cancel()
	return <-result
}
