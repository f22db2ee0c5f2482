package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franksops/grabsync/config"
)

var (
	// Store the result of binding cobra flags
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "grabsync",
	Short: "Pull content subtrees from a source repository",
	Long: `
grabsync copies configured content paths from a source system into a client
repository. A path that ran before can be transferred incrementally: only
content changed since the last completed run is copied.
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file location (default: "+config.DefaultPath+", respects "+config.EnvConfig+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "display debug output")
}

// readConfig resolves and reads the configuration file.
func readConfig() (*config.Config, error) {
	p, err := config.Resolve(configPath)
	if err != nil {
		return nil, fmt.Errorf("grabsync: %w", err)
	}
	cfg, err := config.Load(p)
	if err != nil {
		return nil, fmt.Errorf("grabsync: %w", err)
	}
	return cfg, nil
}
