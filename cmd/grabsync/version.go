package main

import (
	"github.com/spf13/cobra"

	"github.com/franksops/grabsync/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("grabsync version %s\n", config.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
