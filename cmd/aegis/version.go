package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aayushadhikari7/aegis/internal/version"
)

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aegis",
	Run: func(_ *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Printf("aegis version %s (host API %s)\n", info.Full(), info.HostAPI)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
