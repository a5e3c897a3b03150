package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aayushadhikari7/aegis/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <profile.yaml>",
	Short: "Validate a sandbox profile",
	Long: `Validate checks a profile against the schema and the runtime's host
API version, then prints the grants and limits it would produce.`,
	Args: cobra.ExactArgs(1),
	RunE: validateProfile,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateProfile(cmd *cobra.Command, args []string) error {
	profile, err := config.LoadProfile(args[0])
	if err != nil {
		return err
	}
	caps, err := profile.BuildCapabilities()
	if err != nil {
		return err
	}
	limits, err := profile.BuildLimits()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "profile %s is valid\n", profile.Metadata.Name)
	fmt.Fprintf(out, "grants (%d):\n", caps.Len())
	for _, line := range caps.Describe() {
		fmt.Fprintf(out, "  - %s\n", line)
	}
	fmt.Fprintf(out, "limits:\n")
	fmt.Fprintf(out, "  memory:  %d bytes\n", limits.MemoryBytesMax)
	fmt.Fprintf(out, "  tables:  %d elements\n", limits.TableElementsMax)
	fmt.Fprintf(out, "  fuel:    %d\n", limits.FuelMax)
	fmt.Fprintf(out, "  timeout: %s\n", limits.Timeout)
	return nil
}
