package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/version"
)

// addVersionCommand adds the version command
func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
	rootCmd.AddCommand(versionCmd)
}
