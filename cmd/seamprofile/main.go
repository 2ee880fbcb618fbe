// Command seamprofile serves and manages seam parameter profiles for the
// seam tracking controller.
package main

import (
	"os"
)

func main() {
	app := NewApp()
	rootCmd := app.CreateRootCommand()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
