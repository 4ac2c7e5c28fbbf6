package cmd

import (
	"github.com/spf13/cobra"
)

// caveCmd groups the commands managing the cave registry
var caveCmd = &cobra.Command{
	Use:   "cave",
	Short: "Commands to manage caves",
	Long: `Commands to manage the caves participating in the hoard.

A cave is one mounted storage location holding a subset of the hoard.`,
}

func init() {
	rootCmd.AddCommand(caveCmd)
}
