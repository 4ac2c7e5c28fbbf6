package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull <cave>",
	Short: "Scan a cave and merge what it holds into the catalog",
	Long: `Walk the cave's current filesystem tree, fingerprint what it finds and
merge the outcome into the catalog.

Partial scans are safe: if the device disconnects mid-scan, paths already
re-examined are merged and the rest keep their last-known state.`,
	Example: `% dragon pull laptop
pulled laptop: 2 added, 1 updated, 0 removed, 1510 unchanged`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hoard, done, err := newHoard()
		if err != nil {
			wrapFatalln("assemble engine", err)
			return
		}
		defer done()

		report, err := hoard.Pull(context.Background(), args[0])
		if err != nil {
			if report != nil && report.Incomplete {
				infoLogger.Printf("pull of %s incomplete: %d added, %d updated merged before failure",
					args[0], report.Added, report.Updated)
			}
			wrapFatalln("pull "+args[0], err)
			return
		}
		for _, scanErr := range report.Errors {
			infoLogger.Printf("  skipped %s: %v", scanErr.Path, scanErr.Err)
		}
		infoLogger.Printf("pulled %s: %d added, %d updated, %d removed, %d unchanged",
			args[0], report.Added, report.Updated, report.Removed, report.Unchanged)
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
