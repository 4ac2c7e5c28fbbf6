package cmd

import (
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve a divergence in favor of one cave's copy",
	Long: `Collapse conflicting content for a logical path: the copy held by the
given cave becomes the hoard's content for that path, and every other cave
presenting different content re-fetches it on a later push.`,
	Example: `% dragon resolve /doc.txt --cave laptop`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hoard, done, err := newHoard()
		if err != nil {
			wrapFatalln("assemble engine", err)
			return
		}
		defer done()

		if err := hoard.Resolve(args[0], dragonFlags.resolve.Cave); err != nil {
			wrapFatalln("resolve "+args[0], err)
			return
		}
		infoLogger.Printf("resolved %s in favor of %s", args[0], dragonFlags.resolve.Cave)
	},
}

func init() {
	addResolveCaveFlag(resolveCmd)
	rootCmd.AddCommand(resolveCmd)
}
