package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dragonhoard/dragon/pkg/core"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <cave>",
	Short: "Watch a cave and rescan it as local files change",
	Long: `Observe a cave's mounted tree with filesystem notifications and merge
local changes into the catalog as they happen, debouncing bursts of events.

With --auto-push, every merged rescan is followed by a push of the cave.`,
	Example: `% dragon watch laptop --debounce 5s --auto-push`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hoard, done, err := newHoard()
		if err != nil {
			wrapFatalln("assemble engine", err)
			return
		}
		defer done()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = hoard.Watch(ctx, args[0],
			core.Debounce(dragonFlags.watch.Debounce),
			core.AutoPush(dragonFlags.watch.AutoPush),
		)
		if err != nil && ctx.Err() == nil {
			wrapFatalln("watch "+args[0], err)
			return
		}
		infoLogger.Println("watch stopped")
	},
}

func init() {
	addDebounceFlag(watchCmd)
	addAutoPushFlag(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
