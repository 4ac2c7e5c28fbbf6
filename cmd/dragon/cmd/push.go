package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dragonhoard/dragon/pkg/core"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"
)

var pushCmd = &cobra.Command{
	Use:   "push <cave>",
	Short: "Reconcile a cave and run the resulting transfers",
	Long: `Compute the cave's action plan (gets and copies before cleanups) and
execute it, streaming per-task progress.

Interrupted copies leave a checkpoint behind and resume on the next push.
Failures are scoped to the action they concern: one failing transfer never
aborts the rest of the plan.`,
	Example: `% dragon push nas
get /photos/img1.jpg from laptop: 100.0% of 2.1MB
done: 1 succeeded, 0 failed`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hoard, done, err := newHoard()
		if err != nil {
			wrapFatalln("assemble engine", err)
			return
		}
		defer done()
		ctx := context.Background()

		if dragonFlags.push.PlanOnly {
			plan, err := hoard.Plan(ctx, args[0])
			if err != nil {
				wrapFatalln("plan "+args[0], err)
				return
			}
			b, err := yaml.Marshal(plan)
			if err != nil {
				wrapFatalln("marshal plan", err)
				return
			}
			infoLogger.Print(string(b))
			return
		}

		events, plan, err := hoard.Push(ctx, args[0])
		if err != nil {
			wrapFatalln("push "+args[0], err)
			return
		}
		reportAttention(plan.Unsatisfiable, "wanted here but nowhere to get from")
		reportAttention(plan.WithheldCleanups, "cleanup withheld, would drop the last copies")
		reportAttention(plan.DivergentPaths, "diverged, resolve before it reconciles")

		succeeded, failed := 0, 0
		for ev := range events {
			switch ev.Kind {
			case core.TaskStarted:
				resumed := ""
				if ev.Resumed {
					resumed = fmt.Sprintf(" (resuming at %s)", units.HumanSize(float64(ev.BytesDone)))
				}
				infoLogger.Printf("%s %s%s", ev.Action.Kind, ev.Action.Path, sourceSuffix(ev)+resumed)
			case core.TaskProgress:
				infoLogger.Printf("  %s: %s", ev.Action.Path, progressLine(ev))
			case core.TaskDone:
				succeeded++
				infoLogger.Printf("  %s: done (%s)", ev.Action.Path, units.HumanSize(float64(ev.BytesTotal)))
			case core.TaskFailed:
				failed++
				infoLogger.Printf("  %s: failed: %v", ev.Action.Path, ev.Err)
			}
		}
		infoLogger.Printf("done: %d succeeded, %d failed", succeeded, failed)
		if failed > 0 {
			osExit(1)
		}
	},
}

func sourceSuffix(ev core.TaskEvent) string {
	if ev.Action.SourceCave == "" {
		return ""
	}
	return " from " + ev.Action.SourceCave
}

// progressLine renders percentage, throughput and a derived ETA from the raw
// byte counts the engine reports
func progressLine(ev core.TaskEvent) string {
	if ev.BytesTotal <= 0 {
		return units.HumanSize(float64(ev.BytesDone))
	}
	pct := 100 * float64(ev.BytesDone) / float64(ev.BytesTotal)
	elapsed := time.Since(ev.Started)
	line := fmt.Sprintf("%.1f%% of %s", pct, units.HumanSize(float64(ev.BytesTotal)))
	if elapsed > 0 && ev.BytesDone > 0 && ev.BytesDone < ev.BytesTotal {
		rate := float64(ev.BytesDone) / elapsed.Seconds()
		eta := time.Duration(float64(ev.BytesTotal-ev.BytesDone)/rate) * time.Second
		line += fmt.Sprintf(" (%s/s, ETA %s)", units.HumanSize(rate), eta)
	}
	return line
}

func reportAttention(paths []string, reason string) {
	for _, pth := range paths {
		infoLogger.Printf("needs attention: %s: %s", pth, reason)
	}
}

func init() {
	addChunkSizeFlag(pushCmd)
	addPlanOnlyFlag(pushCmd)
	rootCmd.AddCommand(pushCmd)
}
