package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

type flagsT struct {
	cave struct {
		Name      string
		Path      string
		CaveType  string
		MinCopies int
	}
	policy struct {
		Rules   []string
		Replace bool
	}
	push struct {
		ChunkSize int64
		PlanOnly  bool
	}
	watch struct {
		Debounce time.Duration
		AutoPush bool
	}
	resolve struct {
		Cave string
	}
	root struct {
		logLevel string
	}
}

var dragonFlags = flagsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "loglevel"
	cmd.PersistentFlags().StringVar(&dragonFlags.root.logLevel, logLevel, "",
		"The logging level of the engine (debug, info, none)")
	return logLevel
}

func addCaveNameFlag(cmd *cobra.Command) string {
	name := "name"
	cmd.Flags().StringVar(&dragonFlags.cave.Name, name, "", "The name of the cave")
	_ = cmd.MarkFlagRequired(name)
	return name
}

func addCavePathFlag(cmd *cobra.Command) string {
	pth := "path"
	cmd.Flags().StringVar(&dragonFlags.cave.Path, pth, "",
		"The mounted filesystem path where the cave lives")
	_ = cmd.MarkFlagRequired(pth)
	return pth
}

func addCaveTypeFlag(cmd *cobra.Command) string {
	caveType := "type"
	cmd.Flags().StringVar(&dragonFlags.cave.CaveType, caveType, "partial",
		"The flavor of the cave: partial, backup or incoming")
	return caveType
}

func addMinCopiesFlag(cmd *cobra.Command) string {
	minCopies := "min-copies"
	cmd.Flags().IntVar(&dragonFlags.cave.MinCopies, minCopies, 1,
		"How many copies must exist elsewhere before a cleanup may remove the local one")
	return minCopies
}

func addRuleFlag(cmd *cobra.Command) string {
	rule := "rule"
	cmd.Flags().StringArrayVar(&dragonFlags.policy.Rules, rule, nil,
		"A policy rule in the form role:pattern[:match], evaluated in order, first match wins. "+
			"Roles are get, copy, cleanup; match is glob (default), prefix or regex")
	return rule
}

func addReplaceRulesFlag(cmd *cobra.Command) string {
	replace := "replace"
	cmd.Flags().BoolVar(&dragonFlags.policy.Replace, replace, false,
		"Replace the cave's rules instead of appending to them")
	return replace
}

func addChunkSizeFlag(cmd *cobra.Command) string {
	chunkSize := "chunk-size"
	cmd.Flags().Int64Var(&dragonFlags.push.ChunkSize, chunkSize, 0,
		"The transfer chunk size in bytes, which is also the checkpoint granularity of resumable copies")
	return chunkSize
}

func addPlanOnlyFlag(cmd *cobra.Command) string {
	planOnly := "plan-only"
	cmd.Flags().BoolVar(&dragonFlags.push.PlanOnly, planOnly, false,
		"Compute and print the action plan without executing it")
	return planOnly
}

func addDebounceFlag(cmd *cobra.Command) string {
	debounce := "debounce"
	cmd.Flags().DurationVar(&dragonFlags.watch.Debounce, debounce, 2*time.Second,
		"How long to wait after the last filesystem event before rescanning")
	return debounce
}

func addAutoPushFlag(cmd *cobra.Command) string {
	autoPush := "auto-push"
	cmd.Flags().BoolVar(&dragonFlags.watch.AutoPush, autoPush, false,
		"Run a push after every merged rescan")
	return autoPush
}

func addResolveCaveFlag(cmd *cobra.Command) string {
	cave := "cave"
	cmd.Flags().StringVar(&dragonFlags.resolve.Cave, cave, "",
		"The cave whose copy wins the divergence")
	_ = cmd.MarkFlagRequired(cave)
	return cave
}
