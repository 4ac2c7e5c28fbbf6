package cmd

import (
	"github.com/spf13/cobra"
)

// policyCmd groups the commands managing per-cave policies
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Commands to manage cave policies",
	Long: `Commands to manage the per-cave distribution rules.

Policies are data, owned by the configuration: neither reconciliation nor
transfers ever mutate them. Rules are evaluated in order, first match wins;
a path no rule matches is one the cave holds no opinion about.`,
}

func init() {
	rootCmd.AddCommand(policyCmd)
}
