package cmd

import (
	"github.com/spf13/cobra"
)

var policyList = &cobra.Command{
	Use:   "list <cave>",
	Short: "List the policy rules of a cave",
	Long:  `List a cave's rules, in evaluation order`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cave, found := config.cave(args[0])
		if !found {
			wrapFatalWithCodef(1, "no cave registered as %q", args[0])
			return
		}
		for i, rule := range cave.Rules {
			infoLogger.Printf("%3d: %s", i+1, rule)
		}
	},
}

func init() {
	policyCmd.AddCommand(policyList)
}
