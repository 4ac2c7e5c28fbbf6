package cmd

import (
	"github.com/dragonhoard/dragon/pkg/policy"

	"github.com/spf13/cobra"
)

var policySet = &cobra.Command{
	Use:   "set <cave>",
	Short: "Set policy rules for a cave",
	Long: `Append rules to a cave's policy, or replace it entirely with --replace.

Each rule maps a path pattern to a role: get pulls matching paths into the
cave, copy maintains redundant copies there, cleanup removes them once enough
copies exist elsewhere.`,
	Example: `% dragon policy set laptop --rule 'get:/photos/**'
% dragon policy set nas --rule 'copy:/photos/**' --rule 'cleanup:/tmp/**'
% dragon policy set attic --replace --rule 'cleanup:/old/:prefix'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cave, found := config.cave(args[0])
		if !found {
			wrapFatalWithCodef(1, "no cave registered as %q", args[0])
			return
		}
		rules := make([]policy.Rule, 0, len(dragonFlags.policy.Rules))
		for _, spec := range dragonFlags.policy.Rules {
			rule, err := policy.ParseRule(spec)
			if err != nil {
				wrapFatalln("parse rule", err)
				return
			}
			rules = append(rules, rule)
		}
		if dragonFlags.policy.Replace {
			cave.Rules = rules
		} else {
			cave.Rules = append(cave.Rules, rules...)
		}
		if err := config.save(); err != nil {
			wrapFatalln("save configuration", err)
			return
		}
		infoLogger.Printf("cave %s now has %d rules", cave.Name, len(cave.Rules))
	},
}

func init() {
	addRuleFlag(policySet)
	addReplaceRulesFlag(policySet)
	policyCmd.AddCommand(policySet)
}
