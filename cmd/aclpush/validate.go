package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/render"
	"github.com/netops-tools/aclpush/internal/ruleset"
	"github.com/netops-tools/aclpush/internal/validation"
)

var validateFlags struct {
	rulesFile    string
	showCommands bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a ruleset without touching any device",
	Long: `Validate parses and normalizes the ruleset, then reports syntax
errors, conflicts, shadowed rules, duplicates, and overlaps. The exit status
is 0 only if no error-severity finding exists.`,
	RunE: doValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.rulesFile, "rules", "", "JSON file holding the ruleset (required)")
	validateCmd.Flags().BoolVar(&validateFlags.showCommands, "commands", false, "print the commands the ruleset renders to")
	_ = validateCmd.MarkFlagRequired("rules")
}

func doValidate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(validateFlags.rulesFile)
	if err != nil {
		return err
	}
	defer f.Close()

	rules, err := ruleset.ParseRulesJSON(f)
	if err != nil {
		return err
	}

	result := validation.Validate(rules)
	for _, f := range result.Findings {
		fmt.Printf("%s %s (rules %v)\n", severityText(f.Severity), f.Message, f.RuleIndexes)
	}

	if !result.Valid {
		fmt.Printf("\n%d rule(s), ruleset is %s\n", len(rules), color.RedString("invalid"))
		os.Exit(1)
	}

	if validateFlags.showCommands {
		for _, c := range render.RuleSet(rules) {
			fmt.Println(c)
		}
	}
	fmt.Printf("%d rule(s), ruleset is %s\n", len(rules), color.GreenString("valid"))
	return nil
}

func severityText(s domain.Severity) string {
	if s == domain.SeverityError {
		return color.RedString("error:")
	}
	return color.YellowString("warning:")
}
