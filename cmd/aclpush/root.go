package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netops-tools/aclpush/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "aclpush",
	Short: "Validate and roll out ACL rulesets to network devices",
	Long: `aclpush validates numbered ACL rulesets for conflicts and shadowed
rules, then rolls them out across a device fleet: every device is backed up
before the first change, applied changes are verified against the running
configuration, and any failure rolls the device back to its backup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadJSONFile decodes a JSON file into v.
func loadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// loadRules reads a rule record file: a JSON array of raw rules.
func loadRules(path string) ([]domain.RawRule, error) {
	var rules []domain.RawRule
	if err := loadJSONFile(path, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}
