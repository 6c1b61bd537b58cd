package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules <rules_file>",
	Short: "Validate and print a design rules file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := rules.ParseFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rs.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// loadRules reads the rules file at path. An empty path gives the
// defaults.
func loadRules(path string) (*rules.RuleSet, error) {
	if path == "" {
		return rules.Default(), nil
	}
	rs, err := rules.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("error parsing rules: %w", err)
	}
	return rs, nil
}
