package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var trialCmd = &cobra.Command{
	Use:   "trial <nct-id>",
	Short: "Fetch and translate a single trial by NCT identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nctID := args[0]

		e, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		match, err := e.Matcher.GetTrial(ctx, nctID)
		if err != nil {
			return err
		}
		if match == nil {
			return eris.Errorf("trial %s not found", nctID)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	},
}

func init() {
	rootCmd.AddCommand(trialCmd)
}
