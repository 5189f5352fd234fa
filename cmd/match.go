package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/model"
)

var (
	matchAge         int
	matchConditions  []string
	matchMedications []string
	matchCity        string
	matchState       string
	matchCountry     string
	matchZip         string
	matchSmoking     bool
	matchDrinking    string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find matching trials for a patient profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		profile, err := model.NewUserProfile(
			matchAge,
			matchConditions,
			matchMedications,
			model.Location{
				City:    matchCity,
				State:   matchState,
				Country: matchCountry,
				ZipCode: matchZip,
			},
			model.Lifestyle{
				Smoking:  matchSmoking,
				Drinking: model.DrinkingHabit(matchDrinking),
			},
		)
		if err != nil {
			return err
		}

		e, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Matcher.FindMatches(ctx, profile)
		if err != nil {
			return err
		}

		zap.L().Info("matching finished",
			zap.Int("matches", len(result.Matches)),
			zap.Bool("cached", result.Cached),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	matchCmd.Flags().IntVar(&matchAge, "age", 0, "patient age (required)")
	matchCmd.Flags().StringSliceVar(&matchConditions, "condition", nil, "medical condition (repeatable, required)")
	matchCmd.Flags().StringSliceVar(&matchMedications, "medication", nil, "current medication (repeatable)")
	matchCmd.Flags().StringVar(&matchCity, "city", "", "home city (required)")
	matchCmd.Flags().StringVar(&matchState, "state", "", "home state abbreviation (required)")
	matchCmd.Flags().StringVar(&matchCountry, "country", "", "home country (default United States)")
	matchCmd.Flags().StringVar(&matchZip, "zip", "", "postal code")
	matchCmd.Flags().BoolVar(&matchSmoking, "smoking", false, "patient smokes")
	matchCmd.Flags().StringVar(&matchDrinking, "drinking", "", "drinking habit: never, occasional, regular")

	matchCmd.MarkFlagRequired("age")       //nolint:errcheck
	matchCmd.MarkFlagRequired("condition") //nolint:errcheck
	matchCmd.MarkFlagRequired("city")      //nolint:errcheck
	matchCmd.MarkFlagRequired("state")     //nolint:errcheck

	rootCmd.AddCommand(matchCmd)
}
