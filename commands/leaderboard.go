package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/services"
	"tcg-market-pipeline/storage"
)

// NewLeaderboardCmd groups the leaderboard stages.
func NewLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank cards by market price",
	}
	cmd.AddCommand(newLeaderboardBuildCmd(), newLeaderboardExportCmd())
	return cmd
}

func newLeaderboardBuildCmd() *cobra.Command {
	var priceDate, ingestionDate string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rank the top cards of a price date into weekly_top_tcg_cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			pd, err := optionalDate(priceDate)
			if err != nil {
				return err
			}
			id, err := resolveDate(ingestionDate)
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			source, release, err := rt.catalogSource()
			if err != nil {
				return err
			}
			defer release()

			entries, err := services.NewLeaderboardService(rt.logger, rt.lake).WithCatalog(source).Build(cmd.Context(), pd, id)
			rt.finish(models.StageReport{Stage: "leaderboard", Processed: len(entries), Accepted: len(entries)})
			return err
		},
	}
	dateFlags(cmd, &priceDate, &ingestionDate)
	return cmd
}

func newLeaderboardExportCmd() *cobra.Command {
	var priceDate, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a leaderboard partition to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			pd, err := optionalDate(priceDate)
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			pd, entries, err := leaderboardFor(rt.lake, pd)
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("weekly_top_tcg_cards_%s.csv", pd)
			}
			w, err := storage.NewCSVWriter(output)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.WriteLeaderboard(entries); err != nil {
				return err
			}
			rt.logger.Info("[leaderboard] %d rows of %s exported to %s", len(entries), pd, output)
			return nil
		},
	}
	dateFlags(cmd, &priceDate, nil)
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV file to write (default weekly_top_tcg_cards_<price_date>.csv)")
	return cmd
}
