package commands

import (
	"github.com/spf13/cobra"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/services"
)

// NewSnapshotCmd builds the market snapshot of the latest staged listings.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Market snapshot of accepted listings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Keep high and medium confidence listings of the latest staging partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := services.NewMarketService(rt.logger, rt.lake).Snapshot()
			rt.finish(report)
			return err
		},
	})
	return cmd
}

// NewSummaryCmd builds the per-card market summary and prints the run overview.
func NewSummaryCmd() *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Per-card market statistics",
	}
	build := &cobra.Command{
		Use:   "build",
		Short: "Aggregate the latest snapshot under the latest leaderboard price date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if currency == "" {
				currency = rt.cfg.SummaryCurrency
			}
			summaries, err := services.NewMarketService(rt.logger, rt.lake).Summary(currency)
			rt.finish(models.StageReport{Stage: "summary", Processed: len(summaries), Accepted: len(summaries)})
			if err != nil {
				return err
			}

			priceDate, leaderboard, err := services.LatestLeaderboard(rt.lake)
			if err != nil {
				return err
			}
			insights := services.NewInsightService(rt.logger)
			insights.Print(insights.Generate(priceDate, leaderboard, summaries))
			return nil
		},
	}
	build.Flags().StringVar(&currency, "currency", "", "only summarize prices in this currency (default SUMMARY_CURRENCY)")
	cmd.AddCommand(build)
	return cmd
}
