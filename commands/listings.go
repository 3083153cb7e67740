package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/scraper/ebay"
	"tcg-market-pipeline/services"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// NewListingsCmd groups the marketplace listing stages.
func NewListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Acquire and stage marketplace listings for the top ranked cards",
	}
	cmd.AddCommand(
		newListingsIngestCmd(false),
		newListingsIngestCmd(true),
		newListingsStageCmd(),
	)
	return cmd
}

func newListingsIngestCmd(backfill bool) *cobra.Command {
	var priceDate, ingestionDate string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Search listings for the top cards of the latest leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListingsIngest(cmd.Context(), priceDate, ingestionDate, backfill)
		},
	}
	if backfill {
		cmd.Use = "backfill"
		cmd.Short = "Retry the cards recorded in the listings failure ledger"
	}
	dateFlags(cmd, &priceDate, &ingestionDate)
	return cmd
}

func runListingsIngest(ctx context.Context, priceDate, ingestionDate string, backfill bool) error {
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

	pd, entries, err := leaderboardFor(rt.lake, pd)
	if err != nil {
		return fmt.Errorf("reading leaderboard: %w", err)
	}
	catalog, err := rt.catalogIndex(ctx)
	if err != nil {
		return err
	}
	targets := buildTargets(entries, catalog, rt.cfg.TopNCards, rt.logger)
	rt.logger.Info("[ebay] price_date=%s: %d cards to search", pd, len(targets))

	httpClient := rt.httpClient()
	auth := ebay.NewTokenCache(rt.cfg.EbayClientID, rt.cfg.EbayClientSecret, rt.cfg.EbayTokenURL, rt.cfg.EbayScope, httpClient)
	client := ebay.NewClient(auth, rt.cfg.EbaySearchURL, rt.cfg.EbayCategoryID, httpClient, rt.retry(utils.Exponential), rt.logger)
	in := ebay.NewIngestor(client, rt.logger, utils.NewPacer(rt.cfg.RateLimit()),
		rt.lake.Paths.RawEbayListings, rt.lake.Paths.FailedLedgers, ebay.IngestOptions{
			PageSize:   rt.cfg.EbayPageSize,
			MaxResults: rt.cfg.EbayMaxResults,
			MaxPages:   rt.cfg.EbayMaxPages,
		})

	var report models.StageReport
	if backfill {
		report, err = in.Backfill(ctx, targets, pd, id)
	} else {
		report, err = in.Ingest(ctx, targets, pd, id)
	}
	rt.finish(report)
	if err != nil {
		return fmt.Errorf("listing ingestion: %w", err)
	}
	return nil
}

// leaderboardFor reads the leaderboard of priceDate, or the latest one when empty.
func leaderboardFor(lake *storage.Lake, priceDate string) (string, []models.LeaderboardEntry, error) {
	if priceDate == "" {
		return services.LatestLeaderboard(lake)
	}
	entries, err := lake.Leaderboard.Read(storage.PriceDate(priceDate))
	if err != nil {
		return "", nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return priceDate, entries, nil
}

// buildTargets turns the first topN ranked entries into search targets.
// Entries whose card is missing from the catalog are skipped.
func buildTargets(entries []models.LeaderboardEntry, catalog *services.CatalogIndex, topN int, logger *utils.Logger) []ebay.Target {
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}

	targets := make([]ebay.Target, 0, len(entries))
	for _, e := range entries {
		card, ok := catalog.Lookup(e.CardID)
		if !ok {
			logger.Warn("[ebay] %s: ranked card missing from card_master, skipping", e.CardID)
			continue
		}
		targets = append(targets, ebay.Target{CardID: card.CardID, Query: ebay.BuildQuery(card)})
	}
	return targets
}

func newListingsStageCmd() *cobra.Command {
	var priceDate, ingestionDate string

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Resolve raw listings against the catalog into staging",
		RunE: func(cmd *cobra.Command, args []string) error {
			pd, err := optionalDate(priceDate)
			if err != nil {
				return err
			}
			id, err := optionalDate(ingestionDate)
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			raw := rt.lake.Paths.RawEbayListings
			if pd, id, err = rawPartition(raw, pd, id); err != nil {
				return err
			}

			catalog, err := rt.catalogIndex(cmd.Context())
			if err != nil {
				return err
			}
			report, err := services.NewListingStager(rt.logger, catalog, raw, rt.lake.StagedListings).Stage(pd, id)
			rt.finish(report)
			return err
		},
	}
	dateFlags(cmd, &priceDate, &ingestionDate)
	cmd.Flags().Lookup("ingestion-date").Usage = "ingestion date partition (YYYY-MM-DD, default latest)"
	return cmd
}

// rawPartition fills in the newest raw partition for whichever date is empty.
func rawPartition(raw, priceDate, ingestionDate string) (string, string, error) {
	var err error
	if priceDate == "" {
		var latestIngestion string
		if priceDate, latestIngestion, err = services.LatestRawPartition(raw); err != nil {
			return "", "", err
		}
		if ingestionDate == "" {
			ingestionDate = latestIngestion
		}
	}
	if ingestionDate == "" {
		dir := storage.PartitionDir(raw, storage.PriceDate(priceDate))
		if ingestionDate, err = storage.LatestPartition(dir, "ingestion_date"); err != nil {
			return "", "", err
		}
	}
	return priceDate, ingestionDate, nil
}
