package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/scraper/tcg"
	"tcg-market-pipeline/services"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// NewCatalogCmd groups the card catalog stages.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Acquire and build the card catalog and its price history",
	}
	cmd.AddCommand(
		newCatalogIngestCmd(false),
		newCatalogIngestCmd(true),
		newCatalogStageCmd(),
		newCatalogBuildCmd(),
		newCatalogSyncCmd(),
	)
	return cmd
}

func newCatalogIngestCmd(backfill bool) *cobra.Command {
	var ingestionDate string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every catalog page into the raw layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogIngest(cmd.Context(), ingestionDate, backfill)
		},
	}
	if backfill {
		cmd.Use = "backfill"
		cmd.Short = "Retry the pages recorded in the catalog failure ledger"
	}
	dateFlags(cmd, nil, &ingestionDate)
	return cmd
}

func runCatalogIngest(ctx context.Context, ingestionDate string, backfill bool) error {
	date, err := resolveDate(ingestionDate)
	if err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	client := tcg.NewClient(rt.cfg.TCGBaseURL, rt.cfg.TCGAPIKey, rt.httpClient())
	in := tcg.NewIngestor(client, rt.retry(utils.Linear), utils.NewPacer(rt.cfg.RateLimit()), rt.logger,
		rt.lake.Paths.RawTCGCards, rt.lake.Paths.FailedLedgers, rt.cfg.TCGPageSize)

	var report models.StageReport
	if backfill {
		report, err = in.Backfill(ctx, date)
	} else {
		report, err = in.Ingest(ctx, date)
	}
	rt.finish(report)
	if err != nil {
		return fmt.Errorf("catalog ingestion: %w", err)
	}
	return nil
}

func newCatalogStageCmd() *cobra.Command {
	var ingestionDate string

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Flatten raw catalog pages into staging cards and card prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := resolveDate(ingestionDate)
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := services.NewCatalogService(rt.logger, rt.lake).Stage(date)
			rt.finish(report)
			return err
		},
	}
	dateFlags(cmd, nil, &ingestionDate)
	return cmd
}

func newCatalogBuildCmd() *cobra.Command {
	var ingestionDate string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build card_master, the variant master and tcg_price_history",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := resolveDate(ingestionDate)
			if err != nil {
				return err
			}
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := services.NewCatalogService(rt.logger, rt.lake).Build(date)
			rt.finish(report)
			return err
		},
	}
	dateFlags(cmd, nil, &ingestionDate)
	return cmd
}

func newCatalogSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-postgres",
		Short: "Mirror the latest card_master partition into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			cards, err := rt.lake.Catalog().FetchAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading card_master: %w", err)
			}

			var writer storage.CatalogWriter
			writer, err = storage.NewPostgresCatalog(rt.cfg.DSN())
			if err != nil {
				return err
			}
			defer writer.Close()

			if err := writer.Write(cmd.Context(), cards); err != nil {
				return err
			}
			rt.logger.Info("[catalog] %d cards mirrored to PostgreSQL (table: card_master)", len(cards))
			return nil
		},
	}
}
