package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/config"
	"tcg-market-pipeline/metrics"
	"tcg-market-pipeline/models"
	"tcg-market-pipeline/services"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

const (
	dateLayout  = "2006-01-02"
	pushJobName = "card_pipeline"
	httpTimeout = 30 * time.Second
)

// runtime is what every stage needs: configuration, a logger and the lake.
type runtime struct {
	cfg    *config.Config
	logger *utils.Logger
	lake   *storage.Lake
}

func newRuntime() (*runtime, error) {
	cfg := config.Load()
	logger := utils.NewLogger()

	lake, err := storage.NewLake(cfg.Paths())
	if err != nil {
		return nil, fmt.Errorf("opening lake: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, lake: lake}, nil
}

func (rt *runtime) close() {
	rt.logger.Sync()
}

func (rt *runtime) retry(b utils.Backoff) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts: rt.cfg.MaxRetries,
		BaseDelay:   rt.cfg.RetryBase(),
		Backoff:     b,
		Logger:      rt.logger,
	}
}

func (rt *runtime) httpClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// catalogSource opens the configured catalog: the lake's card_master, or its
// PostgreSQL mirror when CATALOG_SOURCE=postgres. The returned func releases it.
func (rt *runtime) catalogSource() (storage.CatalogSource, func(), error) {
	if rt.cfg.CatalogSource != "postgres" {
		return rt.lake.Catalog(), func() {}, nil
	}
	pg, err := storage.NewPostgresCatalog(rt.cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

// catalogIndex loads the resolution catalog from the configured source.
func (rt *runtime) catalogIndex(ctx context.Context) (*services.CatalogIndex, error) {
	source, release, err := rt.catalogSource()
	if err != nil {
		return nil, err
	}
	defer release()

	cards, err := source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	rt.logger.Info("[catalog] %d cards loaded from %s", len(cards), rt.cfg.CatalogSource)
	return services.NewCatalogIndex(cards), nil
}

// finish prints the stage summary, records it and pushes the counters.
func (rt *runtime) finish(r models.StageReport) {
	services.NewInsightService(rt.logger).PrintStage(r)
	metrics.ObserveStage(r)
	if err := metrics.Push(rt.cfg.PushgatewayURL, pushJobName); err != nil {
		rt.logger.Warn("[metrics] %v", err)
	}
}

// dateFlags registers --price-date and --ingestion-date on cmd.
func dateFlags(cmd *cobra.Command, priceDate, ingestionDate *string) {
	if priceDate != nil {
		cmd.Flags().StringVar(priceDate, "price-date", "", "price date partition (YYYY-MM-DD, default latest)")
	}
	if ingestionDate != nil {
		cmd.Flags().StringVar(ingestionDate, "ingestion-date", "", "ingestion date partition (YYYY-MM-DD, default today)")
	}
}

// resolveDate checks a user supplied date, or returns today when empty.
func resolveDate(v string) (string, error) {
	if v == "" {
		return time.Now().UTC().Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	return v, nil
}

// optionalDate checks a user supplied date and keeps it empty when absent.
func optionalDate(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	return resolveDate(v)
}
