package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// LedgerSource names the failure ledger of listing acquisition.
const LedgerSource = "ebay_listings"

// Searcher is the part of Client used by the ingestor.
type Searcher interface {
	FetchAll(ctx context.Context, query string, pageSize, maxResults, maxPages int) (*SearchResult, error)
}

// Target is one catalog card to search listings for.
type Target struct {
	CardID string
	Query  string
}

// BuildQuery renders the search text for a card: name, printed number and set.
func BuildQuery(card models.CatalogCard) string {
	return card.CardName + " " + card.CardNumber() + " " + card.SetName
}

// IngestOptions bounds the search for each card.
type IngestOptions struct {
	PageSize   int
	MaxResults int
	MaxPages   int
}

// Ingestor fetches listings per card and writes one raw document per card.
type Ingestor struct {
	search    Searcher
	logger    *utils.Logger
	pacer     *utils.Pacer
	rawRoot   string
	ledgerDir string
	opts      IngestOptions
	now       func() time.Time
}

// NewIngestor creates an ingestor writing under rawRoot and ledgerDir.
func NewIngestor(search Searcher, logger *utils.Logger, pacer *utils.Pacer, rawRoot, ledgerDir string, opts IngestOptions) *Ingestor {
	return &Ingestor{
		search:    search,
		logger:    logger,
		pacer:     pacer,
		rawRoot:   rawRoot,
		ledgerDir: ledgerDir,
		opts:      opts,
		now:       time.Now,
	}
}

// Ingest searches every target. A failing card is recorded in the ledger and
// the next card is still processed; only an AuthError stops the run.
func (in *Ingestor) Ingest(ctx context.Context, targets []Target, priceDate, ingestionDate string) (models.StageReport, error) {
	ledger := storage.NewLedger(LedgerSource)
	return in.run(ctx, targets, ledger, priceDate, ingestionDate)
}

// Backfill retries the cards listed in the ledger of ingestionDate. targets
// must cover those cards; others are ignored. The ledger is rewritten with
// the cards that still fail, or removed when all succeed.
func (in *Ingestor) Backfill(ctx context.Context, targets []Target, priceDate, ingestionDate string) (models.StageReport, error) {
	path := storage.LedgerPath(in.ledgerDir, LedgerSource, ingestionDate)
	ledger, err := storage.LoadLedger(path)
	if err != nil {
		return models.StageReport{Stage: "ebay-backfill"}, err
	}

	pending := make(map[string]bool, len(ledger.FailedItems))
	for _, id := range ledger.FailedItems {
		pending[id] = true
	}
	var retry []Target
	for _, t := range targets {
		if pending[t.CardID] {
			retry = append(retry, t)
			delete(pending, t.CardID)
		}
	}
	original := ledger.FailedItems
	ledger.FailedItems = nil
	for _, id := range original {
		if pending[id] {
			in.logger.Warn("[ebay] backfill: %s is no longer in the catalog, keeping it in the ledger", id)
			ledger.AddItem(id)
		}
	}

	report, err := in.run(ctx, retry, ledger, priceDate, ingestionDate)
	report.Stage = "ebay-backfill"
	return report, err
}

func (in *Ingestor) run(ctx context.Context, targets []Target, ledger *storage.Ledger, priceDate, ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "ebay"}
	dir := storage.PartitionDir(in.rawRoot, storage.PriceDate(priceDate), storage.IngestionDate(ingestionDate))
	ledgerPath := storage.LedgerPath(in.ledgerDir, LedgerSource, ingestionDate)

	for _, t := range targets {
		report.Processed++
		if err := in.pacer.Wait(ctx); err != nil {
			return report, err
		}

		in.logger.Info("[ebay] %s: searching %q", t.CardID, t.Query)
		result, err := in.search.FetchAll(ctx, t.Query, in.opts.PageSize, in.opts.MaxResults, in.opts.MaxPages)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return report, err
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			in.logger.Error("[ebay] %s: %v", t.CardID, err)
			ledger.AddItem(t.CardID)
			report.Failed++
			continue
		}

		if err := storage.WriteJSON(filepath.Join(dir, t.CardID+".json"), result); err != nil {
			in.logger.Error("[ebay] %s: %v", t.CardID, err)
			ledger.AddItem(t.CardID)
			report.Failed++
			continue
		}

		report.Accepted++
		in.logPriceRange(t.CardID, result)
	}

	if err := ledger.Save(ledgerPath, in.now()); err != nil {
		return report, err
	}
	if !ledger.Empty() {
		in.logger.Warn("[ebay] %d cards failed, recorded in %s", len(ledger.FailedItems), ledgerPath)
	}
	return report, nil
}

func (in *Ingestor) logPriceRange(cardID string, result *SearchResult) {
	var lo, hi decimal.Decimal
	n := 0
	for _, raw := range result.Items {
		var it models.ItemSummary
		if err := json.Unmarshal(raw, &it); err != nil || it.Price == nil {
			continue
		}
		v, err := decimal.NewFromString(it.Price.Value)
		if err != nil {
			continue
		}
		if n == 0 || v.LessThan(lo) {
			lo = v
		}
		if n == 0 || v.GreaterThan(hi) {
			hi = v
		}
		n++
	}
	if n == 0 {
		in.logger.Info("[ebay] %s: Listings: %d | no prices", cardID, len(result.Items))
		return
	}
	in.logger.Info("[ebay] %s: Listings: %d | min %s | max %s", cardID, len(result.Items), lo.StringFixed(2), hi.StringFixed(2))
}

// PendingItems lists the card ids in the ledger of ingestionDate.
func (in *Ingestor) PendingItems(ingestionDate string) ([]string, error) {
	ledger, err := storage.LoadLedger(storage.LedgerPath(in.ledgerDir, LedgerSource, ingestionDate))
	if err != nil {
		return nil, fmt.Errorf("ebay: load ledger: %w", err)
	}
	return ledger.FailedItems, nil
}
