package tcg

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// LedgerSource names the failure ledger of catalog acquisition.
const LedgerSource = "pokemon_tcg"

// maxConsecutiveFailures stops a run whose pages keep failing before the
// catalog size is known.
const maxConsecutiveFailures = 10

// PageFetcher is the part of Client used by the ingestor.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, pageSize int) (*Page, error)
}

// Ingestor walks the catalog page by page into the raw layer.
type Ingestor struct {
	client    PageFetcher
	retry     *utils.RetryConfig
	pacer     *utils.Pacer
	logger    *utils.Logger
	rawRoot   string
	ledgerDir string
	pageSize  int
	now       func() time.Time
}

func NewIngestor(client PageFetcher, retry *utils.RetryConfig, pacer *utils.Pacer, logger *utils.Logger, rawRoot, ledgerDir string, pageSize int) *Ingestor {
	return &Ingestor{
		client:    client,
		retry:     retry,
		pacer:     pacer,
		logger:    logger,
		rawRoot:   rawRoot,
		ledgerDir: ledgerDir,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// PagePath is the raw file of one catalog page.
func PagePath(rawRoot, ingestionDate string, page int) string {
	dir := storage.PartitionDir(rawRoot, storage.IngestionDate(ingestionDate))
	return filepath.Join(dir, fmt.Sprintf("page-%04d.json", page))
}

// Ingest fetches pages from 1 until an empty page. A page that still fails
// after retries, or fails permanently, goes to the ledger and the next page
// is fetched.
func (in *Ingestor) Ingest(ctx context.Context, ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "tcg"}
	ledger := storage.NewLedger(LedgerSource)

	lastPage := 0
	consecutive := 0
	cards := 0

	for page := 1; ; page++ {
		if lastPage > 0 && page > lastPage {
			break
		}
		if consecutive >= maxConsecutiveFailures {
			in.logger.Error("[tcg] %d consecutive pages failed, stopping at page %d", consecutive, page-1)
			break
		}

		p, err := in.fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Processed++
			in.logger.Error("[tcg] page %d: %v", page, err)
			ledger.AddPage(page)
			report.Failed++
			consecutive++
			continue
		}
		consecutive = 0

		if len(p.Data) == 0 {
			in.logger.Info("[tcg] no more cards, ingestion complete")
			break
		}
		report.Processed++
		if p.TotalCount > 0 && in.pageSize > 0 {
			lastPage = (p.TotalCount + in.pageSize - 1) / in.pageSize
		}

		if err := storage.WriteJSON(PagePath(in.rawRoot, ingestionDate, page), p.Data); err != nil {
			return report, err
		}
		cards += len(p.Data)
		report.Accepted++
		in.logger.Info("[tcg] fetched page %d, progress (%d/%d)", page, cards, p.TotalCount)
	}

	return report, in.saveLedger(ledger, ingestionDate)
}

// Backfill retries exactly the pages in the ledger of ingestionDate and
// rewrites it with the pages that still fail, keeping the run id.
func (in *Ingestor) Backfill(ctx context.Context, ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "tcg-backfill"}

	ledger, err := storage.LoadLedger(storage.LedgerPath(in.ledgerDir, LedgerSource, ingestionDate))
	if err != nil {
		return report, err
	}

	pages := ledger.FailedPages
	ledger.FailedPages = nil

	for i, page := range pages {
		report.Processed++
		p, err := in.fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			in.logger.Error("[tcg] backfill page %d: %v", page, err)
			ledger.AddPage(page)
			report.Failed++
			continue
		}

		if err := storage.WriteJSON(PagePath(in.rawRoot, ingestionDate, page), p.Data); err != nil {
			return report, err
		}
		report.Accepted++
		in.logger.Info("[tcg] recovered page %d (%d/%d)", page, i+1, len(pages))
	}

	if ledger.Empty() {
		in.logger.Info("[tcg] all failed pages recovered")
	}
	return report, in.saveLedger(ledger, ingestionDate)
}

func (in *Ingestor) fetch(ctx context.Context, page int) (*Page, error) {
	var p *Page
	op := fmt.Sprintf("fetch page %d", page)
	err := in.retry.Do(ctx, op, func() error {
		if err := in.pacer.Wait(ctx); err != nil {
			return err
		}
		res, err := in.client.FetchPage(ctx, page, in.pageSize)
		if err != nil {
			return err
		}
		p = res
		return nil
	})
	return p, err
}

func (in *Ingestor) saveLedger(ledger *storage.Ledger, ingestionDate string) error {
	path := storage.LedgerPath(in.ledgerDir, LedgerSource, ingestionDate)
	if err := ledger.Save(path, in.now()); err != nil {
		return err
	}
	if !ledger.Empty() {
		in.logger.Warn("[tcg] failed pages %v recorded in %s", ledger.FailedPages, path)
	}
	return nil
}
