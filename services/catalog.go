package services

import (
	"fmt"
	"sort"
	"time"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// tcgDateLayouts are the forms the catalog API uses for updatedAt.
var tcgDateLayouts = []string{"2006/01/02", "2006-01-02", time.RFC3339}

// StageCatalog flattens raw catalog cards into staging card rows and one
// price row per (card, price type) carrying a market price.
func StageCatalog(cards []models.TCGCard, ingestionDate string) ([]models.StagedCard, []models.CardPrice) {
	staged := make([]models.StagedCard, 0, len(cards))
	var prices []models.CardPrice

	for _, c := range cards {
		if c.ID == "" {
			continue
		}
		sc := models.StagedCard{
			CardID:         c.ID,
			Name:           c.Name,
			Supertype:      c.Supertype,
			Number:         c.Number,
			Rarity:         c.Rarity,
			SetID:          c.Set.ID,
			SetName:        c.Set.Name,
			SetReleaseDate: c.Set.ReleaseDate,
			IngestionDate:  ingestionDate,
		}
		if c.Set.PrintedTotal != nil {
			n := int32(*c.Set.PrintedTotal)
			sc.SetPrintedTotal = &n
		}
		staged = append(staged, sc)

		if c.TCGPlayer == nil {
			continue
		}
		types := make([]string, 0, len(c.TCGPlayer.Prices))
		for t := range c.TCGPlayer.Prices {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			m := c.TCGPlayer.Prices[t]
			if m.Market == nil {
				continue
			}
			prices = append(prices, models.CardPrice{
				CardID:        c.ID,
				PriceType:     t,
				Market:        *m.Market,
				TCGUpdateDate: c.TCGPlayer.UpdatedAt,
				IngestionDate: ingestionDate,
			})
		}
	}
	return staged, prices
}

// BuildCardMaster deduplicates staged cards by id, keeping the first.
func BuildCardMaster(staged []models.StagedCard) []models.CatalogCard {
	seen := utils.NewIDSet()
	out := make([]models.CatalogCard, 0, len(staged))
	for _, s := range staged {
		if !seen.Add(s.CardID) {
			continue
		}
		out = append(out, models.CatalogCard{
			CardID:          s.CardID,
			CardName:        s.Name,
			Supertype:       s.Supertype,
			Rarity:          s.Rarity,
			SetID:           s.SetID,
			SetName:         s.SetName,
			Number:          s.Number,
			SetPrintedTotal: s.SetPrintedTotal,
			ReleaseDate:     s.SetReleaseDate,
			IngestionDate:   s.IngestionDate,
		})
	}
	return out
}

// BuildVariantMaster lists the distinct (card, price type) pairs with their
// surrogate ids.
func BuildVariantMaster(prices []models.CardPrice) []models.PriceVariant {
	seen := utils.NewIDSet()
	var out []models.PriceVariant
	for _, p := range prices {
		if !seen.Add(p.CardID + variantKeySeparator + p.PriceType) {
			continue
		}
		out = append(out, models.PriceVariant{
			VariantID: VariantID(p.CardID, p.PriceType),
			CardID:    p.CardID,
			PriceType: p.PriceType,
		})
	}
	return out
}

// PriceDateOf returns the ISO date a price row was observed on: the catalog's
// update date when it parses, else the ingestion date.
func PriceDateOf(p models.CardPrice) string {
	for _, layout := range tcgDateLayouts {
		if t, err := time.Parse(layout, p.TCGUpdateDate); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return p.IngestionDate
}

// BuildObservations converts staged prices into fact rows grouped by price date.
func BuildObservations(prices []models.CardPrice) map[string][]models.PriceObservation {
	byDate := make(map[string][]models.PriceObservation)
	for _, p := range prices {
		date := PriceDateOf(p)
		byDate[date] = append(byDate[date], models.PriceObservation{
			CardID:        p.CardID,
			VariantID:     VariantID(p.CardID, p.PriceType),
			PriceDate:     date,
			MarketPrice:   p.Market,
			IngestionDate: p.IngestionDate,
		})
	}
	return byDate
}

type observationKey struct {
	cardID    string
	variantID int64
	priceDate string
}

// MergeObservations unions an existing partition with a new batch and keeps
// one row per (card_id, variant_id, price_date). Later rows win: incoming
// over existing, and within a batch the last occurrence. Output is sorted by
// key so reruns produce identical files.
func MergeObservations(existing, incoming []models.PriceObservation) []models.PriceObservation {
	latest := make(map[observationKey]models.PriceObservation, len(existing)+len(incoming))
	for _, batch := range [][]models.PriceObservation{existing, incoming} {
		for _, o := range batch {
			latest[observationKey{o.CardID, o.VariantID, o.PriceDate}] = o
		}
	}

	out := make([]models.PriceObservation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CardID != out[j].CardID {
			return out[i].CardID < out[j].CardID
		}
		if out[i].VariantID != out[j].VariantID {
			return out[i].VariantID < out[j].VariantID
		}
		return out[i].PriceDate < out[j].PriceDate
	})
	return out
}

// CatalogService stages raw catalog pages and builds the catalog dimensions
// and the price fact.
type CatalogService struct {
	logger  *utils.Logger
	lake    *storage.Lake
	rawRoot string
}

func NewCatalogService(logger *utils.Logger, lake *storage.Lake) *CatalogService {
	return &CatalogService{logger: logger, lake: lake, rawRoot: lake.Paths.RawTCGCards}
}

// Stage reads every raw page of ingestionDate and writes the staging cards
// and card_prices partitions.
func (s *CatalogService) Stage(ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "catalog-stage"}

	files, err := storage.ListJSON(storage.PartitionDir(s.rawRoot, storage.IngestionDate(ingestionDate)))
	if err != nil {
		return report, err
	}

	var cards []models.TCGCard
	for _, path := range files {
		var page []models.TCGCard
		if err := storage.ReadJSON(path, &page); err != nil {
			s.logger.Error("[tcg] %v", err)
			report.Failed++
			continue
		}
		cards = append(cards, page...)
	}
	report.Processed = len(cards)

	staged, prices := StageCatalog(cards, ingestionDate)
	report.Accepted = len(staged)
	report.Skipped = len(cards) - len(staged)

	if err := s.lake.StagedCards.Write(staged, storage.IngestionDate(ingestionDate)); err != nil {
		return report, err
	}
	if err := s.lake.CardPrices.Write(prices, storage.IngestionDate(ingestionDate)); err != nil {
		return report, err
	}

	s.logger.Info("[tcg] staged %d cards and %d price rows from %d pages", len(staged), len(prices), len(files))
	return report, nil
}

// Build derives card_master, the variant master and the price history from
// the staging partitions of ingestionDate. All price partitions are merged
// and validated before any is written.
func (s *CatalogService) Build(ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "facts"}

	staged, err := s.lake.StagedCards.Read(storage.IngestionDate(ingestionDate))
	if err != nil {
		return report, err
	}
	prices, err := s.lake.CardPrices.Read(storage.IngestionDate(ingestionDate))
	if err != nil {
		return report, err
	}
	report.Processed = len(prices)

	master := BuildCardMaster(staged)
	variants := BuildVariantMaster(prices)

	byDate := BuildObservations(prices)
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	merged := make(map[string][]models.PriceObservation, len(byDate))
	for _, d := range dates {
		var existing []models.PriceObservation
		if s.lake.PriceHistory.Exists(storage.PriceDate(d)) {
			existing, err = s.lake.PriceHistory.Read(storage.PriceDate(d))
			if err != nil {
				return report, err
			}
		}
		rows := MergeObservations(existing, byDate[d])
		if err := storage.Validate(s.lake.PriceHistory.Schema, rows); err != nil {
			return report, fmt.Errorf("facts: price_date=%s: %w", d, err)
		}
		merged[d] = rows
	}

	if err := s.lake.CardMaster.Write(master, storage.IngestionDate(ingestionDate)); err != nil {
		return report, err
	}
	if err := s.lake.VariantMaster.Write(variants, storage.IngestionDate(ingestionDate)); err != nil {
		return report, err
	}
	for _, d := range dates {
		if err := s.lake.PriceHistory.Write(merged[d], storage.PriceDate(d)); err != nil {
			return report, err
		}
		report.Accepted += len(byDate[d])
	}

	s.logger.Info("[facts] card_master=%d variants=%d price partitions=%d", len(master), len(variants), len(dates))
	return report, nil
}
