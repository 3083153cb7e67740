package services

import (
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// TransformListing turns one raw search result into a staging row for card.
// It returns false when the listing is not a genuine card sale; filtering is
// an expected outcome, not an error.
func TransformListing(item models.ItemSummary, card models.CatalogCard, priceDate, ingestionDate string) (models.ListingRow, bool) {
	titleNormalized := Normalize(item.Title)
	if IsNonCard(titleNormalized) {
		return models.ListingRow{}, false
	}

	match := Resolve(titleNormalized, item.Title, card)

	row := models.ListingRow{
		ListingID:            item.ItemID,
		CardID:               card.CardID,
		PriceDate:            priceDate,
		IngestionDate:        ingestionDate,
		Title:                item.Title,
		TitleNormalized:      titleNormalized,
		Condition:            optional(item.Condition),
		ConditionID:          optional(item.ConditionID),
		ListingURL:           optional(item.ItemWebURL),
		NameMatch:            match.NameMatch,
		CardNumberMatch:      match.NumberMatch,
		SetMatch:             match.SetMatch,
		TitleMatchConfidence: string(match.Tier),
	}

	if item.Image != nil {
		row.ImageURL = optional(item.Image.ImageURL)
	}
	if len(item.ThumbnailImages) > 0 {
		row.ThumbnailURL = optional(item.ThumbnailImages[0].ImageURL)
	}

	if item.Price != nil {
		if v, err := decimal.NewFromString(item.Price.Value); err == nil {
			f := v.InexactFloat64()
			row.PriceValue = &f
		}
		row.Currency = optional(item.Price.Currency)
	}

	if g, ok := ExtractGrade(titleNormalized); ok {
		row.IsGraded = true
		v := int32(g.Value)
		row.GradeValue = &v
		label := g.Label()
		row.ParsedGrade = &label
	}

	return row, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ListingStager stages raw listing documents of one acquisition run.
type ListingStager struct {
	logger  *utils.Logger
	catalog *CatalogIndex
	rawRoot string
	out     *storage.Dataset[models.ListingRow]
}

// NewListingStager creates a stager reading raw documents under rawRoot.
func NewListingStager(logger *utils.Logger, catalog *CatalogIndex, rawRoot string, out *storage.Dataset[models.ListingRow]) *ListingStager {
	return &ListingStager{logger: logger, catalog: catalog, rawRoot: rawRoot, out: out}
}

// Stage transforms every raw document of (priceDate, ingestionDate) and
// replaces the matching staging partition. The file stem of each document is
// the card id it was fetched for.
func (s *ListingStager) Stage(priceDate, ingestionDate string) (models.StageReport, error) {
	report := models.StageReport{Stage: "staging", Tiers: make(map[models.ConfidenceTier]int)}

	dir := storage.PartitionDir(s.rawRoot, storage.PriceDate(priceDate), storage.IngestionDate(ingestionDate))
	files, err := storage.ListJSON(dir)
	if err != nil {
		return report, err
	}

	seen := utils.NewIDSet()
	var rows []models.ListingRow

	for _, path := range files {
		cardID := storage.Stem(path)
		card, ok := s.catalog.Lookup(cardID)
		if !ok {
			s.logger.Warn("[staging] %s: card not in catalog, skipping", cardID)
			report.Skipped++
			continue
		}

		var doc models.RawListingDocument
		if err := storage.ReadJSON(path, &doc); err != nil {
			s.logger.Error("[staging] %s: %v", filepath.Base(path), err)
			report.Failed++
			continue
		}

		for _, item := range doc.ItemSummaries {
			report.Processed++
			if item.ItemID == "" {
				report.Skipped++
				continue
			}

			row, ok := TransformListing(item, card, priceDate, ingestionDate)
			if !ok {
				report.Rejected++
				continue
			}
			if !seen.Add(row.ListingID + "|" + row.CardID) {
				continue
			}

			rows = append(rows, row)
			report.Tiers[models.ConfidenceTier(row.TitleMatchConfidence)]++
			if row.TitleMatchConfidence == string(models.TierHigh) || row.TitleMatchConfidence == string(models.TierMedium) {
				report.Accepted++
			}
		}
	}

	if err := s.out.Write(rows, storage.PriceDate(priceDate), storage.IngestionDate(ingestionDate)); err != nil {
		return report, fmt.Errorf("staging: %w", err)
	}

	s.logger.Info("[staging] %s/%s: %d rows written from %d documents", priceDate, ingestionDate, len(rows), len(files))
	return report, nil
}

// LatestRawPartition resolves the newest (price_date, ingestion_date) pair
// present in the raw listings layer.
func LatestRawPartition(rawRoot string) (string, string, error) {
	priceDate, err := storage.LatestPartition(rawRoot, "price_date")
	if err != nil {
		return "", "", err
	}
	ingestionDate, err := storage.LatestPartition(storage.PartitionDir(rawRoot, storage.PriceDate(priceDate)), "ingestion_date")
	if err != nil {
		return "", "", err
	}
	return priceDate, ingestionDate, nil
}
