package services

import (
	"sort"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// BuildSnapshot keeps the high and medium confidence rows of a staging
// partition, one per listing id.
func BuildSnapshot(rows []models.ListingRow, ingestionDate string) []models.SnapshotRow {
	seen := utils.NewIDSet()
	var out []models.SnapshotRow
	for _, r := range rows {
		tier := models.ConfidenceTier(r.TitleMatchConfidence)
		if tier != models.TierHigh && tier != models.TierMedium {
			continue
		}
		if r.ListingID == "" || r.CardID == "" {
			continue
		}
		if !seen.Add(r.ListingID) {
			continue
		}
		out = append(out, models.SnapshotRow{
			ListingID:            r.ListingID,
			CardID:               r.CardID,
			PriceValue:           r.PriceValue,
			Currency:             r.Currency,
			Condition:            r.Condition,
			IsGraded:             r.IsGraded,
			GradeValue:           r.GradeValue,
			TitleMatchConfidence: r.TitleMatchConfidence,
			Title:                r.Title,
			ListingURL:           r.ListingURL,
			IngestionDate:        ingestionDate,
		})
	}
	return out
}

// Median returns the 0.5 quantile with linear interpolation between the two
// middle values. values is sorted in place.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	pos := 0.5 * float64(len(values)-1)
	lo := int(pos)
	if lo+1 >= len(values) {
		return values[lo]
	}
	frac := pos - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}

// Summarize aggregates snapshot rows priced in currency per card, sorted by card_id.
func Summarize(rows []models.SnapshotRow, priceDate, currency string) []models.MarketSummary {
	type acc struct {
		prices   []float64
		graded   int64
		ungraded int64
	}
	byCard := make(map[string]*acc)

	for _, r := range rows {
		if r.PriceValue == nil || r.Currency == nil || *r.Currency != currency {
			continue
		}
		a := byCard[r.CardID]
		if a == nil {
			a = &acc{}
			byCard[r.CardID] = a
		}
		a.prices = append(a.prices, *r.PriceValue)
		if r.IsGraded {
			a.graded++
		} else {
			a.ungraded++
		}
	}

	out := make([]models.MarketSummary, 0, len(byCard))
	for cardID, a := range byCard {
		med := Median(a.prices)
		out = append(out, models.MarketSummary{
			CardID:               cardID,
			PriceDate:            priceDate,
			ListingCount:         int64(len(a.prices)),
			MinPrice:             a.prices[0],
			MedianPrice:          med,
			MaxPrice:             a.prices[len(a.prices)-1],
			GradedListingCount:   a.graded,
			UngradedListingCount: a.ungraded,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

// MarketService builds the snapshot and summary analytics.
type MarketService struct {
	logger *utils.Logger
	lake   *storage.Lake
}

func NewMarketService(logger *utils.Logger, lake *storage.Lake) *MarketService {
	return &MarketService{logger: logger, lake: lake}
}

// Snapshot reads the latest staging partition (latest price_date, then
// latest ingestion_date) and writes ebay_market_snapshot for that ingestion.
func (s *MarketService) Snapshot() (models.StageReport, error) {
	report := models.StageReport{Stage: "snapshot"}

	priceDate, err := s.lake.StagedListings.Latest("price_date")
	if err != nil {
		return report, err
	}
	ingestionDate, err := s.lake.StagedListings.Latest("ingestion_date", storage.PriceDate(priceDate))
	if err != nil {
		return report, err
	}
	rows, err := s.lake.StagedListings.Read(storage.PriceDate(priceDate), storage.IngestionDate(ingestionDate))
	if err != nil {
		return report, err
	}

	snapshot := BuildSnapshot(rows, ingestionDate)
	report.Processed = len(rows)
	report.Accepted = len(snapshot)
	report.Rejected = len(rows) - len(snapshot)

	if err := s.lake.Snapshot.Write(snapshot, storage.IngestionDate(ingestionDate)); err != nil {
		return report, err
	}
	s.logger.Info("[summary] snapshot ingestion_date=%s: %d of %d rows kept", ingestionDate, len(snapshot), len(rows))
	return report, nil
}

// Summary aggregates the latest snapshot under the latest leaderboard price date.
func (s *MarketService) Summary(currency string) ([]models.MarketSummary, error) {
	priceDate, err := s.lake.Leaderboard.Latest("price_date")
	if err != nil {
		return nil, err
	}
	ingestionDate, err := s.lake.Snapshot.Latest("ingestion_date")
	if err != nil {
		return nil, err
	}
	rows, err := s.lake.Snapshot.Read(storage.IngestionDate(ingestionDate))
	if err != nil {
		return nil, err
	}

	summary := Summarize(rows, priceDate, currency)
	if err := s.lake.Summary.Write(summary, storage.PriceDate(priceDate)); err != nil {
		return nil, err
	}
	s.logger.Info("[summary] price_date=%s: %d cards summarized from snapshot %s", priceDate, len(summary), ingestionDate)
	return summary, nil
}
